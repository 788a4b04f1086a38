package template

import (
	"fmt"
	"strings"

	"github.com/walteh/tmplgram/pkg/source"
	"gitlab.com/tozd/go/errors"
)

// UnexpectedPlaceholderError reports an object interpolation at a parse
// position where the grammar accepts no object placeholder, or where the
// expected placeholder's type check rejected the payload. The span is the
// interpolation expression's own.
type UnexpectedPlaceholderError struct {
	Span source.Span
	// GoType is the payload's concrete Go type.
	GoType   string
	Expected []string
	cause    error
}

func (e *UnexpectedPlaceholderError) Error() string {
	msg := fmt.Sprintf("%s: interpolated object of type %s not allowed here", e.Span, e.GoType)
	if len(e.Expected) > 0 {
		msg += ", expected " + strings.Join(e.Expected, ", ")
	}
	return msg
}

func (e *UnexpectedPlaceholderError) Unwrap() error {
	return e.cause
}

// Position returns the interpolation expression's span.
func (e *UnexpectedPlaceholderError) Position() source.Span {
	return e.Span
}

// UnexpectedSpliceError reports a subtree interpolation whose label no
// reachable injection rule accepts at that parse position. The span is the
// spliced subtree's original span when it has one, else the interpolation
// expression's.
type UnexpectedSpliceError struct {
	Span     source.Span
	Label    string
	Expected []string
	cause    error
}

func (e *UnexpectedSpliceError) Error() string {
	msg := fmt.Sprintf("%s: interpolated subtree labeled %q not valid in this context", e.Span, e.Label)
	if len(e.Expected) > 0 {
		msg += ", expected " + strings.Join(e.Expected, ", ")
	}
	return msg
}

func (e *UnexpectedSpliceError) Unwrap() error {
	return e.cause
}

// Position returns the error's source span.
func (e *UnexpectedSpliceError) Position() source.Span {
	return e.Span
}

func errTemplateShape(segments, values int) error {
	return errors.Errorf("template must alternate static segments and values: got %d segments for %d values, want %d", segments, values, values+1)
}
