// Package diagnostic presents positioned parse errors in human- and
// machine-readable forms.
package diagnostic

import (
	"encoding/json"

	"github.com/walteh/tmplgram/pkg/source"
	"gitlab.com/tozd/go/errors"
)

// Positioned is implemented by errors that know the source span they refer
// to.
type Positioned interface {
	error
	Position() source.Span
}

// Severity is the severity level of a diagnostic.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
	Hint    Severity = "hint"
)

// Diagnostic is a single positioned message.
type Diagnostic struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	EndLine  int      `json:"end_line,omitempty"`
	EndCol   int      `json:"end_column,omitempty"`
}

// FromError builds an error diagnostic, extracting the span if any error in
// the chain is Positioned.
func FromError(err error) Diagnostic {
	d := Diagnostic{Message: err.Error(), Severity: Error}
	var pos Positioned
	if errors.As(err, &pos) {
		span := pos.Position()
		d.File = span.Filename
		d.Line = span.StartLine
		d.Column = span.StartCol
		d.EndLine = span.EndLine
		d.EndCol = span.EndCol
	}
	return d
}

// Formatter renders diagnostics for output.
type Formatter interface {
	Format(ds []Diagnostic) (string, error)
}

// JSONFormatter renders diagnostics as a JSON array.
type JSONFormatter struct {
	Pretty bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(ds []Diagnostic) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Pretty {
		data, err = json.MarshalIndent(ds, "", "  ")
	} else {
		data, err = json.Marshal(ds)
	}
	if err != nil {
		return "", errors.Errorf("marshaling diagnostics: %w", err)
	}
	return string(data), nil
}
