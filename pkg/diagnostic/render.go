package diagnostic

import (
	"fmt"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/walteh/tmplgram/pkg/source"
)

// TextFormatter renders diagnostics as compiler-style messages. When Source
// is set, each diagnostic gains the offending line with a caret underline.
type TextFormatter struct {
	Source *source.Index
}

// Format implements Formatter.
func (f *TextFormatter) Format(ds []Diagnostic) (string, error) {
	var sb strings.Builder
	for _, d := range ds {
		f.formatOne(&sb, d)
	}
	return sb.String(), nil
}

func (f *TextFormatter) formatOne(sb *strings.Builder, d Diagnostic) {
	if d.Line > 0 {
		if d.File != "" {
			fmt.Fprintf(sb, "%s:", d.File)
		}
		fmt.Fprintf(sb, "%d:%d: ", d.Line, d.Column)
	}
	fmt.Fprintf(sb, "%s: %s\n", d.Severity, d.Message)

	if f.Source == nil || d.Line <= 0 {
		return
	}
	line := f.Source.LineText(d.Line)
	if line == "" && d.Column <= 1 {
		return
	}
	fmt.Fprintf(sb, "  | %s\n", line)

	// Underline width is measured in grapheme clusters so the caret lines
	// up under multi-byte text.
	prefix := columnPrefix(line, d.Column)
	width := 1
	if d.EndLine == d.Line && d.EndCol > d.Column {
		width = d.EndCol - d.Column
	}
	fmt.Fprintf(sb, "  | %s%s\n", strings.Repeat(" ", graphemeWidth(prefix)), strings.Repeat("^", width))
}

// columnPrefix returns the text before the 1-based rune column.
func columnPrefix(line string, col int) string {
	if col <= 1 {
		return ""
	}
	runes := []rune(line)
	if col-1 > len(runes) {
		return line
	}
	return string(runes[:col-1])
}

func graphemeWidth(s string) int {
	n, err := textseg.TokenCount([]byte(s), textseg.ScanGraphemeClusters)
	if err != nil {
		return len([]rune(s))
	}
	return n
}
