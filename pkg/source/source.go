// Package source models absolute locations in parsed source text.
//
// Offsets are byte offsets into the original text. Lines and columns are
// 1-based, with columns counted in runes, matching what editors and
// conventional parser error messages expect.
package source

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Span is an absolute region of one source text.
type Span struct {
	// Filename identifies the source the offsets refer to. Empty for
	// synthetic or in-memory sources.
	Filename string

	// Start and End are byte offsets, End exclusive.
	Start int
	End   int

	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// IsZero reports whether the span carries no location at all.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	if s.IsZero() {
		return "<no position>"
	}
	if s.Filename == "" {
		return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
	}
	return fmt.Sprintf("%s:%d:%d", s.Filename, s.StartLine, s.StartCol)
}

// Union returns the smallest span covering both s and other. A zero span is
// the identity, so unioning against it returns the other span unchanged.
func (s Span) Union(other Span) Span {
	if s.IsZero() {
		return other
	}
	if other.IsZero() {
		return s
	}
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
		out.StartLine = other.StartLine
		out.StartCol = other.StartCol
	}
	if other.End > out.End {
		out.End = other.End
		out.EndLine = other.EndLine
		out.EndCol = other.EndCol
	}
	return out
}

// Index precomputes line boundaries of a text so spans can be resolved
// without rescanning from the start for every token.
type Index struct {
	filename string
	text     string
	// lineStarts[i] is the byte offset of the first byte of line i+1.
	lineStarts []int
}

// NewIndex builds an index over text. The filename is recorded on every span
// the index produces.
func NewIndex(filename, text string) *Index {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Index{filename: filename, text: text, lineStarts: starts}
}

// Text returns the full indexed text.
func (ix *Index) Text() string {
	return ix.text
}

// Filename returns the name the index was built with.
func (ix *Index) Filename() string {
	return ix.filename
}

// LineText returns the text of a 1-based line without its trailing newline.
// Out-of-range lines return the empty string.
func (ix *Index) LineText(line int) string {
	if line < 1 || line > len(ix.lineStarts) {
		return ""
	}
	start := ix.lineStarts[line-1]
	end := len(ix.text)
	if line < len(ix.lineStarts) {
		end = ix.lineStarts[line] - 1
	}
	return ix.text[start:end]
}

// Position resolves a byte offset to its 1-based line and rune column.
// Offsets past the end of the text resolve to the position just after the
// last byte.
func (ix *Index) Position(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}
	// The greatest line start that is <= offset.
	i := sort.SearchInts(ix.lineStarts, offset+1) - 1
	line = i + 1
	col = utf8.RuneCountInString(ix.text[ix.lineStarts[i]:offset]) + 1
	return line, col
}

// Span resolves a start/end byte offset pair to a full span.
func (ix *Index) Span(start, end int) Span {
	if end < start {
		end = start
	}
	sl, sc := ix.Position(start)
	el, ec := ix.Position(end)
	return Span{
		Filename:  ix.filename,
		Start:     start,
		End:       end,
		StartLine: sl,
		StartCol:  sc,
		EndLine:   el,
		EndCol:    ec,
	}
}

// Point resolves a single offset to a zero-width span, used when a location
// is known but covers no text of its own.
func (ix *Index) Point(offset int) Span {
	return ix.Span(offset, offset)
}

// Slice is a window into an indexed text, addressed in absolute offsets.
// Lexers consume slices so tokens from a segment of a larger source still
// carry positions in that source's coordinates.
type Slice struct {
	Index *Index
	Start int
	End   int
}

// NewSlice returns a slice of ix covering [start, end).
func NewSlice(ix *Index, start, end int) Slice {
	if start < 0 {
		start = 0
	}
	if end > len(ix.text) {
		end = len(ix.text)
	}
	if end < start {
		end = start
	}
	return Slice{Index: ix, Start: start, End: end}
}

// Value returns the text the slice covers.
func (s Slice) Value() string {
	return s.Index.text[s.Start:s.End]
}

// Span returns the span of the whole slice.
func (s Slice) Span() Span {
	return s.Index.Span(s.Start, s.End)
}
