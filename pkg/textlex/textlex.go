// Package textlex lexes the static text of a template against a grammar's
// text terminals.
//
// The terminal set is compiled once per grammar into a participle lexer
// definition. Each static segment is then lexed independently, with the
// segment's absolute offset applied so every token's span is expressed in
// the original source's coordinates rather than segment-relative ones.
package textlex

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/rs/zerolog"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// LexError reports static text no terminal matches. The span points at the
// first unlexable byte, in absolute coordinates.
type LexError struct {
	Span source.Span
	Text string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: no terminal matches text starting %q", e.Span, e.Text)
}

// Position returns the error's source span.
func (e *LexError) Position() source.Span {
	return e.Span
}

// Lexer lexes static segments of one grammar's source text.
type Lexer struct {
	g     *grammar.Grammar
	def   *lexer.StatefulDefinition
	names map[lexer.TokenType]string
}

// New compiles the grammar's text terminals into a lexer. Object and
// subtree terminals are excluded: they are matched only against interpolated
// values, never against text. Terminals are tried in priority order, inline
// literals longest first, so keywords win over overlapping patterns.
func New(g *grammar.Grammar) (*Lexer, error) {
	terms := make([]*grammar.TerminalDef, 0, len(g.Terminals()))
	for _, def := range g.Terminals() {
		switch def.Pattern.(type) {
		case grammar.PatternLiteral, grammar.PatternRegex:
			terms = append(terms, def)
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Priority != terms[j].Priority {
			return terms[i].Priority > terms[j].Priority
		}
		li, iLit := terms[i].Pattern.(grammar.PatternLiteral)
		lj, jLit := terms[j].Pattern.(grammar.PatternLiteral)
		if iLit && jLit {
			return len(li.Text) > len(lj.Text)
		}
		return iLit && !jLit
	})

	// Rules are named positionally: participle elides rules whose names
	// start with a lowercase letter, so grammar terminal names cannot be
	// used as rule names directly. The symbol table maps them back.
	rules := make([]lexer.Rule, 0, len(terms))
	ruleTerm := map[string]string{}
	for i, def := range terms {
		name := fmt.Sprintf("T%03d", i)
		var pattern string
		switch p := def.Pattern.(type) {
		case grammar.PatternLiteral:
			pattern = regexp.QuoteMeta(p.Text)
		case grammar.PatternRegex:
			pattern = p.Expr
		}
		rules = append(rules, lexer.Rule{Name: name, Pattern: pattern})
		ruleTerm[name] = def.Name
	}

	def, err := lexer.New(lexer.Rules{"Root": rules})
	if err != nil {
		return nil, errors.Errorf("compiling lexer rules: %w", err)
	}

	names := make(map[lexer.TokenType]string, len(ruleTerm))
	for sym, typ := range def.Symbols() {
		if term, ok := ruleTerm[sym]; ok {
			names[typ] = term
		}
	}
	return &Lexer{g: g, def: def, names: names}, nil
}

// LexSlice lexes one static segment, given as a window into the indexed
// source, and returns its tokens with absolute spans. Tokens of ignored
// terminals are dropped.
func (l *Lexer) LexSlice(ctx context.Context, sl source.Slice) ([]token.Token, error) {
	lx, err := l.def.LexString(sl.Index.Filename(), sl.Value())
	if err != nil {
		return nil, errors.Errorf("starting lexer: %w", err)
	}

	var out []token.Token
	consumed := 0
	for {
		t, err := lx.Next()
		if err != nil {
			// The lexer is strictly sequential, so the failure point is the
			// first byte after the last matched token.
			abs := sl.Start + consumed
			return nil, &LexError{
				Span: sl.Index.Point(abs),
				Text: snippet(sl.Value()[consumed:]),
			}
		}
		if t.EOF() {
			break
		}
		consumed = t.Pos.Offset + len(t.Value)
		name, ok := l.names[t.Type]
		if !ok {
			return nil, errors.Errorf("lexer produced unknown token type %d", t.Type)
		}
		if l.g.IsIgnored(name) {
			continue
		}
		start := sl.Start + t.Pos.Offset
		out = append(out, token.NewLexed(name, t.Value, sl.Index.Span(start, start+len(t.Value))))
	}

	zerolog.Ctx(ctx).Trace().
		Int("tokens", len(out)).
		Int("start", sl.Start).
		Int("end", sl.End).
		Msg("lexed static segment")
	return out, nil
}

func snippet(s string) string {
	const max = 10
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
