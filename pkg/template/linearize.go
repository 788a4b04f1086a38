package template

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/textlex"
	"github.com/walteh/tmplgram/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// linearize flattens a template into the token stream the engine consumes.
// Segments and interpolations are processed strictly in template order: each
// non-empty static segment is lexed at its absolute offset, and each
// interpolation yields exactly one token. No grammar-membership validation
// happens here; a token naming a terminal the grammar lacks simply fails to
// match during parsing and surfaces through the engine's positioned error.
func linearize(ctx context.Context, lx *textlex.Lexer, tmpl *Template) ([]token.Token, error) {
	var out []token.Token
	for i, seg := range tmpl.segments {
		if seg.end > seg.start {
			toks, err := lx.LexSlice(ctx, source.NewSlice(tmpl.ix, seg.start, seg.end))
			if err != nil {
				return nil, errors.Errorf("lexing static segment %d: %w", i, err)
			}
			out = append(out, toks...)
		}
		if i >= len(tmpl.values) {
			continue
		}
		switch v := tmpl.values[i].(type) {
		case HostObject:
			out = append(out, token.NewPlaceholder(grammar.ObjectTerminal, v.Payload, v.Expr))
		case SpliceTree:
			// The subtree's own recorded span wins over the interpolation
			// expression's, so errors point at where the subtree came from.
			span := v.Tree.Span()
			if span.IsZero() {
				span = v.Expr
			}
			out = append(out, token.NewSplice(grammar.InjectionTerminalName(v.Tree.Label), v.Tree, span))
		}
	}

	zerolog.Ctx(ctx).Debug().
		Int("tokens", len(out)).
		Int("interpolations", len(tmpl.values)).
		Msg("linearized template")
	return out, nil
}
