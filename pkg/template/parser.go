package template

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/walteh/tmplgram/pkg/earley"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/textlex"
	"github.com/walteh/tmplgram/pkg/token"
	"github.com/walteh/tmplgram/pkg/tree"
	"gitlab.com/tozd/go/errors"
)

// Option configures a parser at construction time.
type Option func(*Parser)

// WithTypeCheck registers the check backing the qualified object terminal
// declared for name. Every qualified terminal the grammar declares must have
// a check registered, or construction fails.
func WithTypeCheck(name string, check TypeCheck) Option {
	return func(p *Parser) {
		p.checks[name] = check
	}
}

// Parser parses templates and plain text against one grammar. The grammar is
// augmented once at construction and shared read-only afterwards, so a
// parser is safe for concurrent use.
type Parser struct {
	grammar *grammar.Grammar
	lexer   *textlex.Lexer
	engine  *earley.Parser
	checks  map[string]TypeCheck
}

// NewParser augments g and builds the static lexer and engine around it. g
// itself is left unaugmented and reusable. Construction reports every defect
// it finds at once: augmentation collisions, unlexable terminal patterns,
// and qualified object terminals with no registered type check.
func NewParser(g *grammar.Grammar, opts ...Option) (*Parser, error) {
	p := &Parser{checks: map[string]TypeCheck{}}
	for _, opt := range opts {
		opt(p)
	}

	ag, err := grammar.Augment(g)
	if err != nil {
		return nil, errors.Errorf("constructing parser: %w", err)
	}
	p.grammar = ag

	var defects *multierror.Error
	for _, def := range ag.Terminals() {
		pattern, ok := def.Pattern.(grammar.PatternObject)
		if !ok || pattern.ExpectedType == "" {
			continue
		}
		if _, registered := p.checks[pattern.ExpectedType]; !registered {
			defects = multierror.Append(defects, errors.Errorf(
				"object terminal %s: no type check registered for %q", def.Name, pattern.ExpectedType))
		}
	}
	if err := defects.ErrorOrNil(); err != nil {
		return nil, errors.Errorf("constructing parser: %w", err)
	}

	lx, err := textlex.New(ag)
	if err != nil {
		return nil, errors.Errorf("constructing parser: %w", err)
	}
	p.lexer = lx
	p.engine = earley.New(ag, p.matchTerm)
	return p, nil
}

// Grammar returns the augmented grammar the parser runs against.
func (p *Parser) Grammar() *grammar.Grammar {
	return p.grammar
}

// Parse parses one template from the given start nonterminal. On success the
// returned tree contains every spliced subtree verbatim, with no synthetic
// wrapper nodes.
func (p *Parser) Parse(ctx context.Context, tmpl *Template, start string) (tree.Node, error) {
	tokens, err := linearize(ctx, p.lexer, tmpl)
	if err != nil {
		return nil, err
	}
	node, err := p.engine.Parse(ctx, tokens, start)
	if err != nil {
		return nil, p.describeError(err)
	}
	zerolog.Ctx(ctx).Debug().Str("start", start).Msg("template parsed")
	return ResolveSplices(node), nil
}

// ParseText parses plain text with no interpolations through the same
// grammar, producing identical tree shapes. This is how subtrees worth
// splicing are usually minted.
func (p *Parser) ParseText(ctx context.Context, filename, text, start string) (tree.Node, error) {
	ix := source.NewIndex(filename, text)
	tokens, err := p.lexer.LexSlice(ctx, source.NewSlice(ix, 0, len(text)))
	if err != nil {
		return nil, errors.Errorf("lexing %s: %w", filename, err)
	}
	node, err := p.engine.Parse(ctx, tokens, start)
	if err != nil {
		return nil, p.describeError(err)
	}
	return node, nil
}

// describeError re-presents an engine error enriched with the offending
// token's role. The engine's positioned error stays reachable through the
// wrap chain; nothing is intercepted or retried.
func (p *Parser) describeError(err error) error {
	var perr *earley.ParseError
	if !errors.As(err, &perr) || perr.EOF {
		return errors.Errorf("parsing: %w", err)
	}
	switch perr.Token.Kind {
	case token.Placeholder:
		return &UnexpectedPlaceholderError{
			Span:     perr.Token.Meta,
			GoType:   fmt.Sprintf("%T", perr.Token.Object),
			Expected: perr.Expected,
			cause:    perr,
		}
	case token.Splice:
		label := ""
		if perr.Token.Subtree != nil {
			label = perr.Token.Subtree.Label
		}
		return &UnexpectedSpliceError{
			Span:     perr.Token.Meta,
			Label:    label,
			Expected: perr.Expected,
			cause:    perr,
		}
	default:
		return errors.Errorf("parsing: %w", err)
	}
}
