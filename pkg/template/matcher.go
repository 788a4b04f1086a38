package template

import (
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/token"
)

// TypeCheck decides whether a host value satisfies a qualified object
// placeholder's declared type.
type TypeCheck func(value any) bool

// matchTerm is the terminal-matching predicate supplied to the engine in
// place of text comparison. Precedence: the designated object terminal
// accepts any placeholder; a declared object terminal consults its type
// check; an injection terminal accepts a splice carrying exactly its label;
// everything else is plain name equality on lexed tokens. The branches are
// mutually exclusive, so at most one interpretation fits a given token.
func (p *Parser) matchTerm(terminal string, tok token.Token) bool {
	if terminal == grammar.ObjectTerminal {
		return tok.Kind == token.Placeholder
	}
	if def, ok := p.grammar.Terminal(terminal); ok {
		switch pattern := def.Pattern.(type) {
		case grammar.PatternObject:
			if tok.Kind != token.Placeholder {
				return false
			}
			if pattern.ExpectedType == "" {
				return true
			}
			// A failed check is a matching failure, not an abort: the
			// engine keeps looking and reports its usual positioned error
			// if nothing else fits.
			check := p.checks[pattern.ExpectedType]
			return check != nil && check(tok.Object)
		case grammar.PatternSubtree:
			return tok.Kind == token.Splice && tok.Subtree != nil && tok.Subtree.Label == pattern.Label
		}
	}
	return tok.Kind == token.Lexed && tok.Terminal == terminal
}
