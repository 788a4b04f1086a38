package grammar

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
)

// TermOption adjusts a terminal declaration.
type TermOption func(*TerminalDef)

// WithPriority sets the terminal's lexing priority. Higher wins.
func WithPriority(p int) TermOption {
	return func(t *TerminalDef) {
		t.Priority = p
	}
}

// WithFilterOut drops the terminal's tokens from parse trees.
func WithFilterOut() TermOption {
	return func(t *TerminalDef) {
		t.FilterOut = true
	}
}

// RuleOption adjusts a rule declaration.
type RuleOption func(*Rule)

// WithAlias labels trees this rule produces with name instead of the origin.
func WithAlias(name string) RuleOption {
	return func(r *Rule) {
		r.Alias = name
	}
}

// WithCollapse elides the rule's node when it reduces to a single child.
func WithCollapse() RuleOption {
	return func(r *Rule) {
		r.Options.Collapse = true
	}
}

// WithKeepAllTokens retains tokens whose terminals are marked FilterOut.
func WithKeepAllTokens() RuleOption {
	return func(r *Rule) {
		r.Options.KeepAllTokens = true
	}
}

// Builder assembles a grammar declaration by declaration. Defects are
// collected as declarations are added and reported together by Build, so a
// caller constructing a grammar from a config file sees every problem at
// once.
type Builder struct {
	g    *Grammar
	anon map[string]string
	errs *multierror.Error
}

// NewBuilder returns an empty grammar builder.
func NewBuilder() *Builder {
	return &Builder{
		g: &Grammar{
			byName:   map[string]*TerminalDef{},
			byOrigin: map[string][]*Rule{},
		},
		anon: map[string]string{},
	}
}

func (b *Builder) addTerminal(t *TerminalDef) {
	if prev, ok := b.g.byName[t.Name]; ok {
		b.errs = multierror.Append(b.errs, errors.Errorf("terminal %s declared twice (%s and %s)", t.Name, prev.Pattern, t.Pattern))
		return
	}
	b.g.terminals = append(b.g.terminals, t)
	b.g.byName[t.Name] = t
}

// Literal declares a terminal matching exact text.
func (b *Builder) Literal(name, text string, opts ...TermOption) *Builder {
	t := &TerminalDef{Name: name, Pattern: PatternLiteral{Text: text}}
	for _, opt := range opts {
		opt(t)
	}
	b.addTerminal(t)
	return b
}

// Regex declares a terminal matching an RE2 regular expression.
func (b *Builder) Regex(name, expr string, opts ...TermOption) *Builder {
	t := &TerminalDef{Name: name, Pattern: PatternRegex{Expr: expr}}
	for _, opt := range opts {
		opt(t)
	}
	b.addTerminal(t)
	return b
}

// Object declares the designated untyped object-placeholder terminal, which
// matches any interpolated host value.
func (b *Builder) Object() *Builder {
	b.addTerminal(&TerminalDef{Name: ObjectTerminal, Pattern: PatternObject{}})
	return b
}

// TypedObject declares a qualified object-placeholder terminal bound to the
// named type check. The check itself is registered when a parser is
// constructed; an unregistered check is a construction-time error there.
func (b *Builder) TypedObject(typeName string) *Builder {
	b.addTerminal(&TerminalDef{
		Name:    ObjectTerminalName(typeName),
		Pattern: PatternObject{ExpectedType: typeName},
	})
	return b
}

// Ignore marks terminals the static lexer should drop, such as whitespace.
func (b *Builder) Ignore(names ...string) *Builder {
	b.g.ignore = append(b.g.ignore, names...)
	return b
}

// Rule declares one production of origin.
func (b *Builder) Rule(origin string, expansion []Symbol, opts ...RuleOption) *Builder {
	r := &Rule{
		Origin:    origin,
		Expansion: expansion,
		Order:     len(b.g.byOrigin[origin]),
	}
	for _, opt := range opts {
		opt(r)
	}
	b.g.rules = append(b.g.rules, r)
	b.g.byOrigin[origin] = append(b.g.byOrigin[origin], r)
	return b
}

// Lit references an inline literal from a rule expansion, declaring an
// auto-named terminal for it on first use. Inline literals are filtered out
// of parse trees, so `print` and `(` written directly in a rule leave only
// meaningful children behind.
func (b *Builder) Lit(text string) Symbol {
	if name, ok := b.anon[text]; ok {
		return Term(name)
	}
	name := literalTerminalName(text, func(candidate string) bool {
		if isReservedTerminalName(candidate) {
			return true
		}
		_, taken := b.g.byName[candidate]
		return taken
	})
	b.anon[text] = name
	b.addTerminal(&TerminalDef{
		Name:    name,
		Pattern: PatternLiteral{Text: text},
		// Inline literals outrank named terminals so keywords beat
		// identifier patterns.
		Priority:  1,
		FilterOut: true,
	})
	return Term(name)
}

// Build validates the accumulated declarations and returns the grammar.
// Every defect found is reported, not just the first.
func (b *Builder) Build() (*Grammar, error) {
	result := b.errs
	if err := b.g.validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Errorf("building grammar: %w", err)
	}
	return b.g, nil
}

// punctNames names single punctuation characters for auto-named literal
// terminals, so `(` becomes LPAR rather than an opaque numbered name.
var punctNames = map[rune]string{
	'.':  "DOT",
	',':  "COMMA",
	':':  "COLON",
	';':  "SEMICOLON",
	'+':  "PLUS",
	'-':  "MINUS",
	'*':  "STAR",
	'/':  "SLASH",
	'\\': "BACKSLASH",
	'|':  "VBAR",
	'?':  "QMARK",
	'!':  "BANG",
	'@':  "AT",
	'#':  "HASH",
	'$':  "DOLLAR",
	'%':  "PERCENT",
	'^':  "CIRCUMFLEX",
	'&':  "AMPERSAND",
	'_':  "UNDERSCORE",
	'<':  "LESSTHAN",
	'>':  "MORETHAN",
	'=':  "EQUAL",
	'"':  "DBLQUOTE",
	'\'': "QUOTE",
	'`':  "BACKQUOTE",
	'~':  "TILDE",
	'(':  "LPAR",
	')':  "RPAR",
	'{':  "LBRACE",
	'}':  "RBRACE",
	'[':  "LSQB",
	']':  "RSQB",
}

func isIdentLike(s string) bool {
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return s != ""
}

// literalTerminalName derives a deterministic terminal name for inline
// literal text: identifier-like text upper-cases, punctuation maps through
// the naming table, and anything else gets a numbered fallback. taken
// reports whether a candidate name is already in use.
func literalTerminalName(text string, taken func(string) bool) string {
	var base string
	switch {
	case isIdentLike(text):
		base = strings.ToUpper(text)
	default:
		parts := make([]string, 0, len(text))
		ok := true
		for _, r := range text {
			name, known := punctNames[r]
			if !known {
				ok = false
				break
			}
			parts = append(parts, name)
		}
		if ok {
			base = strings.Join(parts, "_")
		} else {
			base = "ANON"
		}
	}
	if base != "ANON" && !taken(base) {
		return base
	}
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
