// Package grammar models context-free grammars whose terminals can match
// lexed text, interpolated host objects, or spliced parse trees, and
// implements the augmentation step that teaches a grammar to accept splices.
package grammar

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
)

// Pattern is what a terminal matches. It is a closed union: text terminals
// carry a literal or a regular expression for the static lexer, while object
// and subtree terminals are matched only by the term matcher against
// interpolated values and never against text.
type Pattern interface {
	pattern()
	fmt.Stringer
}

// PatternLiteral matches exact text.
type PatternLiteral struct {
	Text string
}

func (PatternLiteral) pattern() {}

func (p PatternLiteral) String() string {
	return fmt.Sprintf("%q", p.Text)
}

// PatternRegex matches text by RE2 regular expression.
type PatternRegex struct {
	Expr string
}

func (PatternRegex) pattern() {}

func (p PatternRegex) String() string {
	return fmt.Sprintf("/%s/", p.Expr)
}

// PatternObject matches an interpolated host object. ExpectedType is empty
// for the designated untyped object terminal; qualified object terminals
// name a type check registered when the parser is constructed.
type PatternObject struct {
	ExpectedType string
}

func (PatternObject) pattern() {}

func (p PatternObject) String() string {
	if p.ExpectedType == "" {
		return "<object>"
	}
	return fmt.Sprintf("<object %s>", p.ExpectedType)
}

// PatternSubtree matches a spliced parse tree whose top-level label equals
// Label. These terminals are synthesized during augmentation.
type PatternSubtree struct {
	Label string
}

func (PatternSubtree) pattern() {}

func (p PatternSubtree) String() string {
	return fmt.Sprintf("<tree %s>", p.Label)
}

// TerminalDef declares one named terminal.
type TerminalDef struct {
	Name    string
	Pattern Pattern

	// Priority orders terminals for the static lexer. Higher wins when two
	// terminals could match at the same position.
	Priority int

	// FilterOut drops the matched token from parse trees. Set for
	// auto-named inline literals so trees carry meaningful children only.
	FilterOut bool
}

// Symbol is one element of a rule expansion, either a terminal reference or
// a nonterminal reference. Symbols are comparable values.
type Symbol struct {
	Name       string
	IsTerminal bool
}

// Term references a terminal by name.
func Term(name string) Symbol {
	return Symbol{Name: name, IsTerminal: true}
}

// NonTerm references a nonterminal by name.
func NonTerm(name string) Symbol {
	return Symbol{Name: name, IsTerminal: false}
}

func (s Symbol) String() string {
	return s.Name
}

// RuleOptions adjust how a rule's reduction is shaped into a tree node.
type RuleOptions struct {
	// Collapse replaces the node with its only child when the rule reduces
	// to exactly one child, leaving no wrapper node. Injection rules are
	// always built this way.
	Collapse bool

	// KeepAllTokens retains tokens whose terminals are marked FilterOut.
	KeepAllTokens bool
}

// Rule is one production of a nonterminal.
type Rule struct {
	Origin    string
	Expansion []Symbol

	// Alias overrides the label of trees this rule produces. Empty means
	// the origin's own name.
	Alias string

	// Order is the rule's index among all rules of the same origin.
	Order int

	// Synthetic marks rules generated during augmentation. Synthetic rules
	// never contribute to label computation, so augmenting an already
	// augmented grammar changes nothing.
	Synthetic bool

	Options RuleOptions
}

// Label returns the output label of trees produced by this rule.
func (r *Rule) Label() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Origin
}

func (r *Rule) String() string {
	s := r.Origin + " :"
	for _, sym := range r.Expansion {
		s += " " + sym.Name
	}
	if r.Alias != "" {
		s += " -> " + r.Alias
	}
	return s
}

// sameExpansion reports whether the rule derives origin with exactly the
// given expansion, used to deduplicate synthesized rules.
func (r *Rule) sameExpansion(origin string, expansion []Symbol) bool {
	if r.Origin != origin || len(r.Expansion) != len(expansion) {
		return false
	}
	for i := range expansion {
		if r.Expansion[i] != expansion[i] {
			return false
		}
	}
	return true
}

// Grammar is a compiled grammar: terminal declarations, rules, and the names
// of terminals the lexer should drop. Values are immutable once built;
// augmentation returns a new value and leaves the receiver untouched.
type Grammar struct {
	terminals []*TerminalDef
	byName    map[string]*TerminalDef
	rules     []*Rule
	byOrigin  map[string][]*Rule
	ignore    []string

	// labels is the per-nonterminal output label mapping computed during
	// augmentation; nil for an unaugmented grammar.
	labels map[string][]string
}

// Terminals returns the terminal declarations in definition order.
func (g *Grammar) Terminals() []*TerminalDef {
	return g.terminals
}

// Terminal looks up a terminal declaration by name.
func (g *Grammar) Terminal(name string) (*TerminalDef, bool) {
	t, ok := g.byName[name]
	return t, ok
}

// Rules returns every rule in definition order.
func (g *Grammar) Rules() []*Rule {
	return g.rules
}

// RulesFor returns the rules deriving the given nonterminal.
func (g *Grammar) RulesFor(origin string) []*Rule {
	return g.byOrigin[origin]
}

// Ignore returns the terminal names dropped during static lexing.
func (g *Grammar) Ignore() []string {
	return g.ignore
}

// IsIgnored reports whether the named terminal is dropped during lexing.
func (g *Grammar) IsIgnored(name string) bool {
	for _, n := range g.ignore {
		if n == name {
			return true
		}
	}
	return false
}

// Labels returns the per-nonterminal output label sets computed during
// augmentation, or nil when the grammar has not been augmented. The returned
// map is a copy.
func (g *Grammar) Labels() map[string][]string {
	if g.labels == nil {
		return nil
	}
	out := make(map[string][]string, len(g.labels))
	for origin, labels := range g.labels {
		out[origin] = append([]string(nil), labels...)
	}
	return out
}

// LabelsFor returns the output labels the given nonterminal can produce.
// Empty for unaugmented grammars and for nonterminals with no rules.
func (g *Grammar) LabelsFor(origin string) []string {
	return g.labels[origin]
}

// clone copies the grammar's slices and indexes. Terminal and rule values
// are shared: they are never mutated after construction.
func (g *Grammar) clone() *Grammar {
	out := &Grammar{
		terminals: append([]*TerminalDef(nil), g.terminals...),
		byName:    make(map[string]*TerminalDef, len(g.byName)),
		rules:     append([]*Rule(nil), g.rules...),
		byOrigin:  make(map[string][]*Rule, len(g.byOrigin)),
		ignore:    append([]string(nil), g.ignore...),
	}
	for name, t := range g.byName {
		out.byName[name] = t
	}
	for origin, rules := range g.byOrigin {
		out.byOrigin[origin] = append([]*Rule(nil), rules...)
	}
	return out
}

// validate checks the grammar's internal consistency: resolvable expansion
// symbols and compilable regex patterns. All defects are reported together.
func (g *Grammar) validate() error {
	var result *multierror.Error
	for _, t := range g.terminals {
		switch t.Pattern.(type) {
		case PatternLiteral, PatternRegex:
			if isReservedTerminalName(t.Name) {
				result = multierror.Append(result, errors.Errorf("terminal %s: name is reserved for placeholder and injection matching", t.Name))
			}
		}
		re, ok := t.Pattern.(PatternRegex)
		if !ok {
			continue
		}
		if _, err := regexp.Compile(re.Expr); err != nil {
			result = multierror.Append(result, errors.Errorf("terminal %s: bad pattern: %w", t.Name, err))
		}
	}
	for _, r := range g.rules {
		for _, sym := range r.Expansion {
			if sym.IsTerminal {
				if _, ok := g.byName[sym.Name]; !ok && sym.Name != ObjectTerminal {
					result = multierror.Append(result, errors.Errorf("rule %s: undefined terminal %s", r, sym.Name))
				}
				continue
			}
			if len(g.byOrigin[sym.Name]) == 0 {
				result = multierror.Append(result, errors.Errorf("rule %s: undefined nonterminal %s", r, sym.Name))
			}
		}
	}
	for _, name := range g.ignore {
		if _, ok := g.byName[name]; !ok {
			result = multierror.Append(result, errors.Errorf("ignored terminal %s is not declared", name))
		}
	}
	return result.ErrorOrNil()
}
