// Package earley implements the chart parser the template pipeline feeds.
//
// The parser consumes a pre-built token stream rather than text, and decides
// whether a token satisfies a terminal through a caller-supplied matcher, so
// the same engine parses ordinary lexed tokens, object placeholders, and
// subtree splices without knowing the difference. Ambiguity is resolved
// deterministically by taking the first viable derivation in rule order.
package earley

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/token"
	"github.com/walteh/tmplgram/pkg/tree"
	"gitlab.com/tozd/go/errors"
)

// TermMatcher decides whether a token satisfies a terminal name. It replaces
// the usual text comparison so synthetic token kinds can be matched.
type TermMatcher func(terminal string, tok token.Token) bool

// MatchByName is the plain matcher: a lexed token satisfies exactly the
// terminal it was lexed as.
func MatchByName(terminal string, tok token.Token) bool {
	return tok.Kind == token.Lexed && tok.Terminal == terminal
}

// ParseError reports the first token the grammar cannot accept. Expected
// lists the terminal names that would have been accepted at that point.
type ParseError struct {
	Token    token.Token
	Index    int
	Expected []string
	EOF      bool
}

func (e *ParseError) Error() string {
	expected := ""
	if len(e.Expected) > 0 {
		expected = ", expected " + strings.Join(e.Expected, ", ")
	}
	if e.EOF {
		return fmt.Sprintf("unexpected end of input%s", expected)
	}
	return fmt.Sprintf("%s: unexpected token %s%s", e.Token.Meta, e.Token, expected)
}

// Position returns the offending token's source span.
func (e *ParseError) Position() source.Span {
	return e.Token.Meta
}

// Parser parses token streams against one grammar. It is read-only after
// construction and safe for concurrent use.
type Parser struct {
	g       *grammar.Grammar
	matcher TermMatcher

	// nullRule maps each nullable nonterminal to the rule that first made it
	// nullable, used to materialize empty derivations deterministically.
	nullRule map[string]*grammar.Rule
}

// New builds a parser for g using the given matcher. A nil matcher matches
// lexed tokens by terminal name.
func New(g *grammar.Grammar, matcher TermMatcher) *Parser {
	if matcher == nil {
		matcher = MatchByName
	}
	return &Parser{
		g:        g,
		matcher:  matcher,
		nullRule: nullableRules(g),
	}
}

// nullableRules computes, for every nonterminal that can derive the empty
// string, the first rule establishing that, by fixpoint. The recorded rule's
// symbols were all nullable before the rule was admitted, so rebuilding an
// empty derivation from the map always terminates.
func nullableRules(g *grammar.Grammar) map[string]*grammar.Rule {
	out := map[string]*grammar.Rule{}
	for changed := true; changed; {
		changed = false
		for _, r := range g.Rules() {
			if _, done := out[r.Origin]; done {
				continue
			}
			allNullable := true
			for _, sym := range r.Expansion {
				if sym.IsTerminal {
					allNullable = false
					break
				}
				if _, ok := out[sym.Name]; !ok {
					allNullable = false
					break
				}
			}
			if allNullable {
				out[r.Origin] = r
				changed = true
			}
		}
	}
	return out
}

type state struct {
	rule   *grammar.Rule
	dot    int
	origin int

	// prev and cause record the first derivation found: how this state's
	// last symbol was satisfied. cause is a token index, a completed child
	// *state, or a nullCause.
	prev  *state
	cause any
}

type nullCause struct {
	origin string
}

type stateKey struct {
	rule   *grammar.Rule
	dot    int
	origin int
}

type stateSet struct {
	items []*state
	seen  map[stateKey]bool
}

func newStateSet() *stateSet {
	return &stateSet{seen: map[stateKey]bool{}}
}

// add keeps the first state for each (rule, dot, origin), which makes
// derivations deterministic: earlier rules and earlier completions win.
func (s *stateSet) add(st *state) {
	key := stateKey{rule: st.rule, dot: st.dot, origin: st.origin}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, st)
}

// Parse consumes the whole token stream and returns the parse tree for the
// start nonterminal, or a ParseError at the first unacceptable token.
func (p *Parser) Parse(ctx context.Context, tokens []token.Token, start string) (tree.Node, error) {
	startRules := p.g.RulesFor(start)
	if len(startRules) == 0 {
		return nil, errors.Errorf("unknown start rule %q", start)
	}

	sets := make([]*stateSet, len(tokens)+1)
	sets[0] = newStateSet()
	for _, r := range startRules {
		sets[0].add(&state{rule: r, dot: 0, origin: 0})
	}

	for i := 0; i <= len(tokens); i++ {
		set := sets[i]
		for idx := 0; idx < len(set.items); idx++ {
			st := set.items[idx]
			if st.dot < len(st.rule.Expansion) {
				sym := st.rule.Expansion[st.dot]
				if sym.IsTerminal {
					continue
				}
				// Predict.
				for _, r := range p.g.RulesFor(sym.Name) {
					set.add(&state{rule: r, dot: 0, origin: i})
				}
				// A nullable nonterminal may be satisfied by nothing at
				// all; advancing here covers completions that would
				// otherwise land in this same set too late to be seen.
				if _, ok := p.nullRule[sym.Name]; ok {
					set.add(&state{
						rule:   st.rule,
						dot:    st.dot + 1,
						origin: st.origin,
						prev:   st,
						cause:  nullCause{origin: sym.Name},
					})
				}
				continue
			}
			// Complete.
			for _, cand := range sets[st.origin].items {
				if cand.dot >= len(cand.rule.Expansion) {
					continue
				}
				sym := cand.rule.Expansion[cand.dot]
				if sym.IsTerminal || sym.Name != st.rule.Origin {
					continue
				}
				set.add(&state{
					rule:   cand.rule,
					dot:    cand.dot + 1,
					origin: cand.origin,
					prev:   cand,
					cause:  st,
				})
			}
		}

		if i == len(tokens) {
			break
		}

		// Scan.
		next := newStateSet()
		for _, st := range set.items {
			if st.dot >= len(st.rule.Expansion) {
				continue
			}
			sym := st.rule.Expansion[st.dot]
			if !sym.IsTerminal {
				continue
			}
			if p.matcher(sym.Name, tokens[i]) {
				next.add(&state{
					rule:   st.rule,
					dot:    st.dot + 1,
					origin: st.origin,
					prev:   st,
					cause:  i,
				})
			}
		}
		if len(next.items) == 0 {
			return nil, &ParseError{
				Token:    tokens[i],
				Index:    i,
				Expected: expectedTerminals(set),
			}
		}
		sets[i+1] = next
	}

	final := sets[len(tokens)]
	for _, st := range final.items {
		if st.rule.Origin == start && st.origin == 0 && st.dot == len(st.rule.Expansion) {
			zerolog.Ctx(ctx).Trace().
				Int("tokens", len(tokens)).
				Str("start", start).
				Msg("parse accepted")
			return p.build(st, tokens), nil
		}
	}

	err := &ParseError{Index: len(tokens), Expected: expectedTerminals(final), EOF: true}
	if n := len(tokens); n > 0 {
		// Anchor the end-of-input error at the last token.
		err.Token = tokens[n-1]
		err.Index = n - 1
	}
	return nil, err
}

func expectedTerminals(set *stateSet) []string {
	seen := map[string]bool{}
	var out []string
	for _, st := range set.items {
		if st.dot >= len(st.rule.Expansion) {
			continue
		}
		sym := st.rule.Expansion[st.dot]
		if !sym.IsTerminal || seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true
		out = append(out, sym.Name)
	}
	sort.Strings(out)
	return out
}

// build materializes the derivation recorded on a completed state. Children
// are collected by walking the prev chain back to the rule's start.
func (p *Parser) build(st *state, tokens []token.Token) tree.Node {
	children := make([]tree.Node, st.dot)
	for cur := st; cur != nil && cur.dot > 0; cur = cur.prev {
		var child tree.Node
		switch c := cur.cause.(type) {
		case int:
			child = tokens[c]
		case *state:
			child = p.build(c, tokens)
		case nullCause:
			child = p.buildEmpty(c.origin)
		}
		children[cur.dot-1] = child
	}
	return p.shape(st.rule, children)
}

// buildEmpty materializes the canonical empty derivation of a nullable
// nonterminal.
func (p *Parser) buildEmpty(origin string) tree.Node {
	r := p.nullRule[origin]
	children := make([]tree.Node, 0, len(r.Expansion))
	for _, sym := range r.Expansion {
		children = append(children, p.buildEmpty(sym.Name))
	}
	return p.shape(r, children)
}

// shape filters punctuation and applies the rule's collapse option.
func (p *Parser) shape(r *grammar.Rule, children []tree.Node) tree.Node {
	kept := children
	if !r.Options.KeepAllTokens {
		kept = make([]tree.Node, 0, len(children))
		for _, child := range children {
			if tok, ok := child.(token.Token); ok && tok.Kind == token.Lexed {
				if def, declared := p.g.Terminal(tok.Terminal); declared && def.FilterOut {
					continue
				}
			}
			kept = append(kept, child)
		}
	}
	return tree.Build(r.Label(), kept, r.Options.Collapse)
}
