package grammar

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
)

// ObjectTerminal is the designated terminal name for untyped object
// placeholders. Rules may reference it without declaring it; the term
// matcher recognizes it by name.
const ObjectTerminal = "OBJECT"

const (
	objectPrefix    = ObjectTerminal + "__"
	injectionPrefix = "TREE__"
)

// SanitizeName normalizes a label or type name for use in a terminal name:
// non-alphanumeric runes become underscores and letters upper-case. Distinct
// names can normalize to the same terminal name; augmentation reports that
// as a collision rather than silently sharing the terminal.
func SanitizeName(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// InjectionTerminalName returns the name of the synthetic terminal that
// accepts spliced subtrees labeled label. The derivation is a pure function
// of the label, so a linearizer can name the terminal without consulting the
// grammar.
func InjectionTerminalName(label string) string {
	return injectionPrefix + SanitizeName(label)
}

// ObjectTerminalName returns the name of the qualified object-placeholder
// terminal for the given type-check name.
func ObjectTerminalName(typeName string) string {
	return objectPrefix + SanitizeName(typeName)
}

// isReservedTerminalName reports whether the name is claimed by the matcher
// for placeholder or injection tokens and so may not name a text terminal.
func isReservedTerminalName(name string) bool {
	return name == ObjectTerminal ||
		strings.HasPrefix(name, objectPrefix) ||
		strings.HasPrefix(name, injectionPrefix)
}

// AugmentError reports invariant violations found while augmenting a
// grammar. It is fatal: parser construction aborts before any template is
// parsed.
type AugmentError struct {
	Defects error
}

func (e *AugmentError) Error() string {
	return "grammar augmentation failed: " + e.Defects.Error()
}

func (e *AugmentError) Unwrap() error {
	return e.Defects
}

// Augment returns a copy of g extended so every nonterminal also accepts
// ready-made subtrees carrying a label it can produce. The copy gains one
// injection terminal per distinct label, shared across nonterminals, and one
// collapsing injection rule per (nonterminal, label) pair, plus the
// per-nonterminal label mapping. g itself is left untouched and remains
// usable unaugmented.
//
// Augmentation is deterministic and idempotent: augmenting the result again
// yields the same label sets, terminals, and rules.
func Augment(g *Grammar) (*Grammar, error) {
	out := g.clone()

	// Label sets, in rule definition order. Synthetic rules from a prior
	// augmentation are skipped so they cannot feed labels back in.
	labels := map[string][]string{}
	var origins, global []string
	seenLabel := map[string]bool{}
	for _, r := range out.rules {
		if r.Synthetic {
			continue
		}
		if _, ok := labels[r.Origin]; !ok {
			origins = append(origins, r.Origin)
		}
		label := r.Label()
		if !containsString(labels[r.Origin], label) {
			labels[r.Origin] = append(labels[r.Origin], label)
		}
		if !seenLabel[label] {
			seenLabel[label] = true
			global = append(global, label)
		}
	}

	var defects *multierror.Error

	// One injection terminal per distinct label. An existing terminal of the
	// same name is reused only when it is the injection terminal for exactly
	// this label; anything else is a collision.
	for _, label := range global {
		name := InjectionTerminalName(label)
		if existing, ok := out.byName[name]; ok {
			sub, isSub := existing.Pattern.(PatternSubtree)
			if !isSub || sub.Label != label {
				defects = multierror.Append(defects, errors.Errorf(
					"injection terminal %s for label %q collides with existing terminal %s", name, label, existing.Pattern))
			}
			continue
		}
		def := &TerminalDef{Name: name, Pattern: PatternSubtree{Label: label}}
		out.terminals = append(out.terminals, def)
		out.byName[name] = def
	}

	if err := defects.ErrorOrNil(); err != nil {
		return nil, &AugmentError{Defects: err}
	}

	// One collapsing rule per (nonterminal, label) pair, deduplicated
	// against anything the grammar already derives the same way.
	for _, origin := range origins {
		for _, label := range labels[origin] {
			expansion := []Symbol{Term(InjectionTerminalName(label))}
			if out.hasExpansion(origin, expansion) {
				continue
			}
			r := &Rule{
				Origin:    origin,
				Expansion: expansion,
				Order:     len(out.byOrigin[origin]),
				Synthetic: true,
				Options:   RuleOptions{Collapse: true},
			}
			out.rules = append(out.rules, r)
			out.byOrigin[origin] = append(out.byOrigin[origin], r)
		}
	}

	out.labels = labels
	return out, nil
}

func (g *Grammar) hasExpansion(origin string, expansion []Symbol) bool {
	for _, r := range g.byOrigin[origin] {
		if r.sameExpansion(origin, expansion) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
