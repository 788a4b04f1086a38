package template

import (
	"github.com/walteh/tmplgram/pkg/token"
	"github.com/walteh/tmplgram/pkg/tree"
)

// ResolveSplices replaces every splice token in a parse tree with the
// subtree it carries, so the result is shaped exactly as if the subtree had
// been parsed from ordinary input. Injection rules collapse during tree
// construction, so no synthetic wrapper nodes remain either. Replacement is
// purely local: carried subtrees are final and are not descended into. The
// pass is idempotent, a tree without splice tokens passes through unchanged.
func ResolveSplices(node tree.Node) tree.Node {
	if tok, ok := spliceToken(node); ok {
		return tok.Subtree
	}
	t, ok := node.(*tree.Tree)
	if !ok {
		return node
	}
	resolveIn(t)
	return t
}

func resolveIn(t *tree.Tree) {
	for i, child := range t.Children {
		if tok, ok := spliceToken(child); ok {
			t.Children[i] = tok.Subtree
			continue
		}
		if sub, ok := child.(*tree.Tree); ok {
			resolveIn(sub)
		}
	}
}

func spliceToken(node tree.Node) (token.Token, bool) {
	tok, ok := node.(token.Token)
	if !ok || tok.Kind != token.Splice || tok.Subtree == nil {
		return token.Token{}, false
	}
	return tok, true
}
