package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/token"
	"github.com/walteh/tmplgram/pkg/tree"
)

func TestConstructors(t *testing.T) {
	ix := source.NewIndex("demo.txt", "print(42)")

	t.Run("test_lexed", func(t *testing.T) {
		tok := token.NewLexed("NUMBER", "42", ix.Span(6, 8))
		assert.Equal(t, token.Lexed, tok.Kind)
		assert.Equal(t, "42", tok.Text)
		assert.Equal(t, 6, tok.Span().Start)
		assert.Equal(t, `"42"`, tok.String())
	})

	t.Run("test_placeholder", func(t *testing.T) {
		tok := token.NewPlaceholder("OBJECT", 42, ix.Span(6, 8))
		assert.Equal(t, token.Placeholder, tok.Kind)
		assert.Equal(t, 42, tok.Object)
		assert.Equal(t, "<object 42>", tok.String())
	})

	t.Run("test_splice", func(t *testing.T) {
		sub := tree.New("add", nil)
		tok := token.NewSplice("TREE__ADD", sub, ix.Span(0, 9))
		assert.Equal(t, token.Splice, tok.Kind)
		assert.Same(t, sub, tok.Subtree)
		assert.Equal(t, "<splice add>", tok.String())
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "lexed", token.Lexed.String())
	assert.Equal(t, "placeholder", token.Placeholder.String())
	assert.Equal(t, "splice", token.Splice.String())
}

func TestLeafEqual(t *testing.T) {
	span := source.Span{Start: 1, End: 2, StartLine: 1, StartCol: 2, EndLine: 1, EndCol: 3}

	tests := []struct {
		name string
		a    token.Token
		b    tree.Node
		want bool
	}{
		{
			name: "test_lexed_same_text",
			a:    token.NewLexed("NUMBER", "42", source.Span{}),
			b:    token.NewLexed("NUMBER", "42", span),
			want: true,
		},
		{
			name: "test_lexed_different_text",
			a:    token.NewLexed("NUMBER", "42", source.Span{}),
			b:    token.NewLexed("NUMBER", "43", source.Span{}),
			want: false,
		},
		{
			name: "test_different_terminal",
			a:    token.NewLexed("NUMBER", "42", source.Span{}),
			b:    token.NewLexed("IDENT", "42", source.Span{}),
			want: false,
		},
		{
			name: "test_kind_mismatch",
			a:    token.NewLexed("OBJECT", "42", source.Span{}),
			b:    token.NewPlaceholder("OBJECT", "42", source.Span{}),
			want: false,
		},
		{
			name: "test_placeholder_deep_payload",
			a:    token.NewPlaceholder("OBJECT", []int{1, 2}, source.Span{}),
			b:    token.NewPlaceholder("OBJECT", []int{1, 2}, span),
			want: true,
		},
		{
			name: "test_splice_structural",
			a:    token.NewSplice("TREE__ADD", tree.New("add", nil), source.Span{}),
			b:    token.NewSplice("TREE__ADD", tree.New("add", nil), span),
			want: true,
		},
		{
			name: "test_not_a_token",
			a:    token.NewLexed("NUMBER", "42", source.Span{}),
			b:    tree.New("NUMBER", nil),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.LeafEqual(tt.b))
		})
	}
}
