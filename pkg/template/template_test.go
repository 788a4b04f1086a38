package template_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/template"
	"github.com/walteh/tmplgram/pkg/token"
	"github.com/walteh/tmplgram/pkg/tree"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	return logger.WithContext(context.Background())
}

// exprParser covers a small arithmetic language where expr can also produce
// the alias label add.
func exprParser(t *testing.T) *template.Parser {
	t.Helper()
	b := grammar.NewBuilder()
	b.Regex("NUMBER", `\d+`)
	b.Regex("WS", `\s+`)
	b.Ignore("WS")
	b.Rule("expr", []grammar.Symbol{grammar.NonTerm("term")}, grammar.WithCollapse())
	b.Rule("expr", []grammar.Symbol{grammar.NonTerm("expr"), b.Lit("+"), grammar.NonTerm("term")}, grammar.WithAlias("add"))
	b.Rule("term", []grammar.Symbol{grammar.Term("NUMBER")}, grammar.WithCollapse())
	g, err := b.Build()
	require.NoError(t, err)

	p, err := template.NewParser(g)
	require.NoError(t, err)
	return p
}

func printParser(t *testing.T) *template.Parser {
	t.Helper()
	b := grammar.NewBuilder()
	b.Regex("WS", `\s+`)
	b.Ignore("WS")
	b.Object()
	b.Rule("start", []grammar.Symbol{b.Lit("print"), b.Lit("("), grammar.Term(grammar.ObjectTerminal), b.Lit(")")})
	g, err := b.Build()
	require.NoError(t, err)

	p, err := template.NewParser(g)
	require.NoError(t, err)
	return p
}

func TestParseTemplate(t *testing.T) {
	ctx := testContext(t)

	t.Run("test_object_interpolation", func(t *testing.T) {
		p := printParser(t)
		tmpl := template.NewBuilder().Static("print(").Object(42).Static(")").Build()

		node, err := p.Parse(ctx, tmpl, "start")
		require.NoError(t, err)

		start, ok := node.(*tree.Tree)
		require.True(t, ok)
		assert.Equal(t, "start", start.Label)
		require.Len(t, start.Children, 1, "print, ( and ) are filtered; only the object slot remains")
		tok := start.Children[0].(token.Token)
		assert.Equal(t, token.Placeholder, tok.Kind)
		assert.Equal(t, 42, tok.Object)
	})

	t.Run("test_object_of_any_host_type", func(t *testing.T) {
		p := printParser(t)
		payloads := []any{"string", []int{1, 2, 3}, map[string]int{"a": 1}, nil}
		for _, payload := range payloads {
			tmpl := template.NewBuilder().Static("print(").Object(payload).Static(")").Build()
			node, err := p.Parse(ctx, tmpl, "start")
			require.NoError(t, err)
			tok := node.(*tree.Tree).Children[0].(token.Token)
			assert.Equal(t, payload, tok.Object)
		}
	})

	t.Run("test_static_only_equals_plain_text", func(t *testing.T) {
		p := exprParser(t)
		tmpl := template.NewBuilder().Static("1 + 2").Build()

		fromTemplate, err := p.Parse(ctx, tmpl, "expr")
		require.NoError(t, err)
		fromText, err := p.ParseText(ctx, "", "1 + 2", "expr")
		require.NoError(t, err)

		assert.True(t, tree.Equal(fromTemplate, fromText), "template %s != text %s", fromTemplate, fromText)
	})

	t.Run("test_consecutive_objects", func(t *testing.T) {
		b := grammar.NewBuilder()
		b.Object()
		b.Rule("start", []grammar.Symbol{grammar.Term(grammar.ObjectTerminal), grammar.Term(grammar.ObjectTerminal)})
		g, err := b.Build()
		require.NoError(t, err)
		p, err := template.NewParser(g)
		require.NoError(t, err)

		tmpl := template.NewBuilder().Object("a").Object("b").Build()
		node, err := p.Parse(ctx, tmpl, "start")
		require.NoError(t, err)

		start := node.(*tree.Tree)
		require.Len(t, start.Children, 2, "consecutive interpolations stay distinct")
		assert.Equal(t, "a", start.Children[0].(token.Token).Object)
		assert.Equal(t, "b", start.Children[1].(token.Token).Object)
	})

	t.Run("test_splice_prior_parse_result", func(t *testing.T) {
		p := exprParser(t)
		sub, err := p.ParseText(ctx, "", "1 + 2", "expr")
		require.NoError(t, err)
		subTree := sub.(*tree.Tree)
		require.Equal(t, "add", subTree.Label)

		tmpl := template.NewBuilder().Splice(subTree).Static(" + 3").Build()
		node, err := p.Parse(ctx, tmpl, "expr")
		require.NoError(t, err)

		outer := node.(*tree.Tree)
		assert.Equal(t, "add", outer.Label)
		require.Len(t, outer.Children, 2)
		assert.Same(t, subTree, outer.Children[0], "the exact subtree, unchanged and unwrapped")
	})

	t.Run("test_splice_only_template", func(t *testing.T) {
		p := exprParser(t)
		sub, err := p.ParseText(ctx, "", "1 + 2", "expr")
		require.NoError(t, err)
		subTree := sub.(*tree.Tree)

		tmpl := template.NewBuilder().Splice(subTree).Build()
		node, err := p.Parse(ctx, tmpl, "expr")
		require.NoError(t, err)

		assert.Same(t, subTree, node, "a lone splice yields the subtree itself, no wrapper")
	})

	t.Run("test_splice_of_spliced_result", func(t *testing.T) {
		p := exprParser(t)
		sub, err := p.ParseText(ctx, "", "1 + 2", "expr")
		require.NoError(t, err)

		mid, err := p.Parse(ctx, template.NewBuilder().Splice(sub.(*tree.Tree)).Static(" + 3").Build(), "expr")
		require.NoError(t, err)

		final, err := p.Parse(ctx, template.NewBuilder().Splice(mid.(*tree.Tree)).Static(" + 4").Build(), "expr")
		require.NoError(t, err)

		direct, err := p.ParseText(ctx, "", "1 + 2 + 3 + 4", "expr")
		require.NoError(t, err)
		assert.True(t, tree.Equal(final, direct), "splicing spliced results composes: %s != %s", final, direct)
	})

	t.Run("test_unexpected_placeholder", func(t *testing.T) {
		p := exprParser(t)

		ix := source.NewIndex("demo.txt", "1 + {x}")
		tmpl, err := template.FromSource(ix, [][2]int{{0, 4}, {7, 7}}, []template.Value{
			template.HostObject{Payload: "x", Expr: ix.Span(4, 7)},
		})
		require.NoError(t, err)

		_, err = p.Parse(ctx, tmpl, "expr")
		require.Error(t, err)

		var placeErr *template.UnexpectedPlaceholderError
		require.ErrorAs(t, err, &placeErr)
		assert.Equal(t, 4, placeErr.Span.Start, "span is the interpolation's own, not a neighbor's")
		assert.Equal(t, 7, placeErr.Span.End)
		assert.Equal(t, "string", placeErr.GoType)
		assert.Contains(t, placeErr.Expected, "NUMBER")
	})

	t.Run("test_unexpected_splice_label", func(t *testing.T) {
		p := exprParser(t)
		wrong := tree.New("wrong_label", nil)

		tmpl := template.NewBuilder().Splice(wrong).Static(" + 3").Build()
		_, err := p.Parse(ctx, tmpl, "expr")
		require.Error(t, err)

		var spliceErr *template.UnexpectedSpliceError
		require.ErrorAs(t, err, &spliceErr)
		assert.Equal(t, "wrong_label", spliceErr.Label)
	})

	t.Run("test_plain_text_spans_carry_filename", func(t *testing.T) {
		p := exprParser(t)
		node, err := p.ParseText(ctx, "math.txt", "1 + 2", "expr")
		require.NoError(t, err)

		span := node.Span()
		assert.Equal(t, "math.txt", span.Filename)
		assert.Equal(t, 0, span.Start)
		assert.Equal(t, 5, span.End)
	})
}

func TestTypedPlaceholders(t *testing.T) {
	ctx := testContext(t)

	type image struct {
		path string
	}

	// A paint grammar: stroke and fill are either numeric colors or
	// interpolated image objects.
	paintParser := func(t *testing.T) *template.Parser {
		b := grammar.NewBuilder()
		b.Regex("NUMBER", `\d+`)
		b.Regex("WS", `\s+`)
		b.Ignore("WS")
		b.TypedObject("image")
		b.Rule("object", []grammar.Symbol{
			b.Lit("object"), b.Lit("{"),
			b.Lit("stroke"), b.Lit(":"), grammar.NonTerm("paint"),
			b.Lit("fill"), b.Lit(":"), grammar.NonTerm("paint"),
			b.Lit("}"),
		})
		b.Rule("paint", []grammar.Symbol{grammar.NonTerm("color")}, grammar.WithCollapse())
		b.Rule("paint", []grammar.Symbol{grammar.Term("OBJECT__IMAGE")}, grammar.WithAlias("image"))
		b.Rule("color", []grammar.Symbol{
			grammar.Term("NUMBER"), b.Lit(","), grammar.Term("NUMBER"), b.Lit(","), grammar.Term("NUMBER"),
		})
		g, err := b.Build()
		require.NoError(t, err)

		p, err := template.NewParser(g, template.WithTypeCheck("image", func(v any) bool {
			_, ok := v.(image)
			return ok
		}))
		require.NoError(t, err)
		return p
	}

	t.Run("test_static_colors", func(t *testing.T) {
		p := paintParser(t)
		node, err := p.ParseText(ctx, "", "object { stroke: 255,0,0 fill: 0,255,0 }", "object")
		require.NoError(t, err)

		obj := node.(*tree.Tree)
		require.Len(t, obj.Children, 2)
		assert.Equal(t, "color", obj.Children[0].(*tree.Tree).Label)
		assert.Equal(t, "color", obj.Children[1].(*tree.Tree).Label)
	})

	t.Run("test_matching_type_accepted", func(t *testing.T) {
		p := paintParser(t)
		texture := image{path: "wood.png"}
		gradient := image{path: "gradient.png"}

		tmpl := template.NewBuilder().
			Static("object { stroke: ").Object(texture).
			Static(" fill: ").Object(gradient).
			Static(" }").Build()
		node, err := p.Parse(ctx, tmpl, "object")
		require.NoError(t, err)

		obj := node.(*tree.Tree)
		stroke := obj.Children[0].(*tree.Tree)
		fill := obj.Children[1].(*tree.Tree)
		assert.Equal(t, "image", stroke.Label)
		assert.Equal(t, "image", fill.Label)
		assert.Equal(t, texture, stroke.Children[0].(token.Token).Object)
		assert.Equal(t, gradient, fill.Children[0].(token.Token).Object)
	})

	t.Run("test_mixed_color_and_image", func(t *testing.T) {
		p := paintParser(t)
		tmpl := template.NewBuilder().
			Static("object { stroke: ").Object(image{path: "wood.png"}).
			Static(" fill: 0,0,255 }").Build()
		node, err := p.Parse(ctx, tmpl, "object")
		require.NoError(t, err)

		obj := node.(*tree.Tree)
		assert.Equal(t, "image", obj.Children[0].(*tree.Tree).Label)
		assert.Equal(t, "color", obj.Children[1].(*tree.Tree).Label)
	})

	t.Run("test_type_mismatch_is_positioned_error", func(t *testing.T) {
		p := paintParser(t)
		tmpl := template.NewBuilder().
			Static("object { stroke: ").Object("not an image").
			Static(" fill: 0,0,255 }").Build()
		_, err := p.Parse(ctx, tmpl, "object")
		require.Error(t, err)

		var placeErr *template.UnexpectedPlaceholderError
		require.ErrorAs(t, err, &placeErr)
		assert.Equal(t, "string", placeErr.GoType)
	})

	t.Run("test_missing_type_check_fails_construction", func(t *testing.T) {
		b := grammar.NewBuilder()
		b.TypedObject("image")
		b.TypedObject("gradient")
		b.Rule("start", []grammar.Symbol{grammar.Term("OBJECT__IMAGE"), grammar.Term("OBJECT__GRADIENT")})
		g, err := b.Build()
		require.NoError(t, err)

		_, err = template.NewParser(g)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image", "every missing check is reported")
		assert.Contains(t, err.Error(), "gradient")
	})

	t.Run("test_untyped_object_still_matches_anything", func(t *testing.T) {
		b := grammar.NewBuilder()
		b.Object()
		b.TypedObject("image")
		b.Rule("start", []grammar.Symbol{grammar.Term(grammar.ObjectTerminal)})
		g, err := b.Build()
		require.NoError(t, err)

		p, err := template.NewParser(g, template.WithTypeCheck("image", func(v any) bool {
			_, ok := v.(image)
			return ok
		}))
		require.NoError(t, err)

		node, err := p.Parse(ctx, template.NewBuilder().Object("anything").Build(), "start")
		require.NoError(t, err)
		assert.Equal(t, "anything", node.(*tree.Tree).Children[0].(token.Token).Object)
	})
}

func TestResolveSplices(t *testing.T) {
	sub := tree.New("add", nil)

	t.Run("test_replaces_splice_tokens", func(t *testing.T) {
		parsed := tree.New("start", []tree.Node{
			token.NewSplice("TREE__ADD", sub, source.Span{}),
		})
		out := template.ResolveSplices(parsed)
		assert.Same(t, sub, out.(*tree.Tree).Children[0])
	})

	t.Run("test_root_splice_token", func(t *testing.T) {
		out := template.ResolveSplices(token.NewSplice("TREE__ADD", sub, source.Span{}))
		assert.Same(t, sub, out)
	})

	t.Run("test_idempotent", func(t *testing.T) {
		parsed := tree.New("start", []tree.Node{
			token.NewSplice("TREE__ADD", sub, source.Span{}),
		})
		once := template.ResolveSplices(parsed)
		twice := template.ResolveSplices(once)
		assert.True(t, tree.Equal(once, twice))
	})

	t.Run("test_lexed_tokens_untouched", func(t *testing.T) {
		leaf := token.NewLexed("NUMBER", "1", source.Span{})
		parsed := tree.New("start", []tree.Node{leaf})
		out := template.ResolveSplices(parsed)
		assert.Equal(t, leaf, out.(*tree.Tree).Children[0])
	})
}
