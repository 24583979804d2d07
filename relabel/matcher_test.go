package relabel

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sloganeer/dom"
)

func newMatchers(t *testing.T, labels, slogans []string) (*TextMatcher, *ValueMatcher) {
	t.Helper()
	picker, err := NewPicker(slogans, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	set := NewLabelSet(labels)
	return NewTextMatcher(set, picker, nil), NewValueMatcher(set, picker, nil)
}

func assertOverridden(t *testing.T, doc *dom.Document, id string) {
	t.Helper()
	el := findByID(t, doc, id)
	for _, d := range OverrideDeclarations() {
		val, important := dom.StyleProperty(el, d.Property)
		assert.Equal(t, d.Value, val, d.Property)
		assert.True(t, important, d.Property)
	}
}

func TestSplitPadding(t *testing.T) {
	lead, core, trail := splitPadding("  Buy Now\n")
	assert.Equal(t, "  ", lead)
	assert.Equal(t, "Buy Now", core)
	assert.Equal(t, "\n", trail)

	lead, core, trail = splitPadding("\uFEFFBuy Now\u00a0")
	assert.Equal(t, "\uFEFF", lead)
	assert.Equal(t, "Buy Now", core)
	assert.Equal(t, "\u00a0", trail)

	lead, core, trail = splitPadding(" \t ")
	assert.Equal(t, " \t ", lead)
	assert.Empty(t, core)
	assert.Empty(t, trail)
}

func TestTryReplaceCaseInsensitive(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy Now"}, []string{"obey"})
	for _, in := range []string{"Buy Now", "BUY NOW", "buy now"} {
		tree, doc := newTestTree(t, `<button id="b">`+in+`</button>`)
		frag := tree.Node(findByID(t, doc, "b").FirstChild)
		require.True(t, text.TryReplace(frag), in)
		assert.Equal(t, "OBEY", frag.Text())
	}
}

func TestTryReplaceLeavesNonMatches(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy Now"}, []string{"obey"})
	tree, doc := newTestTree(t, `<button id="b">Buy Now please</button>`)
	frag := tree.Node(findByID(t, doc, "b").FirstChild)
	assert.False(t, text.TryReplace(frag))
	assert.Equal(t, "Buy Now please", frag.Text())
	_, ok := dom.StyleProperty(findByID(t, doc, "b"), "background-color")
	assert.False(t, ok)
	assert.Zero(t, text.Replaced())
}

func TestTryReplaceKeepsWhitespace(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy Now"}, []string{"Buy Later, Maybe.", "Obey"})
	tree, doc := newTestTree(t, "<button id=\"b\">  Buy Now\n</button>")
	frag := tree.Node(findByID(t, doc, "b").FirstChild)
	require.True(t, text.TryReplace(frag))
	assert.Regexp(t, regexp.MustCompile(`^  [A-Z ,.]+\n$`), frag.Text())
}

func TestTryReplaceIsIdempotent(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy Now"}, []string{"obey"})
	tree, doc := newTestTree(t, `<button id="b">Buy Now</button>`)
	frag := tree.Node(findByID(t, doc, "b").FirstChild)
	require.True(t, text.TryReplace(frag))
	style := dom.Attr(findByID(t, doc, "b"), "style")
	assert.False(t, text.TryReplace(frag))
	assert.Equal(t, "OBEY", frag.Text())
	assert.Equal(t, style, dom.Attr(findByID(t, doc, "b"), "style"))
	assert.Equal(t, uint64(1), text.Replaced())
}

func TestTryReplaceStylesEnclosingControl(t *testing.T) {
	text, _ := newMatchers(t, []string{"Add to Cart"}, []string{"obey"})
	tree, doc := newTestTree(t, `<a id="a" href="#"><span id="s"><b id="in">Add to Cart</b></span></a>`)
	require.True(t, text.TryReplace(tree.Node(findByID(t, doc, "in").FirstChild)))
	assertOverridden(t, doc, "a")
	assert.Empty(t, dom.Attr(findByID(t, doc, "in"), "style"))
}

func TestTryReplaceFallsBackToParent(t *testing.T) {
	text, _ := newMatchers(t, []string{"Checkout"}, []string{"obey"})
	tree, doc := newTestTree(t, `<div><p id="p">Checkout</p></div>`)
	require.True(t, text.TryReplace(tree.Node(findByID(t, doc, "p").FirstChild)))
	assertOverridden(t, doc, "p")
}

func TestTryReplaceIgnoresElements(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy"}, []string{"obey"})
	tree, doc := newTestTree(t, `<p id="p">Buy</p>`)
	assert.False(t, text.TryReplace(tree.Node(findByID(t, doc, "p"))))
	assert.False(t, text.TryReplace(nil))
}

type failingText struct {
	Node
	text string
}

func (f failingText) Kind() NodeKind       { return TextNode }
func (f failingText) Text() string         { return f.text }
func (f failingText) SetText(string) error { return errors.New("detached") }
func (f failingText) Parent() Node         { return nil }

func TestTryReplaceWriteFailure(t *testing.T) {
	text, _ := newMatchers(t, []string{"Buy"}, []string{"obey"})
	assert.False(t, text.TryReplace(failingText{text: "Buy"}))
	assert.Zero(t, text.Replaced())
}

func TestTryReplaceValue(t *testing.T) {
	_, value := newMatchers(t, []string{"Checkout"}, []string{"obey"})
	tree, doc := newTestTree(t, `<form><input id="x" type="submit" value=" checkout "><input id="t" type="text" value="Checkout"></form>`)

	ctl := tree.Node(findByID(t, doc, "x"))
	require.True(t, value.TryReplaceValue(ctl))
	assert.Equal(t, "OBEY", ctl.Value())
	assertOverridden(t, doc, "x")
	assert.False(t, value.TryReplaceValue(ctl))

	txt := tree.Node(findByID(t, doc, "t"))
	assert.False(t, IsValueControl(txt))
	assert.False(t, value.TryReplaceValue(txt))
	assert.Equal(t, "Checkout", txt.Value())
	assert.Equal(t, uint64(1), value.Replaced())
}
