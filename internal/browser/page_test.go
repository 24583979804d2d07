package browser

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sloganeer/relabel"
)

type fakeRemote struct {
	mu       sync.Mutex
	doc      *cdp.Node
	values   map[cdp.NodeID]string
	attrs    map[cdp.NodeID]map[string]string
	inputs   map[cdp.NodeID]string
	requests []cdp.NodeID
	exprs    []string
	fail     error
}

func newFakeRemote(doc *cdp.Node) *fakeRemote {
	return &fakeRemote{
		doc:    doc,
		values: map[cdp.NodeID]string{},
		attrs:  map[cdp.NodeID]map[string]string{},
		inputs: map[cdp.NodeID]string{},
	}
}

func (f *fakeRemote) Document(context.Context) (*cdp.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc, nil
}

func (f *fakeRemote) RequestChildNodes(_ context.Context, id cdp.NodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, id)
	return nil
}

func (f *fakeRemote) SetNodeValue(_ context.Context, id cdp.NodeID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.values[id] = value
	return nil
}

func (f *fakeRemote) SetAttribute(_ context.Context, id cdp.NodeID, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attrs[id] == nil {
		f.attrs[id] = map[string]string{}
	}
	f.attrs[id][name] = value
	return nil
}

func (f *fakeRemote) SetInputValue(_ context.Context, id cdp.NodeID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[id] = value
	return nil
}

func (f *fakeRemote) OuterHTML(_ context.Context, id cdp.NodeID) (string, error) {
	if id != 2 {
		return "", errors.New("not the document element")
	}
	return "<html></html>", nil
}

func (f *fakeRemote) Evaluate(_ context.Context, expr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exprs = append(f.exprs, expr)
	return nil
}

func (f *fakeRemote) value(id cdp.NodeID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[id]
}

func (f *fakeRemote) attr(id cdp.NodeID, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attrs[id][name]
}

func startPage(t *testing.T, r *fakeRemote) *Page {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := newPage(ctx, cancel, r, nil)
	root, err := r.Document(ctx)
	require.NoError(t, err)
	p.start(root)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func startEngine(t *testing.T, p *Page) *relabel.Engine {
	t.Helper()
	e, err := relabel.New(relabel.Config{
		Labels:  []string{"Buy Now", "Checkout"},
		Slogans: []string{"Obey"},
		Rand:    rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)
	require.NoError(t, e.Start(p))
	t.Cleanup(e.Stop)
	return e
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestPageInitialScan(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newFakeRemote(document(
		elem(10, "button", nil, text(11, " Buy Now ")),
		elem(12, "input", []string{"type", "submit", "value", "checkout"}),
		elem(14, "p", nil, text(15, "Buy Now later")),
	))
	p := startPage(t, r)
	e := startEngine(t, p)

	assert.Equal(t, " OBEY ", r.value(11))
	assert.Contains(t, r.attr(10, "style"), "background-color: rgb(220,220,220) !important")
	assert.Equal(t, "OBEY", r.attr(12, "value"))
	assert.Equal(t, "OBEY", r.inputs[12])
	assert.Empty(t, r.value(15))
	assert.Equal(t, relabel.Stats{Texts: 1, Values: 1}, e.Stats())

	e.Stop()
	require.NoError(t, p.Close())
}

func TestPageInsertedSubtree(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newFakeRemote(document(elem(10, "div", nil)))
	p := startPage(t, r)
	startEngine(t, p)

	p.enqueue(&cdpdom.EventChildNodeInserted{
		ParentNodeID: 10,
		Node:         elem(20, "a", []string{"href", "#"}, elem(21, "span", nil, text(22, "Checkout"))),
	})
	eventually(t, func() bool { return r.value(22) == "OBEY" })
	eventually(t, func() bool { return r.attr(20, "style") != "" })
	require.NoError(t, p.Close())
}

func TestPageCharacterData(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newFakeRemote(document(elem(10, "button", nil, text(11, "Cart"))))
	p := startPage(t, r)
	startEngine(t, p)

	p.enqueue(&cdpdom.EventCharacterDataModified{NodeID: 11, CharacterData: "Buy Now"})
	eventually(t, func() bool { return r.value(11) == "OBEY" })
	require.NoError(t, p.Close())
}

func TestPageIgnoresChangesOutsideRoot(t *testing.T) {
	r := newFakeRemote(document())
	p := startPage(t, r)
	startEngine(t, p)

	p.enqueue(&cdpdom.EventChildNodeInserted{ParentNodeID: 3, Node: elem(30, "title", nil, text(31, "Checkout"))})
	p.enqueue(&cdpdom.EventChildNodeInserted{ParentNodeID: 4, Node: elem(40, "b", nil, text(41, "Buy Now"))})
	eventually(t, func() bool { return r.value(41) == "OBEY" })
	assert.Empty(t, r.value(31))
}

func TestPageRequestsMissingChildren(t *testing.T) {
	r := newFakeRemote(document())
	p := startPage(t, r)
	startEngine(t, p)

	lazy := elem(50, "div", nil)
	lazy.ChildNodeCount = 3
	p.enqueue(&cdpdom.EventChildNodeInserted{ParentNodeID: 4, Node: lazy})
	eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.requests) == 1 && r.requests[0] == 50
	})

	p.enqueue(&cdpdom.EventSetChildNodes{ParentID: 50, Nodes: []*cdp.Node{elem(51, "button", nil, text(52, "Buy Now"))}})
	eventually(t, func() bool { return r.value(52) == "OBEY" })
}

func TestPageBacklogBeforeSubscribe(t *testing.T) {
	r := newFakeRemote(document(elem(10, "div", nil)))
	p := startPage(t, r)

	p.enqueue(&cdpdom.EventChildNodeInserted{ParentNodeID: 10, Node: elem(20, "button", nil, text(21, "Checkout"))})
	eventually(t, func() bool {
		p.dispatchMu.Lock()
		defer p.dispatchMu.Unlock()
		return len(p.backlog) == 1
	})

	var mu sync.Mutex
	var got []relabel.Change
	sub, err := p.Subscribe(p.Root(), func(ch []relabel.Change) {
		mu.Lock()
		got = append(got, ch...)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	assert.Equal(t, relabel.ChangeStructural, got[0].Kind)
	assert.Equal(t, "button", got[0].Added[0].Tag())
}

func TestPageUnsubscribe(t *testing.T) {
	r := newFakeRemote(document(elem(10, "button", nil, text(11, "Cart"))))
	p := startPage(t, r)
	e := startEngine(t, p)
	e.Stop()

	p.enqueue(&cdpdom.EventCharacterDataModified{NodeID: 11, CharacterData: "Buy Now"})
	eventually(t, func() bool { return p.Root().Children()[0].Children()[0].Text() == "Buy Now" })
	assert.Empty(t, r.value(11))
}

func TestPageDocumentUpdated(t *testing.T) {
	r := newFakeRemote(document())
	p := startPage(t, r)
	startEngine(t, p)

	r.mu.Lock()
	r.doc = document(elem(60, "button", nil, text(61, "Buy Now")))
	r.mu.Unlock()
	p.enqueue(&cdpdom.EventDocumentUpdated{})
	eventually(t, func() bool { return r.value(61) == "OBEY" })
}

func TestPageNodeReads(t *testing.T) {
	r := newFakeRemote(document(elem(10, "button", []string{"type", "submit"}, text(11, "Go"))))
	p := startPage(t, r)

	root := p.Root()
	require.NotNil(t, root)
	assert.Equal(t, "body", root.Tag())
	btn := root.Children()[0]
	assert.Equal(t, relabel.ElementNode, btn.Kind())
	assert.Equal(t, "submit", btn.Attr("type"))
	assert.Equal(t, root, btn.Parent())
	txt := btn.Children()[0]
	assert.Equal(t, relabel.TextNode, txt.Kind())
	assert.Equal(t, "Go", txt.Text())
	assert.Empty(t, txt.Tag())

	gone := pageNode{p: p, id: 999}
	assert.Equal(t, relabel.OtherNode, gone.Kind())
	assert.Nil(t, gone.Children())
}

func TestPageWriteFailure(t *testing.T) {
	r := newFakeRemote(document(elem(10, "button", nil, text(11, "Buy Now"))))
	r.fail = errors.New("node gone")
	p := startPage(t, r)
	e := startEngine(t, p)
	assert.Equal(t, relabel.Stats{}, e.Stats())
	assert.Equal(t, "Buy Now", p.Root().Children()[0].Children()[0].Text())
}

func TestPageSubscribeErrors(t *testing.T) {
	p := startPage(t, newFakeRemote(document()))
	other := startPage(t, newFakeRemote(document()))
	_, err := p.Subscribe(other.Root(), func([]relabel.Change) {})
	assert.ErrorIs(t, err, relabel.ErrForeignNode)

	root := p.Root()
	require.NoError(t, p.Close())
	_, err = p.Subscribe(root, func([]relabel.Change) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPageInjectAndSnapshot(t *testing.T) {
	r := newFakeRemote(document())
	p := startPage(t, r)
	ctx := context.Background()

	require.NoError(t, p.InjectStylesheet(ctx, `.a { color: "red" }`))
	require.Len(t, r.exprs, 1)
	assert.Contains(t, r.exprs[0], `".a { color: \"red\" }"`)

	out, err := p.OuterHTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", out)
}

func TestCloseBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := newPage(ctx, cancel, newFakeRemote(nil), nil)
	require.NoError(t, p.Close())
}
