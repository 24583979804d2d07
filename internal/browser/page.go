package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"go.uber.org/zap"

	"sloganeer/dom"
	"sloganeer/relabel"
)

// maxBacklog bounds the changes kept while nobody is subscribed.
const maxBacklog = 4096

// ErrClosed is returned by operations on a closed Page.
var ErrClosed = errors.New("browser: page closed")

// Page is one open tab. It implements relabel.Tree over a local mirror of the
// tab's DOM, updated from DevTools DOM events on a single goroutine.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	remote remote
	logger *zap.Logger

	mu sync.RWMutex
	m  *mirror

	qmu   sync.Mutex
	queue []any
	wake  chan struct{}

	dispatchMu sync.Mutex
	subs       map[int]*subscription
	nextSub    int
	backlog    []relabel.Change

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

type subscription struct {
	page   *Page
	id     int
	root   cdp.NodeID
	handle func([]relabel.Change)
}

func (s *subscription) Unsubscribe() {
	s.page.dispatchMu.Lock()
	delete(s.page.subs, s.id)
	s.page.dispatchMu.Unlock()
}

// newPage returns a page that queues events until start is called.
func newPage(ctx context.Context, cancel context.CancelFunc, r remote, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		ctx:    ctx,
		cancel: cancel,
		remote: r,
		logger: logger,
		m:      newMirror(nil),
		wake:   make(chan struct{}, 1),
		subs:   make(map[int]*subscription),
		done:   make(chan struct{}),
	}
}

// start loads the mirror from root and begins applying queued events.
func (p *Page) start(root *cdp.Node) {
	p.mu.Lock()
	p.m.reset(root)
	p.mu.Unlock()
	p.started.Store(true)
	go p.loop()
	p.signal()
}

// enqueue never blocks; it is called from the protocol event listener.
func (p *Page) enqueue(ev any) {
	switch ev.(type) {
	case *cdpdom.EventSetChildNodes, *cdpdom.EventChildNodeInserted,
		*cdpdom.EventChildNodeRemoved, *cdpdom.EventCharacterDataModified,
		*cdpdom.EventAttributeModified, *cdpdom.EventAttributeRemoved,
		*cdpdom.EventChildNodeCountUpdated, *cdpdom.EventDocumentUpdated:
	default:
		return
	}
	p.qmu.Lock()
	p.queue = append(p.queue, ev)
	p.qmu.Unlock()
	p.signal()
}

func (p *Page) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Page) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}
		p.qmu.Lock()
		events := p.queue
		p.queue = nil
		p.qmu.Unlock()

		var changes []relabel.Change
		for _, ev := range events {
			changes = append(changes, p.apply(ev)...)
		}
		p.dispatch(changes)
	}
}

// apply updates the mirror for one event and returns the resulting changes.
func (p *Page) apply(ev any) []relabel.Change {
	var (
		changes []relabel.Change
		fetch   []cdp.NodeID
		reset   bool
	)
	p.mu.Lock()
	switch e := ev.(type) {
	case *cdpdom.EventSetChildNodes:
		added := p.m.setChildren(e.ParentID, e.Nodes)
		if len(added) > 0 {
			changes = append(changes, p.structural(added))
		}
	case *cdpdom.EventChildNodeInserted:
		if n := p.m.insert(e.ParentNodeID, e.PreviousNodeID, e.Node); n != nil {
			changes = append(changes, p.structural([]*mnode{n}))
			if n.needsChildren() {
				fetch = append(fetch, n.id)
			}
		}
	case *cdpdom.EventChildNodeRemoved:
		p.m.remove(e.NodeID)
	case *cdpdom.EventCharacterDataModified:
		if n := p.m.setCharacterData(e.NodeID, e.CharacterData); n != nil {
			changes = append(changes, relabel.Change{Kind: relabel.ChangeContent, Target: pageNode{p: p, id: n.id}})
		}
	case *cdpdom.EventAttributeModified:
		if n := p.m.lookup(e.NodeID); n != nil {
			n.setAttr(e.Name, e.Value)
		}
	case *cdpdom.EventAttributeRemoved:
		if n := p.m.lookup(e.NodeID); n != nil {
			n.removeAttr(e.Name)
		}
	case *cdpdom.EventChildNodeCountUpdated:
		p.m.setChildCount(e.NodeID, e.ChildNodeCount)
		if n := p.m.lookup(e.NodeID); n != nil && n.needsChildren() {
			fetch = append(fetch, n.id)
		}
	case *cdpdom.EventDocumentUpdated:
		reset = true
	}
	p.mu.Unlock()

	for _, id := range fetch {
		if err := p.remote.RequestChildNodes(p.ctx, id); err != nil {
			p.logger.Debug("request child nodes failed", zap.Int64("node", int64(id)), zap.Error(err))
		}
	}
	if reset {
		changes = append(changes, p.reload()...)
	}
	return changes
}

func (p *Page) structural(nodes []*mnode) relabel.Change {
	added := make([]relabel.Node, 0, len(nodes))
	for _, n := range nodes {
		added = append(added, pageNode{p: p, id: n.id})
	}
	return relabel.Change{Kind: relabel.ChangeStructural, Added: added}
}

// reload refetches the document after a navigation. Existing subscriptions
// are moved to the new body, which is reported as inserted.
func (p *Page) reload() []relabel.Change {
	root, err := p.remote.Document(p.ctx)
	if err != nil {
		p.logger.Warn("document reload failed", zap.Error(err))
		return nil
	}
	p.mu.Lock()
	p.m.reset(root)
	body := p.m.body()
	p.mu.Unlock()
	if body == nil {
		return nil
	}
	p.dispatchMu.Lock()
	for _, s := range p.subs {
		s.root = body.id
	}
	p.dispatchMu.Unlock()
	p.logger.Debug("document reloaded")
	return []relabel.Change{p.structural([]*mnode{body})}
}

func (p *Page) dispatch(changes []relabel.Change) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	if len(p.subs) == 0 {
		p.backlog = append(p.backlog, changes...)
		if over := len(p.backlog) - maxBacklog; over > 0 {
			p.logger.Warn("dropping unobserved changes", zap.Int("count", over))
			p.backlog = append([]relabel.Change(nil), p.backlog[over:]...)
		}
		return
	}
	if len(p.backlog) > 0 {
		changes = append(p.backlog, changes...)
		p.backlog = nil
	}
	if len(changes) == 0 {
		return
	}
	for _, s := range p.subs {
		if batch := p.within(s.root, changes); len(batch) > 0 {
			s.handle(batch)
		}
	}
}

// within keeps the changes that fall under root, dropping nodes that were
// removed later in the same batch.
func (p *Page) within(rootID cdp.NodeID, changes []relabel.Change) []relabel.Change {
	p.mu.RLock()
	defer p.mu.RUnlock()
	root := p.m.lookup(rootID)
	if root == nil {
		return nil
	}
	var out []relabel.Change
	for _, ch := range changes {
		switch ch.Kind {
		case relabel.ChangeStructural:
			var added []relabel.Node
			for _, n := range ch.Added {
				if p.m.contains(root, p.m.lookup(n.(pageNode).id)) {
					added = append(added, n)
				}
			}
			if len(added) > 0 {
				out = append(out, relabel.Change{Kind: relabel.ChangeStructural, Added: added})
			}
		case relabel.ChangeContent:
			if p.m.contains(root, p.m.lookup(ch.Target.(pageNode).id)) {
				out = append(out, ch)
			}
		}
	}
	return out
}

// Root implements relabel.Tree; it is the document body.
func (p *Page) Root() relabel.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	body := p.m.body()
	if body == nil {
		return nil
	}
	return pageNode{p: p, id: body.id}
}

// Subscribe implements relabel.Tree. Changes that arrived while nobody was
// subscribed are delivered with the first batch.
func (p *Page) Subscribe(root relabel.Node, handle func([]relabel.Change)) (relabel.Subscription, error) {
	rn, ok := root.(pageNode)
	if !ok || rn.p != p {
		return nil, relabel.ErrForeignNode
	}
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}
	p.dispatchMu.Lock()
	p.nextSub++
	s := &subscription{page: p, id: p.nextSub, root: rn.id, handle: handle}
	p.subs[s.id] = s
	pending := len(p.backlog) > 0
	p.dispatchMu.Unlock()
	if pending {
		p.signal()
	}
	return s, nil
}

// InjectStylesheet appends a <style> element to the document head.
func (p *Page) InjectStylesheet(ctx context.Context, css string) error {
	lit, err := json.Marshal(css)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(function(css) {
	const s = document.createElement("style");
	s.textContent = css;
	(document.head || document.documentElement).appendChild(s);
})(%s)`, lit)
	ctx, cancel := p.bind(ctx)
	defer cancel()
	if err := p.remote.Evaluate(ctx, expr); err != nil {
		return fmt.Errorf("browser: inject stylesheet: %w", err)
	}
	return nil
}

// OuterHTML serializes the document element as it currently stands.
func (p *Page) OuterHTML(ctx context.Context) (string, error) {
	p.mu.RLock()
	el := p.m.documentElement()
	p.mu.RUnlock()
	if el == nil {
		return "", errors.New("browser: document has no element")
	}
	ctx, cancel := p.bind(ctx)
	defer cancel()
	out, err := p.remote.OuterHTML(ctx, el.id)
	if err != nil {
		return "", fmt.Errorf("browser: outer html: %w", err)
	}
	return out, nil
}

// bind runs calls on the tab while honouring the caller's cancellation.
func (p *Page) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return bound, func() {
		stop()
		cancel()
	}
}

// Close closes the tab and waits for the event loop to exit.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	if p.started.Load() {
		<-p.done
	}
	return nil
}

// pageNode is a mirror node handle. Reads see the mirror; writes go to the
// tab first and are then applied locally.
type pageNode struct {
	p  *Page
	id cdp.NodeID
}

func (n pageNode) node() *mnode { return n.p.m.lookup(n.id) }

func (n pageNode) Kind() relabel.NodeKind {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	mn := n.node()
	if mn == nil {
		return relabel.OtherNode
	}
	switch mn.typ {
	case cdp.NodeTypeElement:
		return relabel.ElementNode
	case cdp.NodeTypeText:
		return relabel.TextNode
	default:
		return relabel.OtherNode
	}
}

func (n pageNode) Tag() string {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	if mn := n.node(); mn != nil && mn.typ == cdp.NodeTypeElement {
		return mn.name
	}
	return ""
}

func (n pageNode) Attr(name string) string {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	if mn := n.node(); mn != nil {
		v, _ := mn.attr(name)
		return v
	}
	return ""
}

func (n pageNode) Parent() relabel.Node {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	mn := n.node()
	if mn == nil || mn.parent == nil || mn.parent.typ != cdp.NodeTypeElement {
		return nil
	}
	return pageNode{p: n.p, id: mn.parent.id}
}

func (n pageNode) Children() []relabel.Node {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	mn := n.node()
	if mn == nil {
		return nil
	}
	out := make([]relabel.Node, 0, len(mn.children))
	for _, c := range mn.children {
		out = append(out, pageNode{p: n.p, id: c.id})
	}
	return out
}

func (n pageNode) Text() string {
	n.p.mu.RLock()
	defer n.p.mu.RUnlock()
	if mn := n.node(); mn != nil && mn.typ == cdp.NodeTypeText {
		return mn.value
	}
	return ""
}

func (n pageNode) SetText(data string) error {
	if err := n.p.remote.SetNodeValue(n.p.ctx, n.id, data); err != nil {
		return fmt.Errorf("browser: set node value: %w", err)
	}
	n.p.mu.Lock()
	n.p.m.setCharacterData(n.id, data)
	n.p.mu.Unlock()
	return nil
}

func (n pageNode) Value() string { return n.Attr("value") }

// SetValue writes the value attribute and the live property.
func (n pageNode) SetValue(value string) error {
	if err := n.setAttr("value", value); err != nil {
		return err
	}
	if err := n.p.remote.SetInputValue(n.p.ctx, n.id, value); err != nil {
		return fmt.Errorf("browser: set input value: %w", err)
	}
	return nil
}

func (n pageNode) SetStyle(property, value string) error {
	cur := n.Attr("style")
	merged := dom.MergeStyle(cur, property, value, true)
	if merged == cur {
		return nil
	}
	return n.setAttr("style", merged)
}

func (n pageNode) setAttr(name, value string) error {
	if err := n.p.remote.SetAttribute(n.p.ctx, n.id, name, value); err != nil {
		return fmt.Errorf("browser: set %s: %w", name, err)
	}
	n.p.mu.Lock()
	if mn := n.node(); mn != nil {
		mn.setAttr(name, value)
	}
	n.p.mu.Unlock()
	return nil
}
