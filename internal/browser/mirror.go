package browser

import (
	"strings"

	"github.com/chromedp/cdproto/cdp"
)

// mnode is the local copy of one remote DOM node.
type mnode struct {
	id         cdp.NodeID
	typ        cdp.NodeType
	name       string
	value      string
	attrs      []string
	childCount int64
	parent     *mnode
	children   []*mnode
}

func (n *mnode) attr(name string) (string, bool) {
	for i := 0; i+1 < len(n.attrs); i += 2 {
		if strings.EqualFold(n.attrs[i], name) {
			return n.attrs[i+1], true
		}
	}
	return "", false
}

func (n *mnode) setAttr(name, value string) {
	for i := 0; i+1 < len(n.attrs); i += 2 {
		if strings.EqualFold(n.attrs[i], name) {
			n.attrs[i+1] = value
			return
		}
	}
	n.attrs = append(n.attrs, name, value)
}

func (n *mnode) removeAttr(name string) {
	for i := 0; i+1 < len(n.attrs); i += 2 {
		if strings.EqualFold(n.attrs[i], name) {
			n.attrs = append(n.attrs[:i], n.attrs[i+2:]...)
			return
		}
	}
}

// needsChildren reports an element whose children were never pushed to us.
func (n *mnode) needsChildren() bool {
	return n.typ == cdp.NodeTypeElement && n.childCount > 0 && len(n.children) == 0
}

// mirror tracks the remote DOM from the protocol's node events. Node ids are
// only valid until the next DOM.getDocument, so a new document means reset.
type mirror struct {
	root  *mnode
	nodes map[cdp.NodeID]*mnode
}

func newMirror(root *cdp.Node) *mirror {
	m := &mirror{}
	m.reset(root)
	return m
}

func (m *mirror) reset(root *cdp.Node) {
	m.nodes = make(map[cdp.NodeID]*mnode)
	m.root = nil
	if root != nil {
		m.root = m.build(root, nil)
	}
}

func (m *mirror) build(n *cdp.Node, parent *mnode) *mnode {
	name := n.LocalName
	if name == "" {
		name = n.NodeName
	}
	mn := &mnode{
		id:         n.NodeID,
		typ:        n.NodeType,
		name:       strings.ToLower(name),
		value:      n.NodeValue,
		attrs:      append([]string(nil), n.Attributes...),
		childCount: n.ChildNodeCount,
		parent:     parent,
	}
	m.nodes[mn.id] = mn
	for _, c := range n.Children {
		mn.children = append(mn.children, m.build(c, mn))
	}
	for _, sr := range n.ShadowRoots {
		mn.children = append(mn.children, m.build(sr, mn))
	}
	if int64(len(mn.children)) > mn.childCount {
		mn.childCount = int64(len(mn.children))
	}
	return mn
}

func (m *mirror) forget(n *mnode) {
	delete(m.nodes, n.id)
	for _, c := range n.children {
		m.forget(c)
	}
}

func (m *mirror) lookup(id cdp.NodeID) *mnode { return m.nodes[id] }

// setChildren replaces the children of parent and returns the new nodes.
func (m *mirror) setChildren(parentID cdp.NodeID, nodes []*cdp.Node) []*mnode {
	parent := m.nodes[parentID]
	if parent == nil {
		return nil
	}
	for _, c := range parent.children {
		m.forget(c)
	}
	parent.children = parent.children[:0]
	for _, n := range nodes {
		parent.children = append(parent.children, m.build(n, parent))
	}
	parent.childCount = int64(len(parent.children))
	return parent.children
}

// insert places n after prevID, or first when prevID is zero.
func (m *mirror) insert(parentID, prevID cdp.NodeID, n *cdp.Node) *mnode {
	parent := m.nodes[parentID]
	if parent == nil || n == nil {
		return nil
	}
	if old := m.nodes[n.NodeID]; old != nil {
		m.detach(old)
	}
	mn := m.build(n, parent)
	idx := 0
	if prevID != 0 {
		for i, c := range parent.children {
			if c.id == prevID {
				idx = i + 1
				break
			}
		}
	}
	parent.children = append(parent.children, nil)
	copy(parent.children[idx+1:], parent.children[idx:])
	parent.children[idx] = mn
	parent.childCount++
	return mn
}

func (m *mirror) detach(n *mnode) {
	if p := n.parent; p != nil {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		if p.childCount > 0 {
			p.childCount--
		}
	}
	m.forget(n)
}

func (m *mirror) remove(id cdp.NodeID) bool {
	n := m.nodes[id]
	if n == nil {
		return false
	}
	m.detach(n)
	return true
}

func (m *mirror) setCharacterData(id cdp.NodeID, data string) *mnode {
	n := m.nodes[id]
	if n == nil {
		return nil
	}
	n.value = data
	return n
}

func (m *mirror) setChildCount(id cdp.NodeID, count int64) {
	if n := m.nodes[id]; n != nil {
		n.childCount = count
	}
}

// documentElement is the first element child of the document.
func (m *mirror) documentElement() *mnode {
	if m.root == nil {
		return nil
	}
	if m.root.typ == cdp.NodeTypeElement {
		return m.root
	}
	for _, c := range m.root.children {
		if c.typ == cdp.NodeTypeElement {
			return c
		}
	}
	return nil
}

func (m *mirror) body() *mnode {
	html := m.documentElement()
	if html == nil {
		return nil
	}
	for _, c := range html.children {
		if c.typ == cdp.NodeTypeElement && (c.name == "body" || c.name == "frameset") {
			return c
		}
	}
	return nil
}

// contains reports whether n is still tracked and lies in the subtree of
// ancestor, ancestor included.
func (m *mirror) contains(ancestor, n *mnode) bool {
	if ancestor == nil || n == nil || m.nodes[n.id] != n {
		return false
	}
	for cur := n; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}
