package relabel

import (
	"strings"

	"golang.org/x/net/html"

	"sloganeer/dom"
)

// DocumentTree adapts a dom.Document to Tree. Its root is <body>; change
// batches are delivered by the document's Flush.
type DocumentTree struct {
	doc *dom.Document
}

// NewDocumentTree wraps doc.
func NewDocumentTree(doc *dom.Document) *DocumentTree {
	return &DocumentTree{doc: doc}
}

// Root implements Tree.
func (t *DocumentTree) Root() Node {
	if t.doc == nil {
		return nil
	}
	body := t.doc.Body()
	if body == nil {
		return nil
	}
	return docNode{doc: t.doc, n: body}
}

// Node wraps an html node of the same document.
func (t *DocumentTree) Node(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return docNode{doc: t.doc, n: n}
}

// Subscribe implements Tree with a childList + characterData observer over
// the subtree of root.
func (t *DocumentTree) Subscribe(root Node, handle func([]Change)) (Subscription, error) {
	rn, ok := root.(docNode)
	if !ok || rn.doc != t.doc {
		return nil, ErrForeignNode
	}
	opts := dom.ObserveOptions{ChildList: true, CharacterData: true, Subtree: true}
	obs := t.doc.Observe(rn.n, opts, func(recs []dom.Record) {
		if changes := t.changes(recs); len(changes) > 0 {
			handle(changes)
		}
	})
	return observerSubscription{obs: obs}, nil
}

func (t *DocumentTree) changes(recs []dom.Record) []Change {
	out := make([]Change, 0, len(recs))
	for _, r := range recs {
		switch r.Type {
		case dom.RecordChildList:
			if len(r.AddedNodes) == 0 {
				continue
			}
			added := make([]Node, 0, len(r.AddedNodes))
			for _, n := range r.AddedNodes {
				added = append(added, docNode{doc: t.doc, n: n})
			}
			out = append(out, Change{Kind: ChangeStructural, Added: added})
		case dom.RecordCharacterData:
			out = append(out, Change{Kind: ChangeContent, Target: docNode{doc: t.doc, n: r.Target}})
		}
	}
	return out
}

type observerSubscription struct {
	obs *dom.Observer
}

func (s observerSubscription) Unsubscribe() { s.obs.Disconnect() }

type docNode struct {
	doc *dom.Document
	n   *html.Node
}

func (d docNode) Kind() NodeKind {
	switch d.n.Type {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	default:
		return OtherNode
	}
}

func (d docNode) Tag() string {
	if d.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(d.n.Data)
}

func (d docNode) Attr(name string) string { return dom.Attr(d.n, name) }

func (d docNode) Parent() Node {
	p := d.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return docNode{doc: d.doc, n: p}
}

func (d docNode) Children() []Node {
	var out []Node
	for c := d.n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, docNode{doc: d.doc, n: c})
	}
	return out
}

func (d docNode) Text() string {
	if d.n.Type != html.TextNode {
		return ""
	}
	return d.n.Data
}

func (d docNode) SetText(data string) error {
	d.doc.SetText(d.n, data)
	return nil
}

func (d docNode) Value() string { return dom.Attr(d.n, "value") }

func (d docNode) SetValue(value string) error {
	d.doc.SetAttr(d.n, "value", value)
	return nil
}

func (d docNode) SetStyle(property, value string) error {
	d.doc.SetStyleProperty(d.n, property, value, true)
	return nil
}

// RelabelDocument runs a new engine over doc once: the initial scan, then
// every change delivered by doc.Flush, including the engine's own writes.
// A delivery loop that does not settle is reported with the stats so far.
func RelabelDocument(doc *dom.Document, cfg Config) (Stats, error) {
	e, err := New(cfg)
	if err != nil {
		return Stats{}, err
	}
	if err := e.Start(NewDocumentTree(doc)); err != nil {
		return Stats{}, err
	}
	defer e.Stop()
	err = doc.Flush()
	return e.Stats(), err
}
