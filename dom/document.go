// Package dom hosts a live HTML document: a golang.org/x/net/html tree whose
// mutations are reported to observers, with inline style editing and a small
// CSS cascade for reading back computed values.
//
// A Document is not safe for concurrent use. Mutations queue records on the
// interested observers; Flush delivers them.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// ErrNotElement is returned when an operation needs an element node.
var ErrNotElement = errors.New("dom: node is not an element")

// Document is a parsed HTML tree plus its mutation observers.
type Document struct {
	root      *html.Node
	observers []*Observer
	queue     []*Observer
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{root: root}
}

// Parse reads UTF-8 HTML.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return NewDocument(root), nil
}

// ParseWithContentType decodes the body according to the Content-Type header
// and any <meta charset> before parsing.
func ParseWithContentType(r io.Reader, contentType string) (*Document, error) {
	cr, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("dom: charset: %w", err)
	}
	return Parse(cr)
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node { return findFirstByTag(d.root, "body") }

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node { return findFirstByTag(d.root, "head") }

// Render serialises the current tree.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// AppendChild moves child to the end of parent's children.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil {
		return
	}
	if child.Parent != nil {
		d.RemoveChild(child.Parent, child)
	}
	parent.InsertBefore(child, ref)
	d.notify(Record{
		Type:       RecordChildList,
		Target:     parent,
		AddedNodes: []*html.Node{child},
	})
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	if parent == nil || child == nil || child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
	d.notify(Record{
		Type:         RecordChildList,
		Target:       parent,
		RemovedNodes: []*html.Node{child},
	})
}

// AppendHTML parses markup in the context of parent and appends the result.
// One childList record covers all appended nodes.
func (d *Document) AppendHTML(parent *html.Node, markup string) ([]*html.Node, error) {
	if parent == nil || parent.Type != html.ElementNode {
		return nil, ErrNotElement
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	if len(nodes) > 0 {
		d.notify(Record{Type: RecordChildList, Target: parent, AddedNodes: nodes})
	}
	return nodes, nil
}

// SetText replaces the character data of a text or comment node.
func (d *Document) SetText(n *html.Node, data string) {
	if n == nil || (n.Type != html.TextNode && n.Type != html.CommentNode) {
		return
	}
	old := n.Data
	n.Data = data
	d.notify(Record{Type: RecordCharacterData, Target: n, OldValue: old})
}

// SetAttr sets or adds an attribute on an element.
func (d *Document) SetAttr(el *html.Node, key, val string) {
	if el == nil || el.Type != html.ElementNode {
		return
	}
	key = strings.ToLower(key)
	old, found := "", false
	for i := range el.Attr {
		if el.Attr[i].Namespace == "" && strings.EqualFold(el.Attr[i].Key, key) {
			old, found = el.Attr[i].Val, true
			el.Attr[i].Val = val
			break
		}
	}
	if !found {
		el.Attr = append(el.Attr, html.Attribute{Key: key, Val: val})
	}
	d.notify(Record{Type: RecordAttributes, Target: el, AttributeName: key, OldValue: old})
}

// RemoveAttr deletes an attribute if present.
func (d *Document) RemoveAttr(el *html.Node, key string) {
	if el == nil || el.Type != html.ElementNode {
		return
	}
	for i := range el.Attr {
		if el.Attr[i].Namespace == "" && strings.EqualFold(el.Attr[i].Key, key) {
			old := el.Attr[i].Val
			el.Attr = append(el.Attr[:i], el.Attr[i+1:]...)
			d.notify(Record{Type: RecordAttributes, Target: el, AttributeName: strings.ToLower(key), OldValue: old})
			return
		}
	}
}

// CreateElement returns a detached element.
func CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateText returns a detached text node.
func CreateText(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// HasClass reports whether the class attribute lists want.
func HasClass(n *html.Node, want string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == want {
			return true
		}
	}
	return false
}

// TextContent concatenates the character data below n.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(TextContent(c))
	}
	return b.String()
}

// Contains reports whether n is ancestor-or-self of other.
func Contains(n, other *html.Node) bool {
	for cur := other; cur != nil; cur = cur.Parent {
		if cur == n {
			return true
		}
	}
	return false
}

func findFirstByTag(n *html.Node, name string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, name) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if r := findFirstByTag(c, name); r != nil {
			return r
		}
	}
	return nil
}
