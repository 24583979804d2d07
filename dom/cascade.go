package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []cssDeclaration
	order        int
}

// Stylesheet is the ordered rule list of one or more <style> sheets.
type Stylesheet struct {
	rules []cssRule
}

// inlineSpecificity ranks style attributes above any selector.
var inlineSpecificity = cascadia.Specificity{1 << 12, 0, 0}

// ParseStylesheet parses CSS text. Rules whose selectors cascadia cannot
// compile are skipped.
func ParseStylesheet(text string) (*Stylesheet, error) {
	ss := &Stylesheet{}
	if err := ss.add(text); err != nil {
		return nil, err
	}
	return ss, nil
}

func (ss *Stylesheet) add(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("dom: parse stylesheet: %w", err)
	}
	order := len(ss.rules)
	var walk func([]*cssast.Rule)
	walk = func(list []*cssast.Rule) {
		for _, rule := range list {
			if rule == nil {
				continue
			}
			switch rule.Kind {
			case cssast.AtRule:
				switch strings.ToLower(strings.TrimSpace(rule.Name)) {
				case "@media":
					if mediaRuleActive(rule.Prelude) {
						walk(rule.Rules)
					}
				case "@supports":
					walk(rule.Rules)
				default:
					if rule.EmbedsRules() {
						walk(rule.Rules)
					}
				}
			case cssast.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
				if err != nil {
					continue
				}
				for _, sel := range group {
					if sel == nil || sel.PseudoElement() != "" {
						continue
					}
					ss.rules = append(ss.rules, cssRule{selector: sel, specificity: sel.Specificity(), declarations: decls, order: order})
					order++
				}
			}
		}
	}
	walk(sheet.Rules)
	return nil
}

func convertDeclarations(list []*cssast.Declaration) []cssDeclaration {
	out := make([]cssDeclaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		val := strings.TrimSpace(decl.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, cssDeclaration{property: prop, value: val, important: decl.Important})
	}
	return out
}

// mediaRuleActive accepts media queries that apply to a screen.
func mediaRuleActive(prelude string) bool {
	if strings.TrimSpace(prelude) == "" {
		return true
	}
	for _, raw := range strings.Split(prelude, ",") {
		query := strings.ToLower(strings.TrimSpace(raw))
		fields := strings.Fields(query)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "print", "speech", "aural", "braille", "embossed", "tty", "tv":
			continue
		case "not":
			continue
		}
		return true
	}
	return false
}

// Stylesheet collects every <style> element of the document, in order.
func (d *Document) Stylesheet() *Stylesheet {
	ss := &Stylesheet{}
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "style" {
			_ = ss.add(TextContent(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(d.root)
	return ss
}

// InjectStylesheet appends a <style> element to <head>, creating the head
// when the tree has none.
func (d *Document) InjectStylesheet(css string) *html.Node {
	head := d.Head()
	if head == nil {
		htmlEl := findFirstByTag(d.root, "html")
		if htmlEl == nil {
			htmlEl = d.root
		}
		head = CreateElement("head")
		d.InsertBefore(htmlEl, head, htmlEl.FirstChild)
	}
	style := CreateElement("style")
	style.AppendChild(CreateText(css))
	d.AppendChild(head, style)
	return style
}

// ComputedStyle resolves the declared properties of el from the document's
// stylesheets and its style attribute. Only declared properties are returned;
// nothing is inherited. Color values come back as rgb(r,g,b).
func (d *Document) ComputedStyle(el *html.Node) map[string]string {
	return d.Stylesheet().Compute(el)
}

// Compute resolves el against ss plus its inline style.
func (ss *Stylesheet) Compute(el *html.Node) map[string]string {
	if el == nil || el.Type != html.ElementNode {
		return nil
	}
	props := map[string]propState{}
	if ss != nil {
		for _, rule := range ss.rules {
			if rule.selector == nil || !rule.selector.Match(el) {
				continue
			}
			for _, decl := range rule.declarations {
				applyDeclaration(props, decl, rule.specificity, rule.order)
			}
		}
	}
	for i, decl := range parseInlineStyle(Attr(el, "style")) {
		applyDeclaration(props, decl, inlineSpecificity, (1<<30)+i)
	}
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

func applyDeclaration(store map[string]propState, decl cssDeclaration, spec cascadia.Specificity, order int) {
	prop := decl.property
	value := strings.TrimSpace(decl.value)
	if prop == "" || value == "" {
		return
	}
	switch prop {
	case "color", "background-color", "border-color", "outline-color":
		if col, ok := NormalizeColor(value); ok {
			value = col
		}
	}
	entry := propState{val: value, spec: spec, order: order, important: decl.important}
	prev, ok := store[prop]
	if !ok {
		store[prop] = entry
		return
	}
	if prev.important != decl.important {
		if decl.important {
			store[prop] = entry
		}
		return
	}
	if prev.spec.Less(spec) {
		store[prop] = entry
		return
	}
	if spec.Less(prev.spec) {
		return
	}
	if order >= prev.order {
		store[prop] = entry
	}
}

// QueryAll returns the elements matching a selector group, in document order.
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: selector %q: %w", selector, err)
	}
	return cascadia.QueryAll(d.root, group), nil
}
