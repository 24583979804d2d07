package dom

import (
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type cssDeclaration struct {
	property  string
	value     string
	important bool
}

// parseInlineStyle reads a style attribute. Malformed input that douceur
// rejects is split by hand.
func parseInlineStyle(inline string) []cssDeclaration {
	inline = strings.TrimSpace(inline)
	if inline == "" {
		return nil
	}
	if decls, err := parser.ParseDeclarations(inline); err == nil {
		out := make([]cssDeclaration, 0, len(decls))
		for _, d := range decls {
			if d == nil {
				continue
			}
			prop := strings.ToLower(strings.TrimSpace(d.Property))
			if prop == "" {
				continue
			}
			out = append(out, cssDeclaration{property: prop, value: strings.TrimSpace(d.Value), important: d.Important})
		}
		return out
	}
	var out []cssDeclaration
	for _, part := range strings.Split(inline, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(kv[0]))
		value := strings.TrimSpace(kv[1])
		if prop == "" {
			continue
		}
		important := false
		if strings.HasSuffix(strings.ToLower(value), "!important") {
			important = true
			value = strings.TrimSpace(value[:len(value)-len("!important")])
		}
		out = append(out, cssDeclaration{property: prop, value: value, important: important})
	}
	return out
}

func formatInlineStyle(decls []cssDeclaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.property + ": " + d.value
		if d.important {
			s += " !important"
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

// MergeStyle returns attr with property set to value, replacing every earlier
// declaration of the same property. Applying the same merge twice yields the
// same string.
func MergeStyle(attr, property, value string, important bool) string {
	property = strings.ToLower(strings.TrimSpace(property))
	value = strings.TrimSpace(value)
	decls := parseInlineStyle(attr)
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.property != property {
			out = append(out, d)
			continue
		}
		if !replaced {
			out = append(out, cssDeclaration{property: property, value: value, important: important})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, cssDeclaration{property: property, value: value, important: important})
	}
	return formatInlineStyle(out)
}

// StyleProperty reads an inline declaration. The last declaration wins unless
// an earlier one is important.
func StyleProperty(el *html.Node, property string) (string, bool) {
	property = strings.ToLower(strings.TrimSpace(property))
	var (
		val       string
		important bool
	)
	for _, d := range parseInlineStyle(Attr(el, "style")) {
		if d.property != property {
			continue
		}
		if important && !d.important {
			continue
		}
		val, important = d.value, d.important
	}
	return val, important
}

// SetStyleProperty writes one inline declaration through SetAttr. Nothing is
// written when the merged attribute is unchanged.
func (d *Document) SetStyleProperty(el *html.Node, property, value string, important bool) {
	if el == nil || el.Type != html.ElementNode {
		return
	}
	cur := Attr(el, "style")
	merged := MergeStyle(cur, property, value, important)
	if merged == cur {
		return
	}
	d.SetAttr(el, "style", merged)
}
