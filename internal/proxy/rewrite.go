package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"sloganeer/dom"
	"sloganeer/relabel"
)

// resourceAttrs are absolutized against the origin so that subresources load
// from it directly.
var resourceAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"link":   "href",
	"iframe": "src",
	"source": "src",
	"video":  "src",
	"audio":  "src",
	"embed":  "src",
}

// documentBase honours <base href> when it resolves.
func documentBase(doc *dom.Document, page *url.URL) *url.URL {
	nodes, err := doc.QueryAll("base[href]")
	if err != nil || len(nodes) == 0 {
		return page
	}
	ref, err := url.Parse(strings.TrimSpace(dom.Attr(nodes[0], "href")))
	if err != nil {
		return page
	}
	return page.ResolveReference(ref)
}

func resolveRef(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	return abs, true
}

// rewriteLinks keeps navigation inside the proxy: anchors and GET forms point
// at /fetch, everything else at the origin.
func rewriteLinks(doc *dom.Document, page *url.URL) {
	base := documentBase(doc, page)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			switch tag {
			case "a", "area":
				if abs, ok := resolveRef(base, dom.Attr(n, "href")); ok {
					doc.SetAttr(n, "href", proxyLink(abs.String()))
				}
			case "form":
				rewriteForm(doc, n, base)
			default:
				if attr, ok := resourceAttrs[tag]; ok {
					if abs, ok := resolveRef(base, dom.Attr(n, attr)); ok {
						doc.SetAttr(n, attr, abs.String())
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root())

	if nodes, err := doc.QueryAll("base"); err == nil {
		for _, n := range nodes {
			if n.Parent != nil {
				doc.RemoveChild(n.Parent, n)
			}
		}
	}
}

func rewriteForm(doc *dom.Document, form *html.Node, base *url.URL) {
	action := dom.Attr(form, "action")
	target := base
	if strings.TrimSpace(action) != "" {
		abs, ok := resolveRef(base, action)
		if !ok {
			return
		}
		target = abs
	}
	method := strings.ToLower(strings.TrimSpace(dom.Attr(form, "method")))
	if method != "" && method != "get" {
		doc.SetAttr(form, "action", target.String())
		return
	}
	// A GET submission replaces the action's query, so only its path travels.
	dest := *target
	dest.RawQuery = ""
	dest.Fragment = ""
	doc.SetAttr(form, "action", "/fetch")
	hidden := dom.CreateElement("input")
	hidden.Attr = []html.Attribute{
		{Key: "type", Val: "hidden"},
		{Key: "name", Val: "url"},
		{Key: "value", Val: dest.String()},
	}
	doc.InsertBefore(form, hidden, form.FirstChild)
}

// rewritePage parses an upstream HTML body, points its links back at the
// proxy and relabels it with rules. Markup that was already relabelled in a
// browser only gets its links rewritten.
func (s *Server) rewritePage(body []byte, contentType string, pageURL string, rules Rules, relabelled bool) ([]byte, relabel.Stats, error) {
	doc, err := dom.ParseWithContentType(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, relabel.Stats{}, err
	}
	if u, err := url.Parse(pageURL); err == nil {
		rewriteLinks(doc, u)
	}
	var stats relabel.Stats
	if !relabelled {
		if rules.Stylesheet != "" {
			doc.InjectStylesheet(rules.Stylesheet)
		}
		stats, err = relabel.RelabelDocument(doc, rules.engine(s.logger))
		switch {
		case errors.Is(err, dom.ErrFlushLimit):
			s.logger.Warn("mutation delivery did not settle", zap.String("url", pageURL), zap.Error(err))
		case err != nil:
			return nil, stats, fmt.Errorf("relabel %s: %w", pageURL, err)
		}
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, stats, err
	}
	return buf.Bytes(), stats, nil
}
