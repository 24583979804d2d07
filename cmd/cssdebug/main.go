// Command cssdebug rewrites one page with the built-in rules and prints the
// computed style of every actionable element, to check that overrides win
// over the page's own stylesheets.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"sloganeer/dom"
	"sloganeer/internal/config"
	"sloganeer/relabel"
)

func main() {
	all := flag.Bool("all", false, "print every actionable element, not only relabeled ones")
	flag.Parse()
	src := "https://www.amazon.com/"
	if flag.NArg() > 0 {
		src = flag.Arg(0)
	}
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	body, ct, err := load(src)
	if err != nil {
		logger.Fatal("load", zap.String("source", src), zap.Error(err))
	}
	doc, err := dom.ParseWithContentType(bytes.NewReader(body), ct)
	if err != nil {
		logger.Fatal("parse", zap.Error(err))
	}
	cfg := config.Default()
	doc.InjectStylesheet(cfg.Stylesheet)
	stats, err := relabel.RelabelDocument(doc, cfg.Engine(logger))
	if err != nil {
		logger.Warn("relabel", zap.Error(err))
	}
	logger.Info("relabeled", zap.Uint64("texts", stats.Texts), zap.Uint64("values", stats.Values))

	tree := relabel.NewDocumentTree(doc)
	sheet := doc.Stylesheet()
	slogans := map[string]bool{}
	for _, s := range cfg.Slogans {
		slogans[strings.ToUpper(s)] = true
	}
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			kind := relabel.Classify(tree.Node(n))
			label := strings.TrimSpace(dom.TextContent(n))
			if kind == relabel.ActionSubmitControl {
				label = dom.Attr(n, "value")
			}
			if kind != relabel.ActionNone && (*all || slogans[strings.TrimSpace(label)]) {
				fmt.Printf("node=%s kind=%s label=%q props=%s\n", n.Data, kind, label, formatProps(sheet.Compute(n)))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc.Root())
}

func load(src string) ([]byte, string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		b, err := os.ReadFile(src)
		return b, "", err
	}
	req, err := http.NewRequest(http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "cssdebug/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return b, resp.Header.Get("Content-Type"), err
}

func formatProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+props[k])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
