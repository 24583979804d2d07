package proxy

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// reservedParams are /fetch's own parameters; anything else came from a
// proxied GET form and belongs to the target's query.
var reservedParams = map[string]bool{"url": true, "action": true, "get": true, "ua": true, "lang": true}

func extraQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if !reservedParams[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// isHTML reports whether a Content-Type denotes a document worth rewriting.
// A missing type is sniffed by the caller.
func isHTML(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i != -1 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "text/html" || ct == "application/xhtml+xml"
}
