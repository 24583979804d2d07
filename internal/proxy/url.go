package proxy

import (
	neturl "net/url"
	"strings"
)

// buildURL resolves action against base and appends the get query. Both are
// used exactly as received: the query string was decoded once already, and
// decoding again would turn escaped data such as %26 into syntax. A base that
// does not parse is returned unchanged for the caller to reject.
func buildURL(base, action, get string) string {
	u, err := neturl.Parse(base)
	if err != nil {
		return base
	}
	if action != "" {
		if ref, err := neturl.Parse(action); err == nil {
			u = u.ResolveReference(ref)
		}
	}
	if get != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + get
		} else {
			u.RawQuery = get
		}
	}
	return u.String()
}

// proxyLink is the proxy-relative address that fetches target.
func proxyLink(target string) string {
	return "/fetch?url=" + neturl.QueryEscape(target)
}

// normalizeTarget trims a user-typed address and defaults a missing scheme
// to http. An address whose scheme separator is itself escaped
// (https%3A%2F%2F...) is unescaped once.
func normalizeTarget(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.Contains(s, "://") {
		if un, err := neturl.PathUnescape(s); err == nil && strings.Contains(un, "://") {
			s = un
		}
	}
	if strings.HasPrefix(s, "//") {
		return "http:" + s
	}
	if strings.Contains(s, "://") {
		return s
	}
	return "http://" + s
}
