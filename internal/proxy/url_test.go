package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		base   string
		action string
		get    string
		want   string
	}{
		{
			name:   "https wiki random",
			base:   "https://ru.wikipedia.org/wiki/%D0%97%D0%B0%D0%B3%D0%BB%D0%B0%D0%B2%D0%BD%D0%B0%D1%8F_%D1%81%D1%82%D1%80%D0%B0%D0%BD%D0%B8%D1%86%D0%B0",
			action: "/wiki/%D0%A1%D0%BB%D1%83%D1%87%D0%B0%D0%B9%D0%BD%D0%B0%D1%8F_%D1%81%D1%82%D1%80%D0%B0%D0%BD%D0%B8%D1%86%D0%B0",
			want:   "https://ru.wikipedia.org/wiki/%D0%A1%D0%BB%D1%83%D1%87%D0%B0%D0%B9%D0%BD%D0%B0%D1%8F_%D1%81%D1%82%D1%80%D0%B0%D0%BD%D0%B8%D1%86%D0%B0",
		},
		{
			name:   "relative same dir",
			base:   "https://example.com/path/dir/page.html",
			action: "next.html",
			want:   "https://example.com/path/dir/next.html",
		},
		{
			name:   "root relative",
			base:   "https://example.com/path/index.html",
			action: "/other/page",
			want:   "https://example.com/other/page",
		},
		{
			name: "append get",
			base: "https://example.com/path",
			get:  "a=b",
			want: "https://example.com/path?a=b",
		},
		{
			name: "append get to existing query",
			base: "https://example.com/path?x=1",
			get:  "y=2",
			want: "https://example.com/path?x=1&y=2",
		},
		{
			name:   "action with query and get",
			base:   "https://example.com/start",
			action: "/foo?x=1",
			get:    "y=2",
			want:   "https://example.com/foo?x=1&y=2",
		},
		{
			name:   "absolute action",
			base:   "https://example.com/path",
			action: "http://other.com/page",
			want:   "http://other.com/page",
		},
		{
			name: "preserve percent query",
			base: "https://example.com/path",
			get:  "title=%D0%A1",
			want: "https://example.com/path?title=%D0%A1",
		},
		{
			name: "escaped query data stays escaped",
			base: "https://example.com/search?q=a%26b%3Dc&p=100%25",
			want: "https://example.com/search?q=a%26b%3Dc&p=100%25",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildURL(tc.base, tc.action, tc.get))
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "  ", want: ""},
		{name: "no scheme adds http", in: "example.com/path", want: "http://example.com/path"},
		{name: "https preserved", in: " https://example.com/path ", want: "https://example.com/path"},
		{name: "upper case scheme", in: "HTTP://example.com", want: "HTTP://example.com"},
		{name: "protocol relative", in: "//cdn.example.com/x", want: "http://cdn.example.com/x"},
		{name: "other scheme kept", in: "ftp://example.com/x", want: "ftp://example.com/x"},
		{name: "escaped address unescaped once", in: "https%3A%2F%2Fexample.com%2Fdir%2Fpage.html", want: "https://example.com/dir/page.html"},
		{name: "escaped query kept", in: "https://example.com/?q=a%26b", want: "https://example.com/?q=a%26b"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeTarget(tc.in))
		})
	}
}

func TestProxyLink(t *testing.T) {
	assert.Equal(t, "/fetch?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc%26d%3De",
		proxyLink("https://example.com/a?b=c&d=e"))
}
