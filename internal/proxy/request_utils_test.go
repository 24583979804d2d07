package proxy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtraQuery(t *testing.T) {
	q := url.Values{
		"url":  {"http://example.com/search"},
		"q":    {"red shoes"},
		"lang": {"en"},
		"a":    {"1", "2"},
	}
	assert.Equal(t, "a=1&a=2&q=red+shoes", extraQuery(q))
	assert.Empty(t, extraQuery(url.Values{"url": {"x"}}))
}

func TestIsHTML(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want bool
	}{
		{"text/html", true},
		{"text/html; charset=windows-1251", true},
		{" Application/XHTML+XML ", true},
		{"image/png", false},
		{"application/json", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isHTML(tc.in), "isHTML(%q)", tc.in)
	}
}
