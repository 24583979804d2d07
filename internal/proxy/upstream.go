package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const maxUpstreamBytes = 10 << 20

// upstreamDocument is an origin response read into memory.
type upstreamDocument struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

func (s *Server) fetchUpstream(ctx context.Context, target string, hdr http.Header, jar http.CookieJar) (*upstreamDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	copyHeader(req.Header, hdr)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	client := &http.Client{
		Transport: s.cfg.Transport,
		Jar:       jar,
		Timeout:   s.cfg.Timeout,
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes+1))
	if err != nil {
		return nil, fmt.Errorf("upstream read: %w", err)
	}
	if len(body) > maxUpstreamBytes {
		return nil, fmt.Errorf("upstream body exceeds %d bytes", maxUpstreamBytes)
	}
	return &upstreamDocument{
		URL:    resp.Request.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

// upstreamHeaders forwards the client's identity headers, letting the ua and
// lang query parameters override them.
func upstreamHeaders(r *http.Request) http.Header {
	hdr := http.Header{}
	q := r.URL.Query()
	if ua := firstNonEmpty(q.Get("ua"), r.UserAgent()); ua != "" {
		hdr.Set("User-Agent", ua)
	}
	if lang := firstNonEmpty(q.Get("lang"), r.Header.Get("Accept-Language")); lang != "" {
		hdr.Set("Accept-Language", lang)
	}
	return hdr
}
