package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	base := normalizeTarget(q.Get("url"))
	if base == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	get := firstNonEmpty(q.Get("get"), extraQuery(q))
	finalURL := buildURL(base, q.Get("action"), get)
	u, err := url.Parse(finalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	finalURL = u.String()

	rules, gen := s.rules.Get()
	if page, ok := s.cache.Select(finalURL, gen); ok {
		w.Header().Set("X-Sloganeer-Cache", "hit")
		s.writePage(w, page)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	if lim := s.limits.get(strings.ToLower(u.Hostname())); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			s.logger.Debug("upstream rate limited", zap.String("host", u.Hostname()), zap.Error(err))
			http.Error(w, "too many requests for "+u.Hostname(), http.StatusTooManyRequests)
			return
		}
	}

	site := s.sites.Find(finalURL)
	hdr := upstreamHeaders(r)
	if site != nil {
		for k, v := range site.Headers {
			hdr.Set(k, v)
		}
	}

	var page *cachedPage
	if site != nil && site.Mode == ModeJS && s.cfg.Browser != nil {
		page, err = s.loadInBrowser(ctx, finalURL, rules)
	} else {
		page, err = s.loadOverHTTP(ctx, w, r, finalURL, hdr, rules)
	}
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("fetch failed", zap.String("url", finalURL), zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}
	if page == nil {
		// passed through untouched
		return
	}
	s.logger.Info("page relabeled",
		zap.String("url", finalURL),
		zap.Uint64("texts", page.stats.Texts),
		zap.Uint64("values", page.stats.Values))
	s.cache.Store(finalURL, gen, page)
	s.writePage(w, page)
}

// loadOverHTTP fetches target directly. Responses that are not HTML are
// streamed to w as they are and reported with a nil page.
func (s *Server) loadOverHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request, target string, hdr http.Header, rules Rules) (*cachedPage, error) {
	doc, err := s.fetchUpstream(ctx, target, hdr, s.cookieJars.Get(deriveClientKey(r)))
	if err != nil {
		return nil, err
	}
	ct := doc.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(doc.Body)
	}
	if !isHTML(ct) || doc.Status != http.StatusOK {
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(doc.Status)
		_, _ = w.Write(doc.Body)
		return nil, nil
	}
	body, stats, err := s.rewritePage(doc.Body, ct, doc.URL, rules, false)
	if err != nil {
		return nil, err
	}
	return &cachedPage{
		body:        body,
		contentType: "text/html; charset=utf-8",
		finalURL:    doc.URL,
		stats:       stats,
	}, nil
}

// loadInBrowser relabels target live in Chrome so that script-built content
// is covered, then rewrites the snapshot's links.
func (s *Server) loadInBrowser(ctx context.Context, target string, rules Rules) (*cachedPage, error) {
	start := time.Now()
	markup, stats, err := s.cfg.Browser.Relabel(ctx, target, rules.Stylesheet, rules.engine(s.logger), s.cfg.Settle)
	if err != nil {
		return nil, err
	}
	body, _, err := s.rewritePage([]byte(markup), "text/html; charset=utf-8", target, rules, true)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("browser render", zap.String("url", target), zap.Duration("elapsed", time.Since(start)))
	return &cachedPage{
		body:        body,
		contentType: "text/html; charset=utf-8",
		finalURL:    target,
		stats:       stats,
	}, nil
}

func (s *Server) writePage(w http.ResponseWriter, page *cachedPage) {
	w.Header().Set("Content-Type", page.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(page.body)))
	w.Header().Set("X-Sloganeer-Texts", strconv.FormatUint(page.stats.Texts, 10))
	w.Header().Set("X-Sloganeer-Values", strconv.FormatUint(page.stats.Values, 10))
	if page.finalURL != "" {
		w.Header().Set("Content-Location", proxyLink(page.finalURL))
	}
	_, _ = w.Write(page.body)
}
