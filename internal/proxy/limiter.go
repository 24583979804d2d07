package proxy

import (
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter spaces out upstream requests per origin host.
type hostLimiter struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	hosts map[string]*rate.Limiter
}

// newHostLimiter returns nil, meaning unlimited, when rps is not positive.
func newHostLimiter(rps float64, burst int) *hostLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &hostLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		hosts: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiter) get(host string) *rate.Limiter {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.hosts[host]
	if !ok {
		lim = rate.NewLimiter(h.limit, h.burst)
		h.hosts[host] = lim
	}
	return lim
}
