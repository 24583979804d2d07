package proxy

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/publicsuffix"
)

const jarIdleTTL = 30 * time.Minute

// cookieJarStore keeps one upstream cookie jar per proxy client. Jars idle
// for jarIdleTTL are dropped.
type cookieJarStore struct {
	mu   sync.Mutex
	jars *gocache.Cache
}

func newCookieJarStore() *cookieJarStore {
	return &cookieJarStore{jars: gocache.New(jarIdleTTL, jarIdleTTL)}
}

func (s *cookieJarStore) Get(key string) http.CookieJar {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.jars.Get(key); ok {
		jar := v.(http.CookieJar)
		s.jars.SetDefault(key, jar)
		return jar
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	s.jars.SetDefault(key, jar)
	return jar
}

// deriveClientKey identifies a proxy client by address and user agent.
func deriveClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	return host + "|" + r.UserAgent()
}
