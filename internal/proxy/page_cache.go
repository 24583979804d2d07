package proxy

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"sloganeer/relabel"
)

// cachedPage is a rewritten response body ready to be served again.
type cachedPage struct {
	body        []byte
	contentType string
	finalURL    string
	stats       relabel.Stats
}

// pageCache keeps rewritten pages for a TTL. Keys carry the rules generation.
type pageCache struct {
	c *gocache.Cache
}

// newPageCache returns nil, meaning no caching, when ttl is not positive.
func newPageCache(ttl time.Duration) *pageCache {
	if ttl <= 0 {
		return nil
	}
	return &pageCache{c: gocache.New(ttl, 2*ttl)}
}

func cacheKey(target string, gen uint64) string {
	return strconv.FormatUint(gen, 10) + "|" + target
}

func (c *pageCache) Store(target string, gen uint64, page *cachedPage) {
	if c == nil || page == nil || len(page.body) == 0 {
		return
	}
	c.c.SetDefault(cacheKey(target, gen), page)
}

func (c *pageCache) Select(target string, gen uint64) (*cachedPage, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.c.Get(cacheKey(target, gen))
	if !ok {
		return nil, false
	}
	page, ok := v.(*cachedPage)
	return page, ok
}

func (c *pageCache) Len() int {
	if c == nil {
		return 0
	}
	return c.c.ItemCount()
}
