package chromedp_crawler

import (
	"math/rand"
	"sync"
	"time"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Rotator hands out user agents at random and proxies round robin.
type Rotator struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	userAgents []string
	proxies    []string
	proxyIndex int
}

// NewRotator falls back to a built-in desktop user agent list when none are
// given. An empty proxy list means direct connections.
func NewRotator(userAgents, proxies []string) *Rotator {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	return &Rotator{
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		userAgents: append([]string(nil), userAgents...),
		proxies:    append([]string(nil), proxies...),
	}
}

// UserAgent returns a random user agent string.
func (r *Rotator) UserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userAgents[r.rnd.Intn(len(r.userAgents))]
}

// Proxy returns the next proxy, or "" when none are configured.
func (r *Rotator) Proxy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return ""
	}
	p := r.proxies[r.proxyIndex]
	r.proxyIndex = (r.proxyIndex + 1) % len(r.proxies)
	return p
}
