package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/crawlgraph/pkg/utils"
)

// Visited tracks visited URLs with per-entry expiry.
type Visited struct {
	mu      sync.Mutex
	now     func() time.Time
	expires map[string]time.Time
}

func NewVisited() *Visited {
	return &Visited{now: time.Now, expires: make(map[string]time.Time)}
}

func (v *Visited) MarkVisited(_ context.Context, url string, expiry time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.expires[utils.HashURL(url)] = v.now().Add(expiry)
	return nil
}

func (v *Visited) IsVisited(_ context.Context, url string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := utils.HashURL(url)
	exp, ok := v.expires[key]
	if !ok {
		return false, nil
	}
	if !v.now().Before(exp) {
		delete(v.expires, key)
		return false, nil
	}
	return true, nil
}

func (v *Visited) RemoveVisited(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.expires, utils.HashURL(url))
	return nil
}
