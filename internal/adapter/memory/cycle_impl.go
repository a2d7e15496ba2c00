package memory

import (
	"context"
	"sync"

	"github.com/user/crawlgraph/internal/entity"
)

// maxCycles bounds the in-memory archive.
const maxCycles = 256

// CycleArchive keeps the most recent cycle records.
type CycleArchive struct {
	mu      sync.Mutex
	next    int64
	records []*entity.CycleRecord
}

func NewCycleArchive() *CycleArchive {
	return &CycleArchive{}
}

func (a *CycleArchive) Save(_ context.Context, rec *entity.CycleRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	rec.ID = a.next
	c := *rec
	a.records = append(a.records, &c)
	if len(a.records) > maxCycles {
		a.records = a.records[len(a.records)-maxCycles:]
	}
	return nil
}

func (a *CycleArchive) Recent(_ context.Context, limit int) ([]*entity.CycleRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.records) {
		limit = len(a.records)
	}
	out := make([]*entity.CycleRecord, 0, limit)
	for i := len(a.records) - 1; i >= len(a.records)-limit; i-- {
		c := *a.records[i]
		out = append(out, &c)
	}
	return out, nil
}
