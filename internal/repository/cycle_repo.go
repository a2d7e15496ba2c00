package repository

import (
	"context"

	"github.com/user/crawlgraph/internal/entity"
)

// CycleRepository archives mitigation cycle summaries.
type CycleRepository interface {
	// Save stores the record and fills in its ID.
	Save(ctx context.Context, rec *entity.CycleRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*entity.CycleRecord, error)
}
