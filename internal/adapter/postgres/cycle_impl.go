package postgres

import (
	"context"

	"github.com/user/crawlgraph/internal/entity"
)

const defaultRecentLimit = 50

// CycleRepoImpl archives mitigation cycles in mitigation_cycles.
type CycleRepoImpl struct {
	db Querier
}

// NewCycleRepo creates a new instance of CycleRepoImpl.
func NewCycleRepo(db Querier) *CycleRepoImpl {
	return &CycleRepoImpl{db: db}
}

// Save inserts the record and sets its ID from the generated key.
func (r *CycleRepoImpl) Save(ctx context.Context, rec *entity.CycleRecord) error {
	query := `
		INSERT INTO mitigation_cycles (started_at, finished_at, outcome, risk, nodes_before, nodes_after,
			edges_before, edges_after, clusters, coverage, coverage_gain, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id;
	`
	return r.db.QueryRow(ctx, query,
		rec.StartedAt,
		rec.FinishedAt,
		string(rec.Outcome),
		string(rec.Risk),
		rec.NodesBefore,
		rec.NodesAfter,
		rec.EdgesBefore,
		rec.EdgesAfter,
		rec.Clusters,
		rec.Coverage,
		rec.CoverageGain,
		rec.Error,
	).Scan(&rec.ID)
}

// Recent returns the newest records first.
func (r *CycleRepoImpl) Recent(ctx context.Context, limit int) ([]*entity.CycleRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	query := `
		SELECT id, started_at, finished_at, outcome, risk, nodes_before, nodes_after,
			edges_before, edges_after, clusters, coverage, coverage_gain, error
		FROM mitigation_cycles
		ORDER BY started_at DESC, id DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*entity.CycleRecord
	for rows.Next() {
		var rec entity.CycleRecord
		var outcome, risk string
		if err := rows.Scan(
			&rec.ID,
			&rec.StartedAt,
			&rec.FinishedAt,
			&outcome,
			&risk,
			&rec.NodesBefore,
			&rec.NodesAfter,
			&rec.EdgesBefore,
			&rec.EdgesAfter,
			&rec.Clusters,
			&rec.Coverage,
			&rec.CoverageGain,
			&rec.Error,
		); err != nil {
			return nil, err
		}
		rec.Outcome = entity.CycleOutcome(outcome)
		rec.Risk = entity.RiskLevel(risk)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
