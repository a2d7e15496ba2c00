// Package postgres implements the repository interfaces on pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of *pgxpool.Pool the repositories use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS graph_state (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mitigation_cycles (
	id            BIGSERIAL PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	outcome       TEXT NOT NULL,
	risk          TEXT NOT NULL,
	nodes_before  INTEGER NOT NULL,
	nodes_after   INTEGER NOT NULL,
	edges_before  INTEGER NOT NULL,
	edges_after   INTEGER NOT NULL,
	clusters      INTEGER NOT NULL,
	coverage      DOUBLE PRECISION NOT NULL,
	coverage_gain DOUBLE PRECISION NOT NULL,
	error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS mitigation_cycles_started_at_idx ON mitigation_cycles (started_at DESC);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db Querier) error {
	_, err := db.Exec(ctx, schema)
	return err
}
