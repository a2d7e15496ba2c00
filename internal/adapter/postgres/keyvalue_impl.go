package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/user/crawlgraph/internal/repository"
)

// KeyValueStoreImpl keeps one JSONB row per key in graph_state. Each Set is
// a single upsert statement.
type KeyValueStoreImpl struct {
	db Querier
}

// NewKeyValueStore creates a new instance of KeyValueStoreImpl.
func NewKeyValueStore(db Querier) *KeyValueStoreImpl {
	return &KeyValueStoreImpl{db: db}
}

func (r *KeyValueStoreImpl) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM graph_state WHERE key = $1;`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *KeyValueStoreImpl) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO graph_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := r.db.Exec(ctx, query, key, value)
	return err
}

func (r *KeyValueStoreImpl) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM graph_state WHERE key = $1;`, key)
	return err
}
