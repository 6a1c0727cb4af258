package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"messaging/internal/constants"
)

const (
	postgresGetQuery    = `SELECT value FROM cache_entries WHERE key = $1`
	postgresUpsertQuery = `INSERT INTO cache_entries (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	postgresDeleteQuery = `DELETE FROM cache_entries WHERE key = $1`
)

// PostgresStore uses the cache_entries table created by the postgres
// migrations.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, postgresGetQuery, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("postgres select failed: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, postgresUpsertQuery, key, value); err != nil {
		return fmt.Errorf("postgres upsert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, postgresDeleteQuery, key); err != nil {
		return fmt.Errorf("postgres delete failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Backend() string {
	return constants.CacheBackendPostgres
}
