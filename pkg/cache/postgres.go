package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresTable is the table used when none is given.
const DefaultPostgresTable = "reqcache_entries"

// PostgresMetadataStore keeps Cache Entries in a Postgres table with one row
// per Request Key. Writes run in an explicit read-write transaction.
type PostgresMetadataStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresMetadataStore creates a metadata store on pool. An empty table
// means DefaultPostgresTable.
func NewPostgresMetadataStore(pool *pgxpool.Pool, table string) *PostgresMetadataStore {
	if pool == nil {
		panic("postgres pool cannot be nil")
	}
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresMetadataStore{pool: pool, table: table}
}

// EnsureSchema creates the entries table if it does not exist.
func (s *PostgresMetadataStore) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key     TEXT PRIMARY KEY,
	expires TIMESTAMPTZ NOT NULL
)`, pgx.Identifier{s.table}.Sanitize())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func (s *PostgresMetadataStore) Get(ctx context.Context, key string) (Entry, error) {
	q := fmt.Sprintf(`SELECT expires FROM %s WHERE key = $1`, pgx.Identifier{s.table}.Sanitize())

	var expires time.Time
	if err := s.pool.QueryRow(ctx, q, key).Scan(&expires); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("postgres select: %w", err)
	}
	return Entry{Key: key, Expires: expires}, nil
}

func (s *PostgresMetadataStore) Put(ctx context.Context, entry Entry) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, expires) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET expires = EXCLUDED.expires`, pgx.Identifier{s.table}.Sanitize())

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("postgres begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, q, entry.Key, entry.Expires); err != nil {
		return fmt.Errorf("postgres upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	return nil
}
