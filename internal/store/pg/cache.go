package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"payso.org/internal/escrow"
)

// Cache persists ledger read snapshots so restarts do not refetch the whole
// payment history from the node.
type Cache struct {
	db *sql.DB
}

var _ escrow.Cache = (*Cache)(nil)

// Open connects to Postgres with pool defaults tuned for a small service.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Cache{db: db}, nil
}

// NewCache wraps an existing handle; used by tests.
func NewCache(db *sql.DB) *Cache { return &Cache{db: db} }

func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) DB() *sql.DB { return c.db }

// EnsureSchema creates the cache table when it does not exist yet.
func (c *Cache) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		create table if not exists ledger_cache (
			key        text primary key,
			value      jsonb not null,
			updated_at timestamptz not null default now()
		)
	`)
	return err
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `select value from ledger_cache where key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx, `
		insert into ledger_cache(key, value, updated_at)
		values ($1, $2, now())
		on conflict (key) do update
		set value = excluded.value, updated_at = now()
	`, key, value)
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `delete from ledger_cache where key = $1`, key)
	return err
}
