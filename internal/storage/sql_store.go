package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tendant/simple-image-handler/internal/params"
)

// DefaultTable is the table rendered variants are kept in.
const DefaultTable = "image_cache"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type dialect struct {
	driver string
	create string
	lookup string
	write  string
}

var postgres = dialect{
	driver: "postgres",
	create: `
		CREATE TABLE IF NOT EXISTS %s (
			cache_key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			size_bytes BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`,
	lookup: `SELECT data FROM %s WHERE cache_key = $1`,
	write: `
		INSERT INTO %s (cache_key, data, size_bytes, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (cache_key) DO UPDATE
		SET data = EXCLUDED.data,
		    size_bytes = EXCLUDED.size_bytes,
		    created_at = NOW()
	`,
}

var sqlite = dialect{
	driver: "sqlite3",
	create: `
		CREATE TABLE IF NOT EXISTS %s (
			cache_key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			size_bytes INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`,
	lookup: `SELECT data FROM %s WHERE cache_key = ?`,
	write: `
		INSERT INTO %s (cache_key, data, size_bytes, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (cache_key) DO UPDATE
		SET data = excluded.data,
		    size_bytes = excluded.size_bytes,
		    created_at = CURRENT_TIMESTAMP
	`,
}

// SQLStore keeps rendered variants in a single SQL table.
type SQLStore struct {
	db     *sql.DB
	owned  bool
	lookup string
	write  string
}

// OpenPostgresStore connects to dsn and prepares the cache table.
func OpenPostgresStore(ctx context.Context, dsn, table string) (*SQLStore, error) {
	return open(ctx, postgres, dsn, table)
}

// OpenSQLiteStore opens the database file at path and prepares the cache table.
func OpenSQLiteStore(ctx context.Context, path, table string) (*SQLStore, error) {
	return open(ctx, sqlite, path, table)
}

func open(ctx context.Context, d dialect, dsn, table string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: connection string required", d.driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}

	s, err := newSQLStore(ctx, d, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func newSQLStore(ctx context.Context, d dialect, db *sql.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(d.create, table)); err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", table, err)
	}

	return &SQLStore{
		db:     db,
		lookup: fmt.Sprintf(d.lookup, table),
		write:  fmt.Sprintf(d.write, table),
	}, nil
}

func (s *SQLStore) Lookup(ctx context.Context, key params.Key) ([]byte, bool, error) {
	if err := validKey(key); err != nil {
		return nil, false, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.lookup, key.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query cache entry: %w", err)
	}

	return data, true, nil
}

func (s *SQLStore) Write(ctx context.Context, key params.Key, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.write, key.String(), data, len(data)); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close releases the connection pool if the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
