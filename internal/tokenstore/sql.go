package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// TableName is the table holding token records.
const TableName = "flyerless_auth_codes"

// Dialect selects the SQL flavour spoken by SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	queryFind = `SELECT api_key, access_token, expires_at, created_at, updated_at
		FROM ` + TableName + ` WHERE api_key = ?`

	queryCreate = `INSERT INTO ` + TableName + ` (api_key, access_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (api_key) DO NOTHING`

	querySave = `INSERT INTO ` + TableName + ` (api_key, access_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (api_key) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
)

var schemas = map[Dialect]string{
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			api_key TEXT NOT NULL UNIQUE,
			access_token TEXT NOT NULL DEFAULT '',
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			id BIGSERIAL PRIMARY KEY,
			api_key TEXT NOT NULL UNIQUE,
			access_token TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
}

// SQLStore keeps records in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	opts    options
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect, opts ...Option) (*SQLStore, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
	return &SQLStore{db: db, dialect: dialect, opts: newOptions(opts)}, nil
}

// OpenSQLite opens (creating if needed) the sqlite database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; an in-memory database is also per-connection.
	db.SetMaxOpenConns(1)

	return openSQL(ctx, db, DialectSQLite, opts)
}

// OpenPostgres connects to dsn through the pgx driver and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return openSQL(ctx, db, DialectPostgres, opts)
}

func openSQL(ctx context.Context, db *sql.DB, dialect Dialect, opts []Option) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewSQLStore(db, dialect, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the token table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemas[s.dialect]); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Find(ctx context.Context, apiKey string) (*Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx, s.rebind(queryFind), apiKey).
		Scan(&rec.APIKey, &rec.AccessToken, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	return &rec, nil
}

// Create inserts the bootstrap record. A concurrent creator that loses the
// race on the api_key constraint gets ErrAlreadyExists.
func (s *SQLStore) Create(ctx context.Context, apiKey string) (*Record, error) {
	rec := NewRecord(apiKey, s.opts.now(), s.opts.bootstrapTTL)
	res, err := s.db.ExecContext(ctx, s.rebind(queryCreate),
		rec.APIKey, rec.AccessToken, rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}
	if n == 0 {
		return nil, ErrAlreadyExists
	}
	return rec, nil
}

func (s *SQLStore) Save(ctx context.Context, rec *Record) error {
	now := s.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(querySave),
		rec.APIKey, rec.AccessToken, rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into the dialect's form.
func (s *SQLStore) rebind(query string) string {
	return rebind(s.dialect, query)
}

func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
