package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/bio2bel/internal/store/migrations"
	_ "modernc.org/sqlite"
)

var (
	ErrEmptyConnection   = errors.New("store: empty connection string")
	ErrUnsupportedDriver = errors.New("store: unsupported connection driver")
	ErrInvalidIdentifier = errors.New("store: invalid identifier")
	ErrClosed            = errors.New("store: closed")
)

const memoryPath = ":memory:"

// Table is one plugin-owned table. Create must be idempotent
// (CREATE TABLE IF NOT EXISTS).
type Table struct {
	Name   string
	Create string
}

// Schema lists plugin tables in creation order.
type Schema []Table

// Store wraps one SQLite database.
type Store struct {
	sqlDB      *sql.DB
	connection string
}

// ParseConnection maps a connection string to a SQLite file path.
// Accepted: sqlite:///abs/path, sqlite://rel/path, sqlite:// (memory),
// :memory:, or a bare filesystem path.
func ParseConnection(connection string) (string, error) {
	conn := strings.TrimSpace(connection)
	if conn == "" {
		return "", ErrEmptyConnection
	}
	if conn == memoryPath {
		return memoryPath, nil
	}
	if i := strings.Index(conn, "://"); i >= 0 {
		scheme := strings.ToLower(conn[:i])
		if scheme != "sqlite" {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, scheme)
		}
		rest := conn[i+len("://"):]
		if rest == "" || rest == "/" || rest == "/"+memoryPath {
			return memoryPath, nil
		}
		// sqlite:///abs keeps the leading slash of the absolute path.
		return filepath.Clean(rest), nil
	}
	return filepath.Clean(conn), nil
}

// Open opens the SQLite database behind connection and applies framework
// migrations.
func Open(ctx context.Context, connection string) (*Store, error) {
	path, err := ParseConnection(connection)
	if err != nil {
		return nil, err
	}

	dsn := memoryPath
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// :memory: databases exist per connection.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, connection: strings.TrimSpace(connection)}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

// DB exposes the handle for plugin queries.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Connection returns the connection string the store was opened with.
func (s *Store) Connection() string { return s.connection }

// Apply creates every table in schema.
func (s *Store) Apply(ctx context.Context, schema Schema) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for _, table := range schema {
		if err := validateIdentifier(table.Name); err != nil {
			return err
		}
		if _, err := s.sqlDB.ExecContext(ctx, table.Create); err != nil {
			return fmt.Errorf("create table %s: %w", table.Name, err)
		}
	}
	return nil
}

// Drop removes every table in schema, in reverse creation order.
func (s *Store) Drop(ctx context.Context, schema Schema) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for i := len(schema) - 1; i >= 0; i-- {
		name := schema[i].Name
		if err := validateIdentifier(name); err != nil {
			return err
		}
		if _, err := s.sqlDB.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}
	return nil
}

// TableExists reports whether table is present.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var n int
	err := s.sqlDB.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the row count of table, zero when the table is missing.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	exists, err := s.TableExists(ctx, table)
	if err != nil || !exists {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// CountDistinct returns the number of distinct values of column in table.
func (s *Store) CountDistinct(ctx context.Context, table, column string) (int, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	if err := validateIdentifier(column); err != nil {
		return 0, err
	}
	exists, err := s.TableExists(ctx, table)
	if err != nil || !exists {
		return 0, err
	}
	var n int
	q := fmt.Sprintf("SELECT COUNT(DISTINCT %s) FROM %s", column, table)
	if err := s.sqlDB.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count distinct %s.%s: %w", table, column, err)
	}
	return n, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ErrClosed
	}
	return nil
}

func validateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}
