package shared

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL flavour behind a [Database]. Its value is the database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Database is an open connection pool together with the dialect it speaks.
type Database struct {
	*sql.DB
	Dialect Dialect
}

// Placeholder returns the squirrel placeholder format for the dialect.
func (d *Database) Placeholder() sq.PlaceholderFormat {
	return d.Dialect.Placeholder()
}

// Builder returns a squirrel statement builder preconfigured for the dialect.
func (d *Database) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder())
}

// Placeholder returns the squirrel placeholder format for the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// QualifiedTable quotes a table name and, where the dialect has schemas, prefixes it with schema.
//
// SQLite has no named schemas, so the schema is dropped there.
func (d Dialect) QualifiedTable(schema, table string) string {
	if d == DialectPostgres && schema != "" {
		return quoteIdent(schema) + "." + quoteIdent(table)
	}
	return quoteIdent(table)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseDatabaseURL resolves a connection string into a driver dialect and a driver-specific DSN.
//
//   - postgres://, postgresql:// are handed to lib/pq unchanged
//   - sqlite://path and sqlite3://path become path
//   - file: URIs, ":memory:" and bare paths are treated as SQLite
func ParseDatabaseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: database url is empty", ErrMissingConfig)
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(lower, "sqlite3://"):
		return DialectSQLite, raw[len("sqlite3://"):], nil
	case strings.HasPrefix(lower, "sqlite://"):
		return DialectSQLite, raw[len("sqlite://"):], nil
	case strings.HasPrefix(lower, "file:"), raw == ":memory:":
		return DialectSQLite, raw, nil
	case strings.Contains(lower, "://"):
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDatabase, raw[:strings.Index(raw, "://")])
	default:
		return DialectSQLite, raw, nil
	}
}

// NewDatabase opens a connection to the database described by url and verifies it with a ping.
// The url can be ":memory:" for an in-memory SQLite database.
func NewDatabase(url string) (*Database, error) {
	dialect, dsn, err := ParseDatabaseURL(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each SQLite connection to :memory: is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Dialect: dialect}, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Non-positive values leave the driver defaults in place, and a pool pinned to a single
// in-memory connection is left alone.
func ConfigureDatabase(db *Database, maxOpenConns, maxIdleConns int) {
	if db.Dialect == DialectSQLite && db.Stats().MaxOpenConnections == 1 {
		return
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
