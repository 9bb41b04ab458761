package shared

import (
	"errors"
	"testing"

	sq "github.com/Masterminds/squirrel"
)

func TestParseDatabaseURL(t *testing.T) {
	tt := []struct {
		name        string
		url         string
		wantDialect Dialect
		wantDSN     string
		wantErr     error
	}{
		{name: "postgres", url: "postgres://u:p@host:5432/db", wantDialect: DialectPostgres, wantDSN: "postgres://u:p@host:5432/db"},
		{name: "postgresql", url: "postgresql://host/db", wantDialect: DialectPostgres, wantDSN: "postgresql://host/db"},
		{name: "sqlite scheme", url: "sqlite://./popetl.db", wantDialect: DialectSQLite, wantDSN: "./popetl.db"},
		{name: "sqlite3 scheme absolute", url: "sqlite3:///var/lib/popetl.db", wantDialect: DialectSQLite, wantDSN: "/var/lib/popetl.db"},
		{name: "file uri", url: "file:test.db?cache=shared", wantDialect: DialectSQLite, wantDSN: "file:test.db?cache=shared"},
		{name: "memory", url: ":memory:", wantDialect: DialectSQLite, wantDSN: ":memory:"},
		{name: "bare path", url: "data/popetl.db", wantDialect: DialectSQLite, wantDSN: "data/popetl.db"},
		{name: "empty", url: "  ", wantErr: ErrMissingConfig},
		{name: "unsupported scheme", url: "mysql://host/db", wantErr: ErrUnsupportedDatabase},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			dialect, dsn, err := ParseDatabaseURL(tc.url)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dialect != tc.wantDialect {
				t.Errorf("expected dialect %s, got %s", tc.wantDialect, dialect)
			}
			if dsn != tc.wantDSN {
				t.Errorf("expected dsn %s, got %s", tc.wantDSN, dsn)
			}
		})
	}
}

func TestDialect(t *testing.T) {
	t.Run("QualifiedTable", func(t *testing.T) {
		if got := DialectPostgres.QualifiedTable("public", "Recently_Played_Popularity"); got != `"public"."Recently_Played_Popularity"` {
			t.Errorf("unexpected postgres table %s", got)
		}
		if got := DialectSQLite.QualifiedTable("public", "Recently_Played_Popularity"); got != `"Recently_Played_Popularity"` {
			t.Errorf("unexpected sqlite table %s", got)
		}
		if got := DialectPostgres.QualifiedTable("", `we"ird`); got != `"we""ird"` {
			t.Errorf("expected embedded quote to be escaped, got %s", got)
		}
	})

	t.Run("Placeholder", func(t *testing.T) {
		if DialectPostgres.Placeholder() != sq.Dollar {
			t.Error("expected postgres to use dollar placeholders")
		}
		if DialectSQLite.Placeholder() != sq.Question {
			t.Error("expected sqlite to use question placeholders")
		}
	})
}

func TestNewDatabase(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if db.Dialect != DialectSQLite {
			t.Errorf("expected sqlite dialect, got %s", db.Dialect)
		}
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected in-memory pool pinned to 1 connection, got %d", got)
		}

		ConfigureDatabase(db, 10, 5)
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("ConfigureDatabase must not widen an in-memory pool, got %d", got)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := NewDatabase("mysql://host/db"); !errors.Is(err, ErrUnsupportedDatabase) {
			t.Errorf("expected ErrUnsupportedDatabase, got %v", err)
		}
	})
}
