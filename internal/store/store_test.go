package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

var drivers = []string{DriverCGO, DriverPure}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.db")

			s, err := Open(path, WithDriver(driver))
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer s.Close()

			if _, err := os.Stat(path); os.IsNotExist(err) {
				t.Error("database file was not created")
			}
			if s.Driver() != driver {
				t.Errorf("Driver() = %q, want %q", s.Driver(), driver)
			}
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "run_variants", "run_files", "measurements"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), WithDriver("postgres"))
	if err == nil {
		t.Error("expected error for unknown driver, got nil")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := createTestStore(t, WithDriver(driver))
			ctx := context.Background()

			for _, p := range []struct{ name, want string }{
				{"journal_mode", "wal"},
				{"synchronous", "1"},
				{"busy_timeout", "5000"},
				{"foreign_keys", "1"},
			} {
				if err := s.verifyPragma(ctx, p.name, p.want); err != nil {
					t.Error(err)
				}
			}
		})
	}
}

func TestSchema_Version(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := createTestStore(t, WithDriver(driver))

			version, dirty, err := s.SchemaVersion()
			if err != nil {
				t.Fatalf("SchemaVersion() failed: %v", err)
			}
			if version != 2 || dirty {
				t.Errorf("SchemaVersion() = %d, %v; want 2, false", version, dirty)
			}
		})
	}
}

func TestSchema_RunsColumns(t *testing.T) {
	s := createTestStore(t)
	columns := getTableColumns(t, s.db, "runs")
	for _, col := range []string{
		"id", "created_at", "manifest_source", "manifest_hash", "catalogue_hash",
		"baseline", "device", "library", "duration_ms", "normalized", "host",
	} {
		if !slices.Contains(columns, col) {
			t.Errorf("runs table missing column %q", col)
		}
	}
	if !slices.Contains(getTableIndexes(t, s.db, "runs"), "idx_runs_created") {
		t.Error("runs table missing index idx_runs_created")
	}
}

func TestMigrateDown_DropsLatestColumns(t *testing.T) {
	s := createTestStore(t)
	if err := s.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown() failed: %v", err)
	}
	version, _, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version after down = %d, want 1", version)
	}
	if slices.Contains(getTableColumns(t, s.db, "runs"), "host") {
		t.Error("host column survived migration down")
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
