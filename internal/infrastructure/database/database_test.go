package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	t.Run("creates file and parent directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "voltgrid", "core.db")

		db := openAt(t, dbPath)
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Fatal("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("enables WAL journaling", func(t *testing.T) {
		db := openAt(t, filepath.Join(t.TempDir(), "core.db"))
		defer db.Close() //nolint:errcheck // Test cleanup

		var mode string
		if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("PRAGMA journal_mode error = %v", err)
		}
		if mode != "wal" {
			t.Errorf("journal_mode = %q, want wal", mode)
		}
	})

	t.Run("enforces foreign keys", func(t *testing.T) {
		db := openAt(t, filepath.Join(t.TempDir(), "core.db"))
		defer db.Close() //nolint:errcheck // Test cleanup

		ctx := context.Background()
		createComponentTables(t, db)

		// edges reference nodes; an edge to a missing node must fail
		_, err := db.ExecContext(ctx,
			"INSERT INTO edges (source_id, target_id) VALUES (?, ?)", 1, 99)
		if err == nil {
			t.Error("expected foreign key violation inserting dangling edge")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openAt(t, filepath.Join(t.TempDir(), "core.db"))
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	db := openAt(t, filepath.Join(t.TempDir(), "core.db"))

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after connection released error = %v", err)
	}
}

func TestBeginTx(t *testing.T) {
	db := openAt(t, filepath.Join(t.TempDir(), "core.db"))
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	createComponentTables(t, db)

	t.Run("commit persists rows", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO nodes (name, category) VALUES (?, ?)", "inverter-east", "inverter"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		if got := countNodes(t, db, "inverter-east"); got != 1 {
			t.Errorf("committed rows = %d, want 1", got)
		}
	})

	t.Run("rollback discards rows", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO nodes (name, category) VALUES (?, ?)", "battery-west", "battery"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}

		if got := countNodes(t, db, "battery-west"); got != 0 {
			t.Errorf("rolled back rows = %d, want 0", got)
		}
	})
}

func openAt(t *testing.T, path string) *DB {
	t.Helper()

	db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	return db
}

func createComponentTables(t *testing.T, db *DB) {
	t.Helper()

	ctx := context.Background()
	stmts := []string{
		"CREATE TABLE nodes (id INTEGER PRIMARY KEY, name TEXT NOT NULL, category TEXT NOT NULL)",
		"CREATE TABLE edges (source_id INTEGER NOT NULL REFERENCES nodes(id), target_id INTEGER NOT NULL REFERENCES nodes(id))",
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("creating test tables: %v", err)
		}
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO nodes (name, category) VALUES (?, ?)", "meter-main", "meter"); err != nil {
		t.Fatalf("seeding test tables: %v", err)
	}
}

func countNodes(t *testing.T, db *DB, name string) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM nodes WHERE name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("counting nodes: %v", err)
	}
	return n
}
