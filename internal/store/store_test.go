package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("creates the database and its directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "data", "airpiano.db")

		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		defer s.Close()

		if s.Path() != dbPath {
			t.Errorf("expected path %s, got %s", dbPath, s.Path())
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file should exist: %v", err)
		}
	})

	t.Run("reopens a migrated database", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := s.Banks().Create(&Bank{Name: "keep", Engine: BankEngineMIDI}); err != nil {
			t.Fatalf("failed to create bank: %v", err)
		}
		s.Close()

		s, err = New(dbPath)
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer s.Close()

		if _, err := s.Banks().GetByName("keep"); err != nil {
			t.Errorf("expected bank to survive reopen: %v", err)
		}
	})

	t.Run("rejects a newer schema", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if _, err := s.DB().Exec(`PRAGMA user_version = 99`); err != nil {
			t.Fatalf("failed to bump version: %v", err)
		}
		s.Close()

		if s, err := New(dbPath); err == nil {
			s.Close()
			t.Error("expected error for a schema from a newer build")
		}
	})
}

func TestStore_Schema(t *testing.T) {
	s := newTestStore(t)

	var version int
	if err := s.DB().QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != SchemaVersion() {
		t.Errorf("expected schema version %d, got %d", SchemaVersion(), version)
	}

	objects := []struct {
		kind string
		name string
	}{
		{"table", "voice_banks"},
		{"table", "voice_samples"},
		{"table", "settings"},
		{"index", "idx_voice_samples_bank_id"},
	}
	for _, o := range objects {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?",
			o.kind, o.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q should exist after migrations: %v", o.kind, o.name, err)
		}
	}
}

func TestStore_Pragmas(t *testing.T) {
	s := newTestStore(t)

	// Every pooled connection must carry the pragmas, so check several at once.
	s.DB().SetMaxOpenConns(3)
	for i := 0; i < 3; i++ {
		conn, err := s.DB().Conn(context.Background())
		if err != nil {
			t.Fatalf("failed to get connection: %v", err)
		}
		defer conn.Close()

		var fk, timeout int
		if err := conn.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("failed to read foreign_keys: %v", err)
		}
		if err := conn.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("failed to read busy_timeout: %v", err)
		}
		if fk != 1 {
			t.Errorf("connection %d: foreign keys should be enabled", i)
		}
		if timeout != 5000 {
			t.Errorf("connection %d: expected busy_timeout 5000, got %d", i, timeout)
		}
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}
