package store

import "fmt"

// migrations holds the schema steps in order. Step i brings the database
// from user_version i to i+1; applied steps never change.
var migrations = [][]string{
	{
		// Voice banks - named sets of per-note sounds
		`CREATE TABLE voice_banks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			engine TEXT NOT NULL CHECK(engine IN ('midi', 'sample')),
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Voice samples - the sound path of one note index in a bank
		`CREATE TABLE voice_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bank_id TEXT NOT NULL REFERENCES voice_banks(id) ON DELETE CASCADE,
			note_index INTEGER NOT NULL CHECK(note_index >= 0),
			path TEXT NOT NULL,
			UNIQUE(bank_id, note_index)
		)`,
		`CREATE INDEX idx_voice_samples_bank_id ON voice_samples(bank_id)`,

		// Settings - application settings as key-value pairs
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
}

// SchemaVersion is the user_version of a fully migrated database.
func SchemaVersion() int {
	return len(migrations)
}

// migrate applies every step above the database's user_version, each in
// its own transaction.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}
