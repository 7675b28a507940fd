package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Bank engines.
const (
	BankEngineMIDI   = "midi"
	BankEngineSample = "sample"
)

// Bank is a named voice bank: a sound path for each note index.
type Bank struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Engine      string         `json:"engine"`
	Description string         `json:"description"`
	Samples     map[int]string `json:"samples,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BankRepository provides CRUD operations for voice banks.
type BankRepository struct {
	db *sql.DB
}

// Banks returns the voice bank repository for this store.
func (s *Store) Banks() *BankRepository {
	return &BankRepository{db: s.db}
}

// Create inserts a bank and its samples in one transaction. An empty ID is
// filled with a new UUID.
func (r *BankRepository) Create(b *Bank) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO voice_banks (id, name, engine, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Engine, b.Description, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := insertSamples(tx, b.ID, b.Samples); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a bank and its samples by ID.
func (r *BankRepository) GetByID(id string) (*Bank, error) {
	return r.get(`WHERE id = ?`, id)
}

// GetByName retrieves a bank and its samples by name.
func (r *BankRepository) GetByName(name string) (*Bank, error) {
	return r.get(`WHERE name = ?`, name)
}

func (r *BankRepository) get(where string, arg string) (*Bank, error) {
	b := &Bank{}
	err := r.db.QueryRow(
		`SELECT id, name, engine, description, created_at, updated_at
		 FROM voice_banks `+where,
		arg,
	).Scan(&b.ID, &b.Name, &b.Engine, &b.Description, &b.CreatedAt, &b.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	samples, err := r.Samples(b.ID)
	if err != nil {
		return nil, err
	}
	b.Samples = samples
	return b, nil
}

// List retrieves all banks without their samples, ordered by name.
func (r *BankRepository) List() ([]*Bank, error) {
	rows, err := r.db.Query(
		`SELECT id, name, engine, description, created_at, updated_at
		 FROM voice_banks ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []*Bank
	for rows.Next() {
		b := &Bank{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Engine, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return banks, nil
}

// Samples returns the note index to path map of a bank.
func (r *BankRepository) Samples(bankID string) (map[int]string, error) {
	rows, err := r.db.Query(
		`SELECT note_index, path FROM voice_samples WHERE bank_id = ? ORDER BY note_index`,
		bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make(map[int]string)
	for rows.Next() {
		var note int
		var path string
		if err := rows.Scan(&note, &path); err != nil {
			return nil, err
		}
		samples[note] = path
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// SetSamples replaces every sample of a bank.
func (r *BankRepository) SetSamples(bankID string, samples map[int]string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE voice_banks SET updated_at = ? WHERE id = ?`, time.Now(), bankID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM voice_samples WHERE bank_id = ?`, bankID); err != nil {
		return err
	}
	if err := insertSamples(tx, bankID, samples); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a bank and its samples by ID.
func (r *BankRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM voice_banks WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func insertSamples(tx *sql.Tx, bankID string, samples map[int]string) error {
	if len(samples) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`INSERT INTO voice_samples (bank_id, note_index, path) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	notes := make([]int, 0, len(samples))
	for n := range samples {
		notes = append(notes, n)
	}
	sort.Ints(notes)

	for _, n := range notes {
		if _, err := stmt.Exec(bankID, n, samples[n]); err != nil {
			return fmt.Errorf("note %d: %w", n, err)
		}
	}
	return nil
}
