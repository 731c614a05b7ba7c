package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Interaction is one answered (or failed) question, kept for inspection.
type Interaction struct {
	ID        string
	CreatedAt time.Time
	Question  string
	Intent    string
	Backend   string
	Answer    string
	Status    string
}

// SaveInteraction appends one interaction to the log.
func (s *Store) SaveInteraction(i Interaction) error {
	status := i.Status
	if status == "" {
		status = "answered"
	}
	_, err := s.db.Exec(`
		INSERT INTO interaction (id, created_at, question, intent, backend, answer, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.CreatedAt.UTC().Format(time.RFC3339), i.Question, i.Intent, i.Backend, i.Answer, status,
	)
	return err
}

// GetInteraction returns one interaction by ID.
func (s *Store) GetInteraction(id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, created_at, question, intent, backend, answer, status
		FROM interaction WHERE id = ?`, id,
	).Scan(&i.ID, &createdAt, &i.Question, &i.Intent, &i.Backend, &i.Answer, &i.Status)
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Interaction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	return i, nil
}

// GetRecentInteractions returns the newest interactions, most recent first.
func (s *Store) GetRecentInteractions(limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, question, intent, backend, answer, status
		FROM interaction ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &createdAt, &i.Question, &i.Intent, &i.Backend, &i.Answer, &i.Status); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}
