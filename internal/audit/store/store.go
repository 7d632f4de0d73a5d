package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openbill/openbill/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (user_id, action, entity_type, entity_id, details, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query,
		e.UserID, e.Action, e.EntityType, e.EntityID, details, e.IP, e.UserAgent,
	); err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}

	return nil
}
