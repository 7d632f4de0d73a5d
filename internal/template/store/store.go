package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/template"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertTemplate relies on the (user_id, description, unit_price)
// uniqueness to turn a duplicate save into a usage_count increment.
func (s *Store) UpsertTemplate(ctx context.Context, t *template.Template) error {
	query := `
		INSERT INTO item_templates (user_id, description, unit_price, usage_count, created_at, updated_at)
		VALUES ($1, $2, $3, 1, NOW(), NOW())
		ON CONFLICT (user_id, description, unit_price)
		DO UPDATE SET usage_count = item_templates.usage_count + 1, updated_at = NOW()
		RETURNING id, usage_count, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, t.UserID, t.Description, t.UnitPrice.String()).
		Scan(&t.ID, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}

	return nil
}

func (s *Store) ListTemplates(ctx context.Context, userID uuid.UUID) ([]*template.Template, error) {
	query := `
		SELECT id, user_id, description, unit_price, usage_count, created_at, updated_at
		FROM item_templates
		WHERE user_id = $1
		ORDER BY usage_count DESC, description ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []*template.Template

	for rows.Next() {
		var t template.Template

		var unitPrice sql.NullString

		if err := rows.Scan(&t.ID, &t.UserID, &t.Description, &unitPrice, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}

		if unitPrice.Valid && unitPrice.String != "" {
			if t.UnitPrice, err = decimal.NewFromString(unitPrice.String); err != nil {
				return nil, fmt.Errorf("parsing unit_price: %w", err)
			}
		}

		templates = append(templates, &t)
	}

	return templates, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, userID, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM item_templates WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return template.ErrNotFound
	}

	return nil
}
