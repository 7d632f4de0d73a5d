// Package template holds reusable line-item presets. Saving a preset
// that already exists (same description and price) bumps its usage
// counter instead of inserting a duplicate.
package template

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("template not found")

type Template struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Description string
	UnitPrice   decimal.Decimal
	UsageCount  int
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
