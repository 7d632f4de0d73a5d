// Package customer holds reusable client profiles. Invoices copy the
// contact fields at creation instead of referencing these rows, so a
// customer edit never rewrites an already issued invoice.
package customer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("customer not found")

type Customer struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}
