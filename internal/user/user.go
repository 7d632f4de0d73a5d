package user

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User owns invoices, customers and templates. The business profile and
// bank fields are copied into outbound invoice emails.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string

	BusinessName    string
	BusinessAddress string
	Phone           string

	BankName            string
	BankAccount         string
	PaymentInstructions string

	CreatedAt time.Time
	UpdatedAt *time.Time
}
