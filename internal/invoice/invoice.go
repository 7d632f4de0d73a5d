package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the persisted lifecycle state of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// DisplayStatus is the presentation-only status derived from the stored
// status plus time and payment progress. It is never persisted.
type DisplayStatus string

const (
	DisplayDraft     DisplayStatus = "draft"
	DisplaySent      DisplayStatus = "sent"
	DisplayDue       DisplayStatus = "due"
	DisplayOverdue   DisplayStatus = "overdue"
	DisplayPartial   DisplayStatus = "partial"
	DisplayPaid      DisplayStatus = "paid"
	DisplayCancelled DisplayStatus = "cancelled"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrDuplicateNumber = errors.New("invoice number already exists")

	ErrCancelled        = errors.New("invoice is cancelled")
	ErrAlreadyPaid      = errors.New("invoice is already paid")
	ErrAlreadyCancelled = errors.New("invoice is already cancelled")
	ErrCancelPaid       = errors.New("cannot cancel a paid invoice")
	ErrNotDraft         = errors.New("only draft invoices can be edited")

	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrOverpayment   = errors.New("payment exceeds invoice total")
	ErrInvalidToken  = errors.New("malformed token")

	ErrPaymentsDisabled = errors.New("online payments are not configured")
)

// Invoice is the central billing document. Client contact fields are
// denormalized from the customer at creation time so later customer
// edits do not rewrite history.
type Invoice struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Number string

	ClientName    string
	ClientEmail   string
	ClientAddress string
	Notes         string

	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
	AmountPaid decimal.Decimal

	Status  Status
	DueDate *time.Time

	PaymentToken *string
	ViewToken    *string

	CheckoutSessionID *string
	PaymentIntentID   *string
	PaymentMethod     *string

	EmailSentAt  *time.Time
	EmailSentTo  *string
	PaidAt       *time.Time
	LastViewedAt *time.Time
	ViewCount    int

	Items []Item

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

// Item is a single invoice line. Amount = Quantity x UnitPrice, fixed at
// creation.
type Item struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	Position    int
}

// Payment is one append-only ledger row against an invoice.
type Payment struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Reference string
	PaidAt    time.Time
	CreatedAt time.Time
}

// Receipt holds attachment metadata for a file stored elsewhere.
type Receipt struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	CreatedAt   time.Time
}
