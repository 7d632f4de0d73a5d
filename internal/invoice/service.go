package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=invoice
type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, userID, id uuid.UUID) (*Invoice, error)
	GetByPaymentToken(ctx context.Context, token string) (*Invoice, error)
	GetByViewToken(ctx context.Context, token string) (*Invoice, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*Invoice, error)
	ListInvoices(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, userID, id uuid.UUID) error

	MarkSent(ctx context.Context, id uuid.UUID, paymentToken, viewToken *string, sentTo string, sentAt time.Time) error
	MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID) error
	AddPayment(ctx context.Context, p *Payment, amountPaid decimal.Decimal, status Status, paidAt *time.Time) error
	RecordView(ctx context.Context, id uuid.UUID, viewedAt time.Time) error
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID, intentID string) error

	ListPayments(ctx context.Context, userID, invoiceID uuid.UUID) ([]*Payment, error)
	AddReceipt(ctx context.Context, rec *Receipt) error
	ListReceipts(ctx context.Context, userID, invoiceID uuid.UUID) ([]*Receipt, error)
}

// Mailer delivers a rendered invoice to the client address.
type Mailer interface {
	SendInvoice(ctx context.Context, inv *Invoice, viewURL, payURL string) error
}

// CheckoutSession is the externally hosted payment session for one invoice.
type CheckoutSession struct {
	ID              string
	PaymentIntentID string
	URL             string
}

// CheckoutProvider creates hosted checkout sessions with the payment
// processor. A nil provider means online payments are disabled.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, inv *Invoice) (*CheckoutSession, error)
}

type TokenSource struct {
	Payment func() (string, error)
	View    func() (string, error)
}

type Service struct {
	repo     Repository
	mailer   Mailer
	checkout CheckoutProvider
	tokens   TokenSource

	baseURL      string
	numberPrefix string

	now func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCheckout enables the online payment integration.
func WithCheckout(p CheckoutProvider) Option {
	return func(s *Service) { s.checkout = p }
}

// WithTokenSource overrides token generation, primarily for tests.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Service) { s.tokens = ts }
}

func NewService(repo Repository, mailer Mailer, baseURL, numberPrefix string, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		mailer:       mailer,
		baseURL:      baseURL,
		numberPrefix: numberPrefix,
		now:          time.Now,
		tokens:       defaultTokenSource(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type ItemParams struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type CreateParams struct {
	ClientName    string
	ClientEmail   string
	ClientAddress string
	Notes         string
	Tax           decimal.Decimal
	DueDate       *time.Time
	Items         []ItemParams
}

type ListFilter struct {
	Status    *Status
	StartDate *time.Time
	EndDate   *time.Time
}

// createAttempts bounds the retry loop when the generated invoice number
// collides with an existing one. The number scheme is deliberately
// narrow (4 random digits per month), so collisions are expected to be
// rare but possible.
const createAttempts = 3

func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Invoice, error) {
	items := make([]Item, len(params.Items))
	subtotal := decimal.Zero

	for i, p := range params.Items {
		amount := p.Quantity.Mul(p.UnitPrice)
		subtotal = subtotal.Add(amount)

		items[i] = Item{
			Description: p.Description,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
			Amount:      amount,
			Position:    i,
		}
	}

	inv := &Invoice{
		UserID:        userID,
		ClientName:    params.ClientName,
		ClientEmail:   params.ClientEmail,
		ClientAddress: params.ClientAddress,
		Notes:         params.Notes,
		Subtotal:      subtotal,
		Tax:           params.Tax,
		Total:         subtotal.Add(params.Tax),
		AmountPaid:    decimal.Zero,
		Status:        StatusDraft,
		DueDate:       params.DueDate,
		Items:         items,
	}

	var err error

	for attempt := 0; attempt < createAttempts; attempt++ {
		inv.Number, err = s.newNumber()
		if err != nil {
			return nil, err
		}

		err = s.repo.CreateInvoice(ctx, inv)
		if err == nil {
			return inv, nil
		}

		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("allocating invoice number: %w", err)
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, userID, filter)
}

type UpdateParams struct {
	ClientName    *string
	ClientEmail   *string
	ClientAddress *string
	Notes         *string
	Tax           *decimal.Decimal
	DueDate       *time.Time
	Items         []ItemParams
}

// Update edits a draft invoice. Sent, paid and cancelled invoices are
// immutable; totals are recomputed when items or tax change.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, params UpdateParams) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status != StatusDraft {
		return nil, ErrNotDraft
	}

	if params.ClientName != nil {
		inv.ClientName = *params.ClientName
	}

	if params.ClientEmail != nil {
		inv.ClientEmail = *params.ClientEmail
	}

	if params.ClientAddress != nil {
		inv.ClientAddress = *params.ClientAddress
	}

	if params.Notes != nil {
		inv.Notes = *params.Notes
	}

	if params.Tax != nil {
		inv.Tax = *params.Tax
	}

	if params.DueDate != nil {
		inv.DueDate = params.DueDate
	}

	if params.Items != nil {
		items := make([]Item, len(params.Items))
		subtotal := decimal.Zero

		for i, p := range params.Items {
			amount := p.Quantity.Mul(p.UnitPrice)
			subtotal = subtotal.Add(amount)

			items[i] = Item{
				InvoiceID:   inv.ID,
				Description: p.Description,
				Quantity:    p.Quantity,
				UnitPrice:   p.UnitPrice,
				Amount:      amount,
				Position:    i,
			}
		}

		inv.Items = items
		inv.Subtotal = subtotal
	}

	inv.Total = inv.Subtotal.Add(inv.Tax)

	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteInvoice(ctx, userID, id)
}

// Send emails the invoice to the client and marks it sent. Payment and
// view tokens are assigned lazily on first send and reused afterwards;
// the payment token is only assigned when a checkout provider is
// configured.
func (s *Service) Send(ctx context.Context, userID, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	if inv.PaymentToken == nil && s.checkout != nil {
		t, err := s.tokens.Payment()
		if err != nil {
			return nil, fmt.Errorf("generating payment token: %w", err)
		}

		inv.PaymentToken = &t
	}

	if inv.ViewToken == nil {
		t, err := s.tokens.View()
		if err != nil {
			return nil, fmt.Errorf("generating view token: %w", err)
		}

		inv.ViewToken = &t
	}

	var viewURL, payURL string

	if inv.ViewToken != nil {
		viewURL = fmt.Sprintf("%s/i/%s", s.baseURL, *inv.ViewToken)
	}

	if inv.PaymentToken != nil {
		payURL = fmt.Sprintf("%s/pay/%s", s.baseURL, *inv.PaymentToken)
	}

	if err := s.mailer.SendInvoice(ctx, inv, viewURL, payURL); err != nil {
		return nil, fmt.Errorf("sending invoice email: %w", err)
	}

	now := s.now()
	if err := s.repo.MarkSent(ctx, inv.ID, inv.PaymentToken, inv.ViewToken, inv.ClientEmail, now); err != nil {
		return nil, err
	}

	inv.Status = StatusSent
	inv.EmailSentAt = &now
	inv.EmailSentTo = &inv.ClientEmail

	return inv, nil
}

// MarkPaid records a manual (out-of-band) payment in full.
func (s *Service) MarkPaid(ctx context.Context, userID, id uuid.UUID, method string) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}

	if inv.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	now := s.now()
	if err := s.repo.MarkPaid(ctx, inv.ID, method, now); err != nil {
		return nil, err
	}

	inv.Status = StatusPaid
	inv.PaidAt = &now
	inv.PaymentMethod = &method

	return inv, nil
}

func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusPaid {
		return nil, ErrCancelPaid
	}

	if inv.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.repo.MarkCancelled(ctx, inv.ID); err != nil {
		return nil, err
	}

	inv.Status = StatusCancelled

	return inv, nil
}

type PaymentParams struct {
	Amount    decimal.Decimal
	Method    string
	Reference string
}

// RecordPayment appends a ledger row and advances amount_paid. The
// invoice transitions to paid when amount_paid reaches the total; a
// payment pushing amount_paid past the total is rejected so the
// amount_paid <= total invariant always holds.
func (s *Service) RecordPayment(ctx context.Context, userID, id uuid.UUID, params PaymentParams) (*Invoice, error) {
	if !params.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	inv, err := s.repo.GetInvoice(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status == StatusCancelled {
		return nil, ErrCancelled
	}

	if inv.Status == StatusPaid {
		return nil, ErrAlreadyPaid
	}

	amountPaid := inv.AmountPaid.Add(params.Amount)
	if amountPaid.GreaterThan(inv.Total) {
		return nil, ErrOverpayment
	}

	now := s.now()

	p := &Payment{
		InvoiceID: inv.ID,
		Amount:    params.Amount,
		Method:    params.Method,
		Reference: params.Reference,
		PaidAt:    now,
	}

	status := inv.Status

	var paidAt *time.Time

	if amountPaid.GreaterThanOrEqual(inv.Total) {
		status = StatusPaid
		paidAt = &now
	}

	if err := s.repo.AddPayment(ctx, p, amountPaid, status, paidAt); err != nil {
		return nil, err
	}

	inv.AmountPaid = amountPaid
	inv.Status = status
	inv.PaidAt = paidAt

	return inv, nil
}

// minViewTokenLength rejects obviously malformed lookups before they
// reach the store.
const minViewTokenLength = 32

// TrackView resolves a public view token, bumps the view counter and
// returns the invoice. The counter moves on every call regardless of
// status; this read deliberately has a write side effect.
func (s *Service) TrackView(ctx context.Context, viewToken string) (*Invoice, error) {
	if len(viewToken) < minViewTokenLength {
		return nil, ErrInvalidToken
	}

	inv, err := s.repo.GetByViewToken(ctx, viewToken)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.RecordView(ctx, inv.ID, now); err != nil {
		return nil, err
	}

	inv.ViewCount++
	inv.LastViewedAt = &now

	return inv, nil
}

// Checkout starts a hosted payment session for the invoice behind a
// public payment token. Status is not touched here; finalization
// arrives asynchronously through the processor's webhook.
func (s *Service) Checkout(ctx context.Context, paymentToken string) (string, error) {
	if s.checkout == nil {
		return "", ErrPaymentsDisabled
	}

	if len(paymentToken) != 64 {
		return "", ErrInvalidToken
	}

	inv, err := s.repo.GetByPaymentToken(ctx, paymentToken)
	if err != nil {
		return "", err
	}

	if inv.Status == StatusPaid {
		return "", ErrAlreadyPaid
	}

	if inv.Status == StatusCancelled {
		return "", ErrCancelled
	}

	sess, err := s.checkout.CreateSession(ctx, inv)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	if err := s.repo.SetCheckoutSession(ctx, inv.ID, sess.ID, sess.PaymentIntentID); err != nil {
		return "", err
	}

	return sess.URL, nil
}

// FinalizeCheckout settles an invoice after the processor confirms a
// completed session. Idempotent: a second confirmation for an already
// paid invoice is a no-op. An invoice cancelled while its session was
// open must not be settled; the caller decides how to answer the
// processor.
func (s *Service) FinalizeCheckout(ctx context.Context, sessionID string) error {
	inv, err := s.repo.GetByCheckoutSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if inv.Status == StatusPaid {
		return nil
	}

	if inv.Status == StatusCancelled {
		return ErrCancelled
	}

	remaining := inv.Total.Sub(inv.AmountPaid)
	if !remaining.IsPositive() {
		return nil
	}

	now := s.now()

	p := &Payment{
		InvoiceID: inv.ID,
		Amount:    remaining,
		Method:    "card",
		Reference: sessionID,
		PaidAt:    now,
	}

	return s.repo.AddPayment(ctx, p, inv.Total, StatusPaid, &now)
}

func (s *Service) Payments(ctx context.Context, userID, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, userID, invoiceID)
}

type ReceiptParams struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
}

func (s *Service) AttachReceipt(ctx context.Context, userID, invoiceID uuid.UUID, params ReceiptParams) (*Receipt, error) {
	// Ownership check; the receipt row itself has no user_id.
	if _, err := s.repo.GetInvoice(ctx, userID, invoiceID); err != nil {
		return nil, err
	}

	rec := &Receipt{
		InvoiceID:   invoiceID,
		FileName:    params.FileName,
		ContentType: params.ContentType,
		SizeBytes:   params.SizeBytes,
		StorageKey:  params.StorageKey,
	}

	if err := s.repo.AddReceipt(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Service) Receipts(ctx context.Context, userID, invoiceID uuid.UUID) ([]*Receipt, error) {
	return s.repo.ListReceipts(ctx, userID, invoiceID)
}

// Display computes the presentation status using the service clock.
func (s *Service) Display(inv *Invoice) DisplayStatus {
	return Display(inv, s.now())
}
