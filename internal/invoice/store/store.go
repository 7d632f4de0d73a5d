package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/invoice"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// parseDecimal coerces a stored numeric (arriving as a string) into a
// decimal, defaulting NULL to zero. Going through the string form avoids
// a float64 round-trip and the precision loss that comes with it.
func parseDecimal(ns sql.NullString) (decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return decimal.Zero, nil
	}

	return decimal.NewFromString(ns.String)
}

const selectInvoiceColumns = `
	i.id, i.user_id, i.number, i.client_name, i.client_email, i.client_address, i.notes,
	i.subtotal, i.tax, i.total, i.amount_paid, i.status, i.due_date,
	i.payment_token, i.view_token, i.checkout_session_id, i.payment_intent_id, i.payment_method,
	i.email_sent_at, i.email_sent_to, i.paid_at, i.last_viewed_at, i.view_count,
	i.created_at, i.updated_at, i.deleted_at
`

// scanInvoice reads an invoice row in selectInvoiceColumns order.
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var statusStr string

	var subtotal, tax, total, amountPaid sql.NullString

	if err := s.Scan(
		&inv.ID, &inv.UserID, &inv.Number, &inv.ClientName, &inv.ClientEmail, &inv.ClientAddress, &inv.Notes,
		&subtotal, &tax, &total, &amountPaid, &statusStr, &inv.DueDate,
		&inv.PaymentToken, &inv.ViewToken, &inv.CheckoutSessionID, &inv.PaymentIntentID, &inv.PaymentMethod,
		&inv.EmailSentAt, &inv.EmailSentTo, &inv.PaidAt, &inv.LastViewedAt, &inv.ViewCount,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	); err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(statusStr)

	var err error

	if inv.Subtotal, err = parseDecimal(subtotal); err != nil {
		return nil, fmt.Errorf("parsing subtotal: %w", err)
	}

	if inv.Tax, err = parseDecimal(tax); err != nil {
		return nil, fmt.Errorf("parsing tax: %w", err)
	}

	if inv.Total, err = parseDecimal(total); err != nil {
		return nil, fmt.Errorf("parsing total: %w", err)
	}

	if inv.AmountPaid, err = parseDecimal(amountPaid); err != nil {
		return nil, fmt.Errorf("parsing amount_paid: %w", err)
	}

	return &inv, nil
}

func scanItem(s scanner) (invoice.Item, error) {
	var item invoice.Item

	var quantity, unitPrice, amount sql.NullString

	if err := s.Scan(
		&item.ID, &item.InvoiceID, &item.Description, &quantity, &unitPrice, &amount, &item.Position,
	); err != nil {
		return invoice.Item{}, err
	}

	var err error

	if item.Quantity, err = parseDecimal(quantity); err != nil {
		return invoice.Item{}, fmt.Errorf("parsing quantity: %w", err)
	}

	if item.UnitPrice, err = parseDecimal(unitPrice); err != nil {
		return invoice.Item{}, fmt.Errorf("parsing unit_price: %w", err)
	}

	if item.Amount, err = parseDecimal(amount); err != nil {
		return invoice.Item{}, fmt.Errorf("parsing amount: %w", err)
	}

	return item, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO invoices (
			user_id, number, client_name, client_email, client_address, notes,
			subtotal, tax, total, amount_paid, status, due_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err = dbTx.QueryRowContext(ctx, query,
		inv.UserID,
		inv.Number,
		inv.ClientName,
		inv.ClientEmail,
		inv.ClientAddress,
		inv.Notes,
		inv.Subtotal.String(),
		inv.Tax.String(),
		inv.Total.String(),
		inv.AmountPaid.String(),
		inv.Status,
		inv.DueDate,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "invoices_number_key") {
			return invoice.ErrDuplicateNumber
		}

		return fmt.Errorf("creating invoice: %w", err)
	}

	if err := insertItems(ctx, dbTx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing invoice: %w", err)
	}

	return nil
}

func insertItems(ctx context.Context, dbTx *sql.Tx, invoiceID uuid.UUID, items []invoice.Item) error {
	query := `
		INSERT INTO invoice_items (invoice_id, description, quantity, unit_price, amount, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range items {
		items[i].InvoiceID = invoiceID

		err := dbTx.QueryRowContext(ctx, query,
			invoiceID,
			items[i].Description,
			items[i].Quantity.String(),
			items[i].UnitPrice.String(),
			items[i].Amount.String(),
			items[i].Position,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("creating invoice item: %w", err)
		}
	}

	return nil
}

func (s *Store) loadItems(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		SELECT id, invoice_id, description, quantity, unit_price, amount, position
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, inv.ID)
	if err != nil {
		return fmt.Errorf("listing invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("scanning invoice item: %w", err)
		}

		inv.Items = append(inv.Items, item)
	}

	return rows.Err()
}

func (s *Store) getOne(ctx context.Context, where string, args ...any) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		WHERE i.deleted_at IS NULL AND ` + where

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	if err := s.loadItems(ctx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, userID, id uuid.UUID) (*invoice.Invoice, error) {
	return s.getOne(ctx, "i.id = $1 AND i.user_id = $2", id, userID)
}

func (s *Store) GetByPaymentToken(ctx context.Context, token string) (*invoice.Invoice, error) {
	return s.getOne(ctx, "i.payment_token = $1", token)
}

func (s *Store) GetByViewToken(ctx context.Context, token string) (*invoice.Invoice, error) {
	return s.getOne(ctx, "i.view_token = $1", token)
}

func (s *Store) GetByCheckoutSession(ctx context.Context, sessionID string) (*invoice.Invoice, error) {
	return s.getOne(ctx, "i.checkout_session_id = $1", sessionID)
}

func (s *Store) ListInvoices(ctx context.Context, userID uuid.UUID, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + `
		FROM invoices i
		WHERE i.deleted_at IS NULL AND i.user_id = $1`

	args := []any{userID}

	argIdx := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND i.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND i.created_at >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND i.created_at <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY i.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invs []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invs = append(invs, inv)
	}

	return invs, rows.Err()
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		UPDATE invoices
		SET client_name = $1, client_email = $2, client_address = $3, notes = $4,
			subtotal = $5, tax = $6, total = $7, due_date = $8, updated_at = NOW()
		WHERE id = $9 AND deleted_at IS NULL
	`

	_, err = dbTx.ExecContext(ctx, query,
		inv.ClientName,
		inv.ClientEmail,
		inv.ClientAddress,
		inv.Notes,
		inv.Subtotal.String(),
		inv.Tax.String(),
		inv.Total.String(),
		inv.DueDate,
		inv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("clearing invoice items: %w", err)
	}

	if err := insertItems(ctx, dbTx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing invoice update: %w", err)
	}

	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, userID, id uuid.UUID) error {
	query := `
		UPDATE invoices
		SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("deleting invoice: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return invoice.ErrNotFound
	}

	return nil
}

func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, paymentToken, viewToken *string, sentTo string, sentAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = $1, payment_token = $2, view_token = $3,
			email_sent_at = $4, email_sent_to = $5, updated_at = NOW()
		WHERE id = $6 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, invoice.StatusSent, paymentToken, viewToken, sentAt, sentTo, id)
	if err != nil {
		return fmt.Errorf("marking invoice sent: %w", err)
	}

	return nil
}

func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, method string, paidAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_at = $2, payment_method = $3, updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, invoice.StatusPaid, paidAt, method, id)
	if err != nil {
		return fmt.Errorf("marking invoice paid: %w", err)
	}

	return nil
}

func (s *Store) MarkCancelled(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, invoice.StatusCancelled, id)
	if err != nil {
		return fmt.Errorf("cancelling invoice: %w", err)
	}

	return nil
}

// AddPayment appends the ledger row and advances the invoice's paid
// amount and status in one transaction.
func (s *Store) AddPayment(ctx context.Context, p *invoice.Payment, amountPaid decimal.Decimal, status invoice.Status, paidAt *time.Time) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	paymentQuery := `
		INSERT INTO payments (invoice_id, amount, method, reference, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err = dbTx.QueryRowContext(ctx, paymentQuery,
		p.InvoiceID,
		p.Amount.String(),
		p.Method,
		p.Reference,
		p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}

	invoiceQuery := `
		UPDATE invoices
		SET amount_paid = $1, status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE id = $4 AND deleted_at IS NULL
	`

	if _, err := dbTx.ExecContext(ctx, invoiceQuery, amountPaid.String(), status, paidAt, p.InvoiceID); err != nil {
		return fmt.Errorf("updating paid amount: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing payment: %w", err)
	}

	return nil
}

func (s *Store) RecordView(ctx context.Context, id uuid.UUID, viewedAt time.Time) error {
	query := `
		UPDATE invoices
		SET view_count = view_count + 1, last_viewed_at = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, viewedAt, id)
	if err != nil {
		return fmt.Errorf("recording view: %w", err)
	}

	return nil
}

func (s *Store) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID, intentID string) error {
	query := `
		UPDATE invoices
		SET checkout_session_id = $1, payment_intent_id = $2, updated_at = NOW()
		WHERE id = $3 AND deleted_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, sessionID, intentID, id)
	if err != nil {
		return fmt.Errorf("saving checkout session: %w", err)
	}

	return nil
}

func (s *Store) ListPayments(ctx context.Context, userID, invoiceID uuid.UUID) ([]*invoice.Payment, error) {
	query := `
		SELECT p.id, p.invoice_id, p.amount, p.method, p.reference, p.paid_at, p.created_at
		FROM payments p
		JOIN invoices i ON p.invoice_id = i.id
		WHERE p.invoice_id = $1 AND i.user_id = $2 AND i.deleted_at IS NULL
		ORDER BY p.paid_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, invoiceID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*invoice.Payment

	for rows.Next() {
		var p invoice.Payment

		var amount sql.NullString

		if err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &p.Method, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		if p.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("parsing payment amount: %w", err)
		}

		payments = append(payments, &p)
	}

	return payments, rows.Err()
}

func (s *Store) AddReceipt(ctx context.Context, rec *invoice.Receipt) error {
	query := `
		INSERT INTO receipts (invoice_id, file_name, content_type, size_bytes, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		rec.InvoiceID,
		rec.FileName,
		rec.ContentType,
		rec.SizeBytes,
		rec.StorageKey,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating receipt: %w", err)
	}

	return nil
}

func (s *Store) ListReceipts(ctx context.Context, userID, invoiceID uuid.UUID) ([]*invoice.Receipt, error) {
	query := `
		SELECT r.id, r.invoice_id, r.file_name, r.content_type, r.size_bytes, r.storage_key, r.created_at
		FROM receipts r
		JOIN invoices i ON r.invoice_id = i.id
		WHERE r.invoice_id = $1 AND i.user_id = $2 AND i.deleted_at IS NULL
		ORDER BY r.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, invoiceID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*invoice.Receipt

	for rows.Next() {
		var r invoice.Receipt

		if err := rows.Scan(&r.ID, &r.InvoiceID, &r.FileName, &r.ContentType, &r.SizeBytes, &r.StorageKey, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}

		receipts = append(receipts, &r)
	}

	return receipts, rows.Err()
}
