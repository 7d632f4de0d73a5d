package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/invoice"
)

type invoiceResponse struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"`

	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	ClientAddress string `json:"client_address,omitempty"`
	Notes         string `json:"notes,omitempty"`

	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`

	Status        invoice.Status        `json:"status"`
	DisplayStatus invoice.DisplayStatus `json:"display_status"`
	DueDate       *time.Time            `json:"due_date,omitempty"`

	PaymentToken *string `json:"payment_token,omitempty"`
	ViewToken    *string `json:"view_token,omitempty"`

	EmailSentAt  *time.Time `json:"email_sent_at,omitempty"`
	EmailSentTo  *string    `json:"email_sent_to,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	ViewCount    int        `json:"view_count"`

	Items []itemResponse `json:"items"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type itemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
}

func toResponse(inv *invoice.Invoice, display invoice.DisplayStatus) invoiceResponse {
	items := make([]itemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = itemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
			Position:    it.Position,
		}
	}

	return invoiceResponse{
		ID:            inv.ID,
		Number:        inv.Number,
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		ClientAddress: inv.ClientAddress,
		Notes:         inv.Notes,
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		Status:        inv.Status,
		DisplayStatus: display,
		DueDate:       inv.DueDate,
		PaymentToken:  inv.PaymentToken,
		ViewToken:     inv.ViewToken,
		EmailSentAt:   inv.EmailSentAt,
		EmailSentTo:   inv.EmailSentTo,
		PaidAt:        inv.PaidAt,
		LastViewedAt:  inv.LastViewedAt,
		ViewCount:     inv.ViewCount,
		Items:         items,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

type paymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func toPaymentResponseList(payments []*invoice.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
			CreatedAt: p.CreatedAt,
		}
	}

	return resp
}

type receiptResponse struct {
	ID          uuid.UUID `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReceiptResponse(rc *invoice.Receipt) receiptResponse {
	return receiptResponse{
		ID:          rc.ID,
		FileName:    rc.FileName,
		ContentType: rc.ContentType,
		SizeBytes:   rc.SizeBytes,
		StorageKey:  rc.StorageKey,
		CreatedAt:   rc.CreatedAt,
	}
}
