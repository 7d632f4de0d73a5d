package public

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/invoice"
)

type publicInvoiceResponse struct {
	Number string `json:"number"`

	ClientName    string `json:"client_name"`
	ClientAddress string `json:"client_address,omitempty"`
	Notes         string `json:"notes,omitempty"`

	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`

	Status  invoice.DisplayStatus `json:"status"`
	DueDate *time.Time            `json:"due_date,omitempty"`
	PaidAt  *time.Time            `json:"paid_at,omitempty"`

	Payable bool `json:"payable"`

	Items []publicItemResponse `json:"items"`

	CreatedAt time.Time `json:"created_at"`
}

type publicItemResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

func toPublicResponse(inv *invoice.Invoice, display invoice.DisplayStatus) publicInvoiceResponse {
	items := make([]publicItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = publicItemResponse{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
		}
	}

	payable := inv.PaymentToken != nil &&
		inv.Status != invoice.StatusPaid &&
		inv.Status != invoice.StatusCancelled

	return publicInvoiceResponse{
		Number:        inv.Number,
		ClientName:    inv.ClientName,
		ClientAddress: inv.ClientAddress,
		Notes:         inv.Notes,
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		Status:        display,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		Payable:       payable,
		Items:         items,
		CreatedAt:     inv.CreatedAt,
	}
}
