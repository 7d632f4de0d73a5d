// Package payment bridges invoices to the Stripe hosted checkout.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/openbill/openbill/internal/invoice"
)

type Stripe struct {
	api      *client.API
	currency string
	baseURL  string
}

func NewStripe(secretKey, currency, baseURL string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &Stripe{api: api, currency: currency, baseURL: baseURL}
}

// CreateSession opens a hosted checkout session mirroring the invoice's
// line items, plus a synthetic tax line when tax applies. The invoice
// itself is not modified; the caller persists the returned identifiers.
func (s *Stripe) CreateSession(ctx context.Context, inv *invoice.Invoice) (*invoice.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems(inv, s.currency),
		ClientReferenceID: stripe.String(inv.Number),
		CustomerEmail:     stripe.String(inv.ClientEmail),
		SuccessURL:        stripe.String(fmt.Sprintf("%s/pay/success?invoice=%s", s.baseURL, inv.Number)),
		CancelURL:         stripe.String(fmt.Sprintf("%s/pay/cancelled?invoice=%s", s.baseURL, inv.Number)),
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe session: %w", err)
	}

	var intentID string
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}

	return &invoice.CheckoutSession{
		ID:              sess.ID,
		PaymentIntentID: intentID,
		URL:             sess.URL,
	}, nil
}

func lineItems(inv *invoice.Invoice, currency string) []*stripe.CheckoutSessionLineItemParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(inv.Items)+1)

	for _, item := range inv.Items {
		// Stripe quantities are integers; fractional quantities are
		// collapsed into a single line at the full line amount.
		qty := int64(1)
		unit := item.Amount

		if item.Quantity.IsInteger() && item.Quantity.IsPositive() {
			qty = item.Quantity.IntPart()
			unit = item.UnitPrice
		}

		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(minorUnits(unit)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Description),
				},
			},
		})
	}

	if inv.Tax.IsPositive() {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(minorUnits(inv.Tax)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Tax"),
				},
			},
		})
	}

	return items
}

// minorUnits converts a decimal major-currency amount to integer minor
// units (cents), rounding half away from zero.
func minorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Webhook verifies Stripe event signatures and extracts completed
// checkout sessions.
type Webhook struct {
	secret string
}

func NewWebhook(secret string) *Webhook {
	return &Webhook{secret: secret}
}

// CompletedSession returns the session id when the signed payload is a
// checkout.session.completed event, and ok=false for any other event
// type.
func (w *Webhook) CompletedSession(payload []byte, sigHeader string) (sessionID string, ok bool, err error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, w.secret)
	if err != nil {
		return "", false, fmt.Errorf("verifying webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		return "", false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", false, fmt.Errorf("decoding session payload: %w", err)
	}

	return sess.ID, true, nil
}
