// Package public serves the unauthenticated surface: the client-facing
// invoice view, the hosted checkout entry point and the payment
// provider webhook. Responses here never leak owner-only fields such as
// tokens, internal ids or view counters.
package public

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openbill/openbill/internal/http/respond"
	"github.com/openbill/openbill/internal/invoice"
	"github.com/openbill/openbill/internal/payment"
)

// maxWebhookBody caps the webhook payload read. Stripe events are far
// smaller than this.
const maxWebhookBody = 1 << 16

type Handler struct {
	svc     *invoice.Service
	webhook *payment.Webhook
}

// NewHandler wires the public routes. webhook may be nil when online
// payments are not configured; the webhook endpoint then answers 503.
func NewHandler(svc *invoice.Service, webhook *payment.Webhook) *Handler {
	return &Handler{svc: svc, webhook: webhook}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/i/{token}", h.view)
	r.Get("/pay/{token}", h.checkout)
	r.Post("/webhooks/stripe", h.stripeWebhook)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.TrackView(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toPublicResponse(inv, h.svc.Display(inv)))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.Checkout(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhook == nil {
		respond.Error(w, http.StatusServiceUnavailable, "online payments are not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "cannot read payload")
		return
	}

	sessionID, ok, err := h.webhook.CompletedSession(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid signature")
		return
	}

	// Other event types are acknowledged so the provider stops
	// retrying them.
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.svc.FinalizeCheckout(r.Context(), sessionID); err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			slog.Warn("webhook for unknown checkout session", "session_id", sessionID)
			w.WriteHeader(http.StatusOK)

			return
		}

		// Acknowledged but never settled; the money side needs a manual
		// refund, so this is worth a loud log line.
		if errors.Is(err, invoice.ErrCancelled) {
			slog.Error("completed checkout session for a cancelled invoice", "session_id", sessionID)
			w.WriteHeader(http.StatusOK)

			return
		}

		slog.Error("failed to finalize checkout", "session_id", sessionID, "error", err)
		respond.Internal(w)

		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrInvalidToken):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, invoice.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "invoice not found")
	case errors.Is(err, invoice.ErrCancelled), errors.Is(err, invoice.ErrAlreadyPaid):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, invoice.ErrPaymentsDisabled):
		respond.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("public invoice request failed", "error", err)
		respond.Internal(w)
	}
}
