package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/audit"
	"github.com/openbill/openbill/internal/auth"
	"github.com/openbill/openbill/internal/http/respond"
	"github.com/openbill/openbill/internal/invoice"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	svc       *invoice.Service
	recorder  *audit.Recorder
	sendLimit func(http.Handler) http.Handler
}

// NewHandler wires the invoice routes. sendLimit is the rate-limit
// middleware applied to the email-send route only, which has a tighter
// cap than the rest of the API.
func NewHandler(svc *invoice.Service, recorder *audit.Recorder, sendLimit func(http.Handler) http.Handler) *Handler {
	return &Handler{svc: svc, recorder: recorder, sendLimit: sendLimit}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.With(h.sendLimit).Post("/{id}/send", h.send)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/mark-paid", h.markPaid)
	r.Post("/{id}/payments", h.recordPayment)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/receipts", h.attachReceipt)
	r.Get("/{id}/receipts", h.listReceipts)
}

type itemRequest struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createInvoiceRequest struct {
	ClientName    string          `json:"client_name" validate:"required"`
	ClientEmail   string          `json:"client_email" validate:"required,email"`
	ClientAddress string          `json:"client_address"`
	Notes         string          `json:"notes"`
	Tax           decimal.Decimal `json:"tax"`
	DueDate       *time.Time      `json:"due_date"`
	Items         []itemRequest   `json:"items" validate:"required,min=1,dive"`
}

func toItemParams(items []itemRequest) ([]invoice.ItemParams, error) {
	params := make([]invoice.ItemParams, len(items))
	for i, it := range items {
		if !it.Quantity.IsPositive() {
			return nil, errors.New("item quantity must be positive")
		}

		if it.UnitPrice.IsNegative() {
			return nil, errors.New("item unit price cannot be negative")
		}

		params[i] = invoice.ItemParams{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}

	return params, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Tax.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "tax cannot be negative")
		return
	}

	items, err := toItemParams(req.Items)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Create(r.Context(), userID, invoice.CreateParams{
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientAddress: req.ClientAddress,
		Notes:         req.Notes,
		Tax:           req.Tax,
		DueDate:       req.DueDate,
		Items:         items,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.create", inv, map[string]any{"number": inv.Number, "total": inv.Total.String()})

	respond.JSON(w, http.StatusCreated, toResponse(inv, h.svc.Display(inv)))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	filter := invoice.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		st := invoice.Status(s)
		filter.Status = &st
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.StartDate = &t
		}
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			filter.EndDate = &t
		}
	}

	invs, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]invoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = toResponse(inv, h.svc.Display(inv))
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	inv, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

type updateInvoiceRequest struct {
	ClientName    *string          `json:"client_name,omitempty"`
	ClientEmail   *string          `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientAddress *string          `json:"client_address,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Tax           *decimal.Decimal `json:"tax,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	Items         []itemRequest    `json:"items,omitempty" validate:"omitempty,dive"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req updateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	params := invoice.UpdateParams{
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientAddress: req.ClientAddress,
		Notes:         req.Notes,
		Tax:           req.Tax,
		DueDate:       req.DueDate,
	}

	if req.Items != nil {
		items, err := toItemParams(req.Items)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		params.Items = items
	}

	inv, err := h.svc.Update(r.Context(), userID, id, params)
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.update", inv, nil)

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		UserID:     userID,
		Action:     "invoice.delete",
		EntityType: "invoice",
		EntityID:   id.String(),
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	inv, err := h.svc.Send(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.send", inv, map[string]any{"sent_to": inv.ClientEmail})

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	inv, err := h.svc.Cancel(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.cancel", inv, nil)

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

type markPaidRequest struct {
	Method string `json:"method"`
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Method == "" {
		req.Method = "manual"
	}

	inv, err := h.svc.MarkPaid(r.Context(), userID, id, req.Method)
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.mark_paid", inv, map[string]any{"method": req.Method})

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"required"`
	Reference string          `json:"reference"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.RecordPayment(r.Context(), userID, id, invoice.PaymentParams{
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.record(r, "invoice.record_payment", inv, map[string]any{
		"amount": req.Amount.String(),
		"method": req.Method,
	})

	respond.JSON(w, http.StatusOK, toResponse(inv, h.svc.Display(inv)))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	payments, err := h.svc.Payments(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toPaymentResponseList(payments))
}

type attachReceiptRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	SizeBytes   int64  `json:"size_bytes" validate:"required,gt=0"`
	StorageKey  string `json:"storage_key" validate:"required"`
}

func (h *Handler) attachReceipt(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req attachReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.svc.AttachReceipt(r.Context(), userID, id, invoice.ReceiptParams{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		StorageKey:  req.StorageKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		UserID:     userID,
		Action:     "invoice.attach_receipt",
		EntityType: "invoice",
		EntityID:   id.String(),
		Details:    map[string]any{"file_name": req.FileName},
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	respond.JSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	receipts, err := h.svc.Receipts(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]receiptResponse, len(receipts))
	for i, rc := range receipts {
		resp[i] = toReceiptResponse(rc)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) record(r *http.Request, action string, inv *invoice.Invoice, details map[string]any) {
	h.recorder.Record(r.Context(), audit.Entry{
		UserID:     inv.UserID,
		Action:     action,
		EntityType: "invoice",
		EntityID:   inv.ID.String(),
		Details:    details,
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "invoice not found")
	case errors.Is(err, invoice.ErrCancelled),
		errors.Is(err, invoice.ErrAlreadyPaid),
		errors.Is(err, invoice.ErrAlreadyCancelled),
		errors.Is(err, invoice.ErrCancelPaid),
		errors.Is(err, invoice.ErrNotDraft),
		errors.Is(err, invoice.ErrOverpayment),
		errors.Is(err, invoice.ErrDuplicateNumber):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, invoice.ErrInvalidAmount),
		errors.Is(err, invoice.ErrInvalidToken):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, invoice.ErrPaymentsDisabled):
		respond.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("invoice operation failed", "error", err)
		respond.Internal(w)
	}
}
