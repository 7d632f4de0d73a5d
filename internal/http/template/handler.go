package template

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbill/openbill/internal/auth"
	"github.com/openbill/openbill/internal/http/respond"
	"github.com/openbill/openbill/internal/template"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	svc *template.Service
}

func NewHandler(svc *template.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.save)
	r.Get("/", h.list)
	r.Delete("/{id}", h.delete)
}

type saveTemplateRequest struct {
	Description string          `json:"description" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type templateResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UsageCount  int             `json:"usage_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

func toResponse(t *template.Template) templateResponse {
	return templateResponse{
		ID:          t.ID,
		Description: t.Description,
		UnitPrice:   t.UnitPrice,
		UsageCount:  t.UsageCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	var req saveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.UnitPrice.IsNegative() {
		respond.Error(w, http.StatusBadRequest, "unit price cannot be negative")
		return
	}

	t, err := h.svc.Save(r.Context(), userID, req.Description, req.UnitPrice)
	if err != nil {
		slog.Error("failed to save template", "error", err)
		respond.Internal(w)

		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	templates, err := h.svc.List(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list templates", "error", err)
		respond.Internal(w)

		return
	}

	resp := make([]templateResponse, len(templates))
	for i, t := range templates {
		resp[i] = toResponse(t)
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, template.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "template not found")
			return
		}

		slog.Error("failed to delete template", "error", err)
		respond.Internal(w)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
