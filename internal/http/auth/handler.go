package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openbill/openbill/internal/audit"
	"github.com/openbill/openbill/internal/auth"
	"github.com/openbill/openbill/internal/http/respond"
	"github.com/openbill/openbill/internal/user"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Handler struct {
	svc      *user.Service
	tokens   *auth.Tokens
	recorder *audit.Recorder
}

func NewHandler(svc *user.Service, tokens *auth.Tokens, recorder *audit.Recorder) *Handler {
	return &Handler{svc: svc, tokens: tokens, recorder: recorder}
}

// Routes registers the unauthenticated endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
}

// ProfileRoutes registers the endpoints behind the session middleware.
func (h *Handler) ProfileRoutes(r chi.Router) {
	r.Get("/", h.profile)
	r.Patch("/", h.updateProfile)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	BusinessName    string `json:"business_name,omitempty"`
	BusinessAddress string `json:"business_address,omitempty"`
	Phone           string `json:"phone,omitempty"`

	BankName            string `json:"bank_name,omitempty"`
	BankAccount         string `json:"bank_account,omitempty"`
	PaymentInstructions string `json:"payment_instructions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:                  u.ID.String(),
		Email:               u.Email,
		BusinessName:        u.BusinessName,
		BusinessAddress:     u.BusinessAddress,
		Phone:               u.Phone,
		BankName:            u.BankName,
		BankAccount:         u.BankAccount,
		PaymentInstructions: u.PaymentInstructions,
		CreatedAt:           u.CreatedAt,
	}
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.svc.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			respond.Error(w, http.StatusConflict, err.Error())
			return
		}

		slog.Error("signup failed", "error", err)
		respond.Internal(w)

		return
	}

	token, err := h.tokens.Issue(u.ID, time.Now())
	if err != nil {
		slog.Error("failed to issue session token", "error", err)
		respond.Internal(w)

		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		UserID:     u.ID,
		Action:     "user.signup",
		EntityType: "user",
		EntityID:   u.ID.String(),
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	respond.JSON(w, http.StatusCreated, sessionResponse{Token: token, User: toUserResponse(u)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, err.Error())
			return
		}

		slog.Error("login failed", "error", err)
		respond.Internal(w)

		return
	}

	token, err := h.tokens.Issue(u.ID, time.Now())
	if err != nil {
		slog.Error("failed to issue session token", "error", err)
		respond.Internal(w)

		return
	}

	respond.JSON(w, http.StatusOK, sessionResponse{Token: token, User: toUserResponse(u)})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	u, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, err.Error())
			return
		}

		slog.Error("failed to load profile", "error", err)
		respond.Internal(w)

		return
	}

	respond.JSON(w, http.StatusOK, toUserResponse(u))
}

type updateProfileRequest struct {
	BusinessName        *string `json:"business_name,omitempty"`
	BusinessAddress     *string `json:"business_address,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	BankName            *string `json:"bank_name,omitempty"`
	BankAccount         *string `json:"bank_account,omitempty"`
	PaymentInstructions *string `json:"payment_instructions,omitempty"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), userID, user.ProfileParams{
		BusinessName:        req.BusinessName,
		BusinessAddress:     req.BusinessAddress,
		Phone:               req.Phone,
		BankName:            req.BankName,
		BankAccount:         req.BankAccount,
		PaymentInstructions: req.PaymentInstructions,
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, err.Error())
			return
		}

		slog.Error("failed to update profile", "error", err)
		respond.Internal(w)

		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		UserID:     userID,
		Action:     "user.update_profile",
		EntityType: "user",
		EntityID:   userID.String(),
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})

	respond.JSON(w, http.StatusOK, toUserResponse(u))
}
