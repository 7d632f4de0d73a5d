// Package respond writes the JSON envelopes shared by every handler.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error   string     `json:"error"`
	ResetAt *time.Time `json:"reset_at,omitempty"`
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, errorBody{Error: msg})
}

func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "internal error")
}

func RateLimited(w http.ResponseWriter, resetAt time.Time) {
	JSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", ResetAt: &resetAt})
}
