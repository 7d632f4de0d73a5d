// Package audit appends compliance records for authenticated mutations.
// Writes are best-effort: a failed audit write is logged, never
// propagated, so it cannot fail the business operation it describes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	UserID     uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}

type Repository interface {
	Append(ctx context.Context, e *Entry) error
}

type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	if err := r.repo.Append(ctx, &e); err != nil {
		slog.Warn("audit write failed",
			"action", e.Action, "entity_type", e.EntityType, "entity_id", e.EntityID, "error", err)
	}
}
