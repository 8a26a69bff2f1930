package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-procure/meridian-procure/internal/shared"
)

// DefaultIdempotencyRetentionHours keeps keys long enough to absorb any
// realistic client retry window.
const DefaultIdempotencyRetentionHours = 24

// CleanupHandler prunes expired idempotency keys on a schedule.
type CleanupHandler struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewCleanupHandler constructs a CleanupHandler.
func NewCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (h *CleanupHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.RetentionHours
	if retention <= 0 {
		retention = DefaultIdempotencyRetentionHours
	}
	if err := h.store.Cleanup(ctx, time.Duration(retention)*time.Hour); err != nil {
		h.logger.Warn("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	h.logger.Info("idempotency keys pruned", slog.Int("retention_hours", retention))
	return nil
}
