package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-procure/meridian-procure/internal/pricelists"
	"github.com/meridian-procure/meridian-procure/internal/procurement"
)

// RequestReader loads a purchase request with its computed pricing.
type RequestReader interface {
	GetRequest(ctx context.Context, id int64) (procurement.RequestDetail, error)
}

// PricelistWarmer re-reads a pricelist so the cache entry stays hot.
type PricelistWarmer interface {
	Get(ctx context.Context, id int64) (pricelists.Pricelist, []pricelists.Line, error)
}

// ReindexHandler refreshes request pricing and warms referenced pricelists.
type ReindexHandler struct {
	requests   RequestReader
	pricelists PricelistWarmer
	logger     *slog.Logger
}

// NewReindexHandler constructs a ReindexHandler.
func NewReindexHandler(requests RequestReader, warmer PricelistWarmer, logger *slog.Logger) *ReindexHandler {
	return &ReindexHandler{requests: requests, pricelists: warmer, logger: logger}
}

// Handle processes TaskRequestReindex tasks. Recomputing the detail view
// validates every line still prices cleanly and repopulates the pricelist
// cache for lists the request references.
func (h *ReindexHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RequestReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	detail, err := h.requests.GetRequest(ctx, payload.RequestID)
	if err != nil {
		h.logger.Warn("reindex load failed", slog.Int64("request_id", payload.RequestID), slog.Any("error", err))
		return err
	}

	seen := map[int64]bool{}
	for _, item := range detail.Items {
		if item.PricelistID == nil || seen[*item.PricelistID] {
			continue
		}
		seen[*item.PricelistID] = true
		if h.pricelists == nil {
			continue
		}
		if _, _, err := h.pricelists.Get(ctx, *item.PricelistID); err != nil {
			h.logger.Warn("pricelist warm failed", slog.Int64("pricelist_id", *item.PricelistID), slog.Any("error", err))
		}
	}

	h.logger.Info("request reindexed",
		slog.Int64("request_id", payload.RequestID),
		slog.String("number", detail.Request.Number),
		slog.Int("items", len(detail.Items)))
	return nil
}
