package audit

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/platform/httpx"
	"github.com/meridian-procure/meridian-procure/internal/rbac"
)

// Handler serves the audit timeline. Access is restricted to reviewers
// since the trail exposes every actor's activity.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs an audit Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes attaches the audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(permissions.CapabilityApprover, permissions.CapabilityPurchaser))
		r.Get("/", h.Timeline)
		r.Get("/export.csv", h.ExportCSV)
	})
}

func parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	filters := TimelineFilters{
		Actor:    q.Get("actor"),
		Entity:   q.Get("entity"),
		Action:   q.Get("action"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filters.From = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filters.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return filters
}

// Timeline returns one page of audit entries as JSON.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Timeline(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// ExportCSV streams the full filtered timeline as CSV.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Export(r.Context(), parseFilters(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"at", "actor", "action", "entity", "entity_id"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.At.Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Warn("audit csv flush", slog.Any("error", err))
	}
}
