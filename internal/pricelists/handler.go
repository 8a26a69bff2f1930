package pricelists

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/platform/httpx"
	"github.com/meridian-procure/meridian-procure/internal/rbac"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireUser())
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/resolve", h.Resolve)
		r.Get("/templates", h.ListTemplates)
		r.Get("/templates/{id}", h.ShowTemplate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(permissions.CapabilityPurchaser))
		// Catalogue writes invalidate the cache; keep them off hot loops.
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/lines", h.ReplaceLines)
		r.Delete("/{id}", h.Delete)
		r.Post("/templates", h.CreateTemplate)
		r.Delete("/templates/{id}", h.DeleteTemplate)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	filters := ListFilters{
		VendorID: vendorID,
		Search:   r.URL.Query().Get("search"),
		Limit:    limit,
		Offset:   offset,
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active := raw == "true"
		filters.Active = &active
	}
	pricelists, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list pricelists", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pricelists": pricelists, "total": total})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	pl, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get pricelist", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pricelist": pl, "lines": lines})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	product := r.URL.Query().Get("product")
	if product == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product query parameter required")
		return
	}
	on := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		on = parsed
	}
	line, err := h.service.ResolveLine(r.Context(), id, product, on)
	if err != nil {
		h.respondError(w, "resolve pricelist line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

type createPayload struct {
	Pricelist Pricelist `json:"pricelist"`
	Lines     []Line    `json:"lines"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), payload.Pricelist, payload.Lines)
	if err != nil {
		h.respondError(w, "create pricelist", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var pl Pricelist
	if err := httpx.DecodeJSON(r, &pl); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.Update(r.Context(), id, pl); err != nil {
		h.respondError(w, "update pricelist", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (h *Handler) ReplaceLines(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var lines []Line
	if err := httpx.DecodeJSON(r, &lines); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.ReplaceLines(r.Context(), id, lines); err != nil {
		h.respondError(w, "replace pricelist lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete pricelist", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	pricelistID, _ := strconv.ParseInt(r.URL.Query().Get("pricelist_id"), 10, 64)
	templates, err := h.service.ListTemplates(r.Context(), pricelistID)
	if err != nil {
		h.respondError(w, "list templates", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) ShowTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	tpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		h.respondError(w, "get template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl Template
	if err := httpx.DecodeJSON(r, &tpl); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	created, err := h.service.CreateTemplate(r.Context(), tpl)
	if err != nil {
		h.respondError(w, "create template", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		h.respondError(w, "delete template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrExpired):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
