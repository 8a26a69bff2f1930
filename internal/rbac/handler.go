package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/platform/httpx"
)

// Handler exposes role administration endpoints. Writes are limited to
// purchasing staff since they own the approval matrix.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      Middleware
}

// NewHandler constructs a role admin Handler.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes attaches role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireUser())
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(permissions.CapabilityPurchaser))
		r.Post("/", h.Create)
		r.Post("/assign", h.Assign)
	})
}

// List returns every role with its resolved capability bucket.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	out := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, renderRole(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Role not found", "")
			return
		}
		h.logger.Error("get role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, renderRole(role))
}

type createRolePayload struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if payload.DisplayName == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "displayName is required")
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.DisplayName, payload.Description)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, renderRole(role))
}

type assignRolePayload struct {
	UserID int64 `json:"userId"`
	RoleID int64 `json:"roleId"`
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var payload assignRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if payload.UserID <= 0 || payload.RoleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "userId and roleId are required")
		return
	}
	if err := h.service.AssignRole(r.Context(), payload.UserID, payload.RoleID); err != nil {
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assigned": true})
}

func renderRole(role Role) map[string]any {
	return map[string]any{
		"id":          role.ID,
		"displayName": role.DisplayName,
		"description": role.Description,
		"capability":  permissions.FromDisplayName(role.DisplayName).String(),
	}
}
