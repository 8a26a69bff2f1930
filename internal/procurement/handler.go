package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/platform/httpx"
	"github.com/meridian-procure/meridian-procure/internal/pricing"
	"github.com/meridian-procure/meridian-procure/internal/rbac"
	"github.com/meridian-procure/meridian-procure/internal/shared"
	"github.com/meridian-procure/meridian-procure/internal/workflow"
)

// Handler exposes purchase request endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers purchase request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireUser())
		r.Get("/requests", h.handleList)
		r.Get("/requests/{id}", h.handleGet)
		r.Get("/requests/number/{number}", h.handleGetByNumber)
		r.Get("/requests/{id}/approvals", h.handleApprovalHistory)
		r.Post("/requests", h.handleCreate)
		r.Patch("/requests/{id}/items/{itemID}", h.handleUpdateItem)
		r.Post("/requests/{id}/submit", h.handleSubmit)
		r.Post("/requests/{id}/items/evaluate", h.handleEvaluate)
		r.Post("/requests/{id}/items/action", h.handleItemAction)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(permissions.CapabilityApprover, permissions.CapabilityPurchaser))
		r.Post("/requests/{id}/approve", h.handleApprove)
		r.Post("/requests/{id}/return", h.handleReturn)
		r.Post("/requests/{id}/cancel", h.handleCancel)
	})
}

type itemPayload struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	RequestQty       float64 `json:"requestQty"`
	RequestUnit      string  `json:"requestUnit"`
	Currency         string  `json:"currency"`
	CurrencyRate     float64 `json:"currencyRate"`
	UnitPrice        float64 `json:"unitPrice"`
	DiscountRate     float64 `json:"discountRate"`
	DiscountAmount   float64 `json:"discountAmount"`
	DiscountOverride bool    `json:"discountOverride"`
	TaxType          string  `json:"taxType"`
	TaxRate          float64 `json:"taxRate"`
	TaxAmount        float64 `json:"taxAmount"`
	TaxOverride      bool    `json:"taxOverride"`
	DeliveryDate     string  `json:"deliveryDate"`
	DeliveryPoint    string  `json:"deliveryPoint"`
	Comment          string  `json:"comment"`
}

type createPayload struct {
	Number       string        `json:"number"`
	Department   string        `json:"department"`
	Location     string        `json:"location"`
	RequestType  string        `json:"requestType"`
	RequiredDate string        `json:"requiredDate"`
	Description  string        `json:"description"`
	Items        []itemPayload `json:"items"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	input := CreateRequestInput{
		Number:       payload.Number,
		RequestorID:  actor.UserID,
		Department:   payload.Department,
		Location:     payload.Location,
		RequestType:  payload.RequestType,
		RequiredDate: parseDate(payload.RequiredDate),
		Description:  payload.Description,
	}
	for _, item := range payload.Items {
		input.Items = append(input.Items, ItemInput{
			Name:             item.Name,
			Description:      item.Description,
			RequestQty:       item.RequestQty,
			RequestUnit:      item.RequestUnit,
			Currency:         item.Currency,
			CurrencyRate:     item.CurrencyRate,
			UnitPrice:        item.UnitPrice,
			DiscountRate:     item.DiscountRate,
			DiscountAmount:   item.DiscountAmount,
			DiscountOverride: item.DiscountOverride,
			TaxType:          item.TaxType,
			TaxRate:          item.TaxRate,
			TaxAmount:        item.TaxAmount,
			TaxOverride:      item.TaxOverride,
			DeliveryDate:     parseDate(item.DeliveryDate),
			DeliveryPoint:    item.DeliveryPoint,
			Comment:          item.Comment,
		})
	}
	pr, err := h.service.CreateRequest(r.Context(), input)
	if err != nil {
		h.respondError(w, "create request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, renderRequest(pr))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	detail, err := h.service.GetRequest(r.Context(), id)
	if err != nil {
		h.respondError(w, "get request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, renderDetail(detail))
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetRequestByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, "get request by number", err)
		return
	}
	httpx.JSON(w, http.StatusOK, renderDetail(detail))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	requestorID, _ := strconv.ParseInt(r.URL.Query().Get("requestor_id"), 10, 64)
	filters := ListFilters{
		Stage:       r.URL.Query().Get("stage"),
		Status:      r.URL.Query().Get("status"),
		Department:  r.URL.Query().Get("department"),
		RequestorID: requestorID,
		Search:      r.URL.Query().Get("search"),
		SortBy:      r.URL.Query().Get("sort"),
		SortDir:     r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.ListRequests(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondError(w, "list requests", err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, pr := range items {
		out = append(out, renderRequest(pr))
	}
	page := offset/limit + 1
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requests":   out,
		"limit":      limit,
		"offset":     offset,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

type updateItemPayload struct {
	Mode   string         `json:"mode"`
	Fields map[string]any `json:"fields"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	requestID, err1 := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	itemID, err2 := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var payload updateItemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	mode := permissions.Mode(payload.Mode)
	if mode == "" {
		mode = permissions.ModeEdit
	}
	changes := make([]FieldChange, 0, len(payload.Fields))
	for name, value := range payload.Fields {
		changes = append(changes, FieldChange{Field: permissions.Field(name), Value: value})
	}
	item, err := h.service.UpdateItem(r.Context(), requestID, itemID, actor.Role, mode, changes)
	if err != nil {
		h.respondError(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, renderItem(item))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	if err := h.service.SubmitRequest(r.Context(), id, actor.UserID); err != nil {
		h.respondError(w, "submit request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "submitted"})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	if err := h.service.ApproveStage(r.Context(), id, actor.UserID, actor.Role); err != nil {
		h.respondError(w, "approve request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "approved"})
}

type returnPayload struct {
	Target  string `json:"target"`
	Comment string `json:"comment"`
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var payload returnPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.ReturnRequest(r.Context(), id, actor.UserID, actor.Role, workflow.Stage(payload.Target), payload.Comment); err != nil {
		h.respondError(w, "return request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "returned", "target": payload.Target})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	if err := h.service.CancelRequest(r.Context(), id, actor.UserID, actor.Role); err != nil {
		h.respondError(w, "cancel request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

type selectionPayload struct {
	ItemIDs []int64 `json:"itemIds"`
	Scope   string  `json:"scope"`
	Comment string  `json:"comment"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var payload selectionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	decision, err := h.service.EvaluateSelection(r.Context(), id, payload.ItemIDs, actor.Role)
	if err != nil {
		h.respondError(w, "evaluate selection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, renderDecision(decision))
}

func (h *Handler) handleItemAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var payload selectionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	decision, err := h.service.ApplyItemAction(r.Context(), ApplyItemActionInput{
		RequestID: id,
		ItemIDs:   payload.ItemIDs,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Scope:     workflow.Scope(payload.Scope),
		Comment:   payload.Comment,
	})
	if err != nil {
		// The decision still tells the client why, e.g. which statuses the
		// mixed selection spans.
		if errors.Is(err, ErrMixedSelection) {
			httpx.JSON(w, http.StatusConflict, renderDecision(decision))
			return
		}
		h.respondError(w, "apply item action", err)
		return
	}
	httpx.JSON(w, http.StatusOK, renderDecision(decision))
}

func (h *Handler) handleApprovalHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	logs, err := h.service.ApprovalHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, "approval history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": logs})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrCommentRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrFieldNotEditable), errors.Is(err, ErrActionBlocked):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrItemLocked), errors.Is(err, ErrMixedSelection):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "request already submitted")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func renderRequest(pr PurchaseRequest) map[string]any {
	return map[string]any{
		"id":           pr.ID,
		"number":       pr.Number,
		"requestDate":  pr.RequestDate,
		"requiredDate": pr.RequiredDate,
		"requestorId":  pr.RequestorID,
		"department":   pr.Department,
		"location":     pr.Location,
		"requestType":  pr.RequestType,
		"stage":        pr.Stage,
		"status":       pr.Status(),
		"cancelled":    pr.Cancelled,
		"description":  pr.Description,
	}
}

func renderItem(it PurchaseRequestItem) map[string]any {
	return map[string]any{
		"id":               it.ID,
		"requestId":        it.RequestID,
		"name":             it.Name,
		"description":      it.Description,
		"requestQty":       it.RequestQty,
		"requestUnit":      it.RequestUnit,
		"approvedQty":      it.ApprovedQty,
		"vendorId":         it.VendorID,
		"pricelistId":      it.PricelistID,
		"currency":         it.Currency,
		"currencyRate":     it.CurrencyRate,
		"unitPrice":        it.UnitPrice,
		"discountRate":     it.DiscountRate,
		"discountAmount":   it.DiscountAmount,
		"discountOverride": it.DiscountOverride,
		"taxType":          it.TaxType,
		"taxRate":          it.TaxRate,
		"taxAmount":        it.TaxAmount,
		"taxOverride":      it.TaxOverride,
		"deliveryDate":     it.DeliveryDate,
		"deliveryPoint":    it.DeliveryPoint,
		"comment":          it.Comment,
		"status":           it.Status,
	}
}

func renderDetail(detail RequestDetail) map[string]any {
	items := make([]map[string]any, 0, len(detail.Items))
	for i, it := range detail.Items {
		entry := renderItem(it)
		entry["pricing"] = detail.Pricing[i]
		entry["totalDisplay"] = pricing.FormatAmount(detail.Pricing[i].Total, it.Currency)
		items = append(items, entry)
	}
	out := renderRequest(detail.Request)
	out["items"] = items
	out["totals"] = detail.Totals
	return out
}

func renderDecision(d workflow.Decision) map[string]any {
	breakdown := make(map[string]int, len(d.Breakdown))
	for status, count := range d.Breakdown {
		breakdown[string(status)] = count
	}
	return map[string]any{
		"action":      d.Action,
		"mixedStatus": d.MixedStatus,
		"breakdown":   breakdown,
	}
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, value)
	return t
}
