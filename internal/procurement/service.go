package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/pricing"
	"github.com/meridian-procure/meridian-procure/internal/shared"
	"github.com/meridian-procure/meridian-procure/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseRequestItem, error)
	GetRequestByNumber(ctx context.Context, number string) (PurchaseRequest, []PurchaseRequestItem, error)
	ListRequests(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseRequest, int, error)
}

// TxRepository groups writes executed inside one transaction.
type TxRepository interface {
	CreateRequest(ctx context.Context, pr PurchaseRequest) (int64, error)
	InsertItem(ctx context.Context, item PurchaseRequestItem) (int64, error)
	UpdateItem(ctx context.Context, item PurchaseRequestItem) error
	UpdateItemStatus(ctx context.Context, itemID int64, status workflow.ItemStatus) error
	UpdateStage(ctx context.Context, requestID int64, stage workflow.Stage, cancelled bool) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// JobsPort lets the service hand follow-up work to the queue without
// depending on the jobs package.
type JobsPort interface {
	EnqueueReindex(ctx context.Context, requestID int64) error
}

// IdempotencyPort guards submission against duplicate delivery. The key is
// released again when a return hands the request back to the requester.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// DecisionMetrics counts evaluated workflow decisions.
type DecisionMetrics interface {
	ObserveDecision(action string)
}

// ServiceConfig carries tunables for the procurement service.
type ServiceConfig struct {
	BaseCurrency string
	Metrics      DecisionMetrics
}

// Service orchestrates purchase request flows.
type Service struct {
	repo        RepositoryPort
	approvals   *shared.ApprovalRecorder
	audit       AuditPort
	idempotency IdempotencyPort
	jobs        JobsPort
	cfg         ServiceConfig
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, approvals *shared.ApprovalRecorder, audit AuditPort, idem IdempotencyPort, jobs JobsPort, cfg ServiceConfig) *Service {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "USD"
	}
	return &Service{repo: repo, approvals: approvals, audit: audit, idempotency: idem, jobs: jobs, cfg: cfg}
}

// CreateRequestInput describes the creation payload.
type CreateRequestInput struct {
	Number       string
	RequestorID  int64
	Department   string
	Location     string
	RequestType  string
	RequiredDate time.Time
	Description  string
	Items        []ItemInput
}

// ItemInput describes one requested line.
type ItemInput struct {
	Name             string
	Description      string
	RequestQty       float64
	RequestUnit      string
	Currency         string
	CurrencyRate     float64
	UnitPrice        float64
	DiscountRate     float64
	DiscountAmount   float64
	DiscountOverride bool
	TaxType          string
	TaxRate          float64
	TaxAmount        float64
	TaxOverride      bool
	DeliveryDate     time.Time
	DeliveryPoint    string
	Comment          string
}

// RequestDetail bundles the header, lines and their computed pricing.
type RequestDetail struct {
	Request PurchaseRequest
	Items   []PurchaseRequestItem
	Pricing []pricing.Breakdown
	Totals  pricing.Breakdown
}

// CreateRequest persists a draft request with its lines. Every line is
// priced once up front so degenerate numbers are rejected before storage.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (PurchaseRequest, error) {
	if len(input.Items) == 0 {
		return PurchaseRequest{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	if input.RequestorID == 0 {
		return PurchaseRequest{}, fmt.Errorf("%w: requestor required", ErrValidation)
	}
	if input.Number == "" {
		input.Number = generateNumber("PR")
	}
	pr := PurchaseRequest{
		Number:       input.Number,
		RequestDate:  time.Now(),
		RequiredDate: input.RequiredDate,
		RequestorID:  input.RequestorID,
		Department:   input.Department,
		Location:     input.Location,
		RequestType:  input.RequestType,
		Stage:        workflow.StageRequester,
		Description:  input.Description,
	}

	items := make([]PurchaseRequestItem, 0, len(input.Items))
	for _, line := range input.Items {
		item, err := s.buildItem(line)
		if err != nil {
			return PurchaseRequest{}, err
		}
		items = append(items, item)
	}

	var created PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRequest(ctx, pr)
		if err != nil {
			return err
		}
		for _, item := range items {
			item.RequestID = id
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		created = pr
		created.ID = id
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, input.RequestorID, "PR_CREATE", created.ID, map[string]any{"number": created.Number, "lines": len(items)})
	return created, nil
}

func (s *Service) buildItem(line ItemInput) (PurchaseRequestItem, error) {
	if line.Name == "" || line.RequestQty <= 0 {
		return PurchaseRequestItem{}, fmt.Errorf("%w: item name and positive quantity required", ErrValidation)
	}
	if line.Currency != "" && !pricing.ValidCurrency(line.Currency) {
		return PurchaseRequestItem{}, fmt.Errorf("%w: unknown currency %q", ErrValidation, line.Currency)
	}
	item := PurchaseRequestItem{
		Name:             line.Name,
		Description:      line.Description,
		RequestQty:       line.RequestQty,
		RequestUnit:      line.RequestUnit,
		Currency:         defaultString(line.Currency, s.cfg.BaseCurrency),
		CurrencyRate:     defaultRate(line.CurrencyRate),
		UnitPrice:        line.UnitPrice,
		DiscountRate:     line.DiscountRate,
		DiscountAmount:   line.DiscountAmount,
		DiscountOverride: line.DiscountOverride,
		TaxType:          line.TaxType,
		TaxRate:          line.TaxRate,
		TaxAmount:        line.TaxAmount,
		TaxOverride:      line.TaxOverride,
		DeliveryDate:     line.DeliveryDate,
		DeliveryPoint:    line.DeliveryPoint,
		Comment:          line.Comment,
		Status:           workflow.ItemDraft,
	}
	if _, err := pricing.Calculate(item.PricingInput(s.cfg.BaseCurrency)); err != nil {
		return PurchaseRequestItem{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return item, nil
}

// GetRequest loads one request with computed pricing per line.
func (s *Service) GetRequest(ctx context.Context, id int64) (RequestDetail, error) {
	pr, items, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return RequestDetail{}, err
	}
	return s.buildDetail(pr, items)
}

// GetRequestByNumber resolves a request by its human-readable number.
func (s *Service) GetRequestByNumber(ctx context.Context, number string) (RequestDetail, error) {
	pr, items, err := s.repo.GetRequestByNumber(ctx, number)
	if err != nil {
		return RequestDetail{}, err
	}
	return s.buildDetail(pr, items)
}

func (s *Service) buildDetail(pr PurchaseRequest, items []PurchaseRequestItem) (RequestDetail, error) {
	detail := RequestDetail{Request: pr, Items: items, Pricing: make([]pricing.Breakdown, 0, len(items))}
	for _, item := range items {
		bd, err := pricing.Calculate(item.PricingInput(s.cfg.BaseCurrency))
		if err != nil {
			return RequestDetail{}, err
		}
		detail.Pricing = append(detail.Pricing, bd)
		detail.Totals.Subtotal += bd.Subtotal
		detail.Totals.Discount += bd.Discount
		detail.Totals.Net += bd.Net
		detail.Totals.Tax += bd.Tax
		detail.Totals.Total += bd.Total
	}
	return detail, nil
}

// ListRequests returns a filtered page of requests.
func (s *Service) ListRequests(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseRequest, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListRequests(ctx, limit, offset, filters)
}

// FieldChange carries one field mutation on a line item.
type FieldChange struct {
	Field permissions.Field
	Value any
}

// UpdateItem applies field changes to a line, enforcing the field
// permission table for the actor's role and refusing edits on lines that
// reached a terminal status.
func (s *Service) UpdateItem(ctx context.Context, requestID, itemID int64, actorRole string, mode permissions.Mode, changes []FieldChange) (PurchaseRequestItem, error) {
	if len(changes) == 0 {
		return PurchaseRequestItem{}, fmt.Errorf("%w: no changes supplied", ErrValidation)
	}
	cap := permissions.FromDisplayName(actorRole)

	_, items, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return PurchaseRequestItem{}, err
	}
	item, ok := findItem(items, itemID)
	if !ok {
		return PurchaseRequestItem{}, ErrNotFound
	}
	if item.Status.Terminal() {
		return PurchaseRequestItem{}, ErrItemLocked
	}

	for _, change := range changes {
		if !permissions.IsFieldEditable(change.Field, cap, mode) {
			return PurchaseRequestItem{}, fmt.Errorf("%w: %s", ErrFieldNotEditable, change.Field)
		}
		if err := applyChange(&item, change); err != nil {
			return PurchaseRequestItem{}, err
		}
	}

	// Reprice after mutation so a bad number is rejected, not stored.
	if _, err := pricing.Calculate(item.PricingInput(s.cfg.BaseCurrency)); err != nil {
		return PurchaseRequestItem{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return PurchaseRequestItem{}, err
	}
	return item, nil
}

// SubmitRequest moves the request out of the requester stage and puts all
// draft lines in progress.
func (s *Service) SubmitRequest(ctx context.Context, id int64, actorID int64) error {
	pr, items, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if pr.Stage != workflow.StageRequester || pr.Cancelled {
		return ErrInvalidState
	}
	next, err := workflow.NextStage(pr.Stage)
	if err != nil {
		return ErrInvalidState
	}

	key := submitKey(pr.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement.request"); err != nil {
			return err
		}
		inserted = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStage(ctx, id, next, false); err != nil {
			return err
		}
		for _, item := range items {
			if item.Status != workflow.ItemDraft {
				continue
			}
			if err := tx.UpdateItemStatus(ctx, item.ID, workflow.ItemInProgress); err != nil {
				return err
			}
		}
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, "PR", requestRef(id), actorID, fmt.Sprintf("PR %s submitted", pr.Number))
		}
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "PR_SUBMIT", id, map[string]any{"number": pr.Number, "stage": string(next)})
	s.enqueueReindex(ctx, id)
	return nil
}

// ApproveStage advances the request to the next pipeline stage. Reaching
// the completed stage marks every in-flight line approved.
func (s *Service) ApproveStage(ctx context.Context, id int64, actorID int64, actorRole string) error {
	cap := permissions.FromDisplayName(actorRole)
	if cap != permissions.CapabilityApprover && cap != permissions.CapabilityPurchaser {
		return ErrActionBlocked
	}
	pr, items, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if pr.Cancelled || pr.Stage == workflow.StageRequester {
		return ErrInvalidState
	}
	next, err := workflow.NextStage(pr.Stage)
	if err != nil {
		return ErrInvalidState
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStage(ctx, id, next, false); err != nil {
			return err
		}
		if next == workflow.StageCompleted {
			for _, item := range items {
				if item.Status != workflow.ItemInProgress {
					continue
				}
				if err := tx.UpdateItemStatus(ctx, item.ID, workflow.ItemApproved); err != nil {
					return err
				}
			}
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: "PR", RefID: requestRef(id), ActorID: actorID,
				Action: shared.ApprovalApprove,
				Note:   fmt.Sprintf("PR %s advanced to %s", pr.Number, next),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PR_APPROVE", id, map[string]any{"number": pr.Number, "stage": string(next)})
	s.enqueueReindex(ctx, id)
	return nil
}

// ReturnRequest sends the request back to an earlier stage. The comment is
// mandatory and the target must come from the fixed return menu.
func (s *Service) ReturnRequest(ctx context.Context, id int64, actorID int64, actorRole string, target workflow.Stage, comment string) error {
	if comment == "" {
		return ErrCommentRequired
	}
	cap := permissions.FromDisplayName(actorRole)
	if cap != permissions.CapabilityApprover && cap != permissions.CapabilityPurchaser {
		return ErrActionBlocked
	}
	pr, items, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if pr.Cancelled {
		return ErrInvalidState
	}
	if err := workflow.ValidateReturnTarget(pr.Stage, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStage(ctx, id, target, false); err != nil {
			return err
		}
		for _, item := range items {
			if item.Status != workflow.ItemInProgress {
				continue
			}
			if err := tx.UpdateItemStatus(ctx, item.ID, workflow.ItemDraft); err != nil {
				return err
			}
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: "PR", RefID: requestRef(id), ActorID: actorID,
				Action: shared.ApprovalReturn, Note: comment,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Back at the requester stage the cycle starts over, so the submit key
	// must be released or a legitimate resubmit would be refused until the
	// retention window expires.
	if target == workflow.StageRequester {
		s.releaseSubmitKey(ctx, pr.Number)
	}
	s.recordAudit(ctx, actorID, "PR_RETURN", id, map[string]any{"number": pr.Number, "target": string(target)})
	s.enqueueReindex(ctx, id)
	return nil
}

// CancelRequest cancels the whole request and every non-terminal line.
func (s *Service) CancelRequest(ctx context.Context, id int64, actorID int64, actorRole string) error {
	cap := permissions.FromDisplayName(actorRole)
	if cap != permissions.CapabilityApprover && cap != permissions.CapabilityPurchaser {
		return ErrActionBlocked
	}
	pr, items, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if pr.Cancelled {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStage(ctx, id, pr.Stage, true); err != nil {
			return err
		}
		for _, item := range items {
			if item.Status.Terminal() {
				continue
			}
			if err := tx.UpdateItemStatus(ctx, item.ID, workflow.ItemCancelled); err != nil {
				return err
			}
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: "PR", RefID: requestRef(id), ActorID: actorID,
				Action: shared.ApprovalReject,
				Note:   fmt.Sprintf("PR %s cancelled", pr.Number),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PR_CANCEL", id, map[string]any{"number": pr.Number})
	s.enqueueReindex(ctx, id)
	return nil
}

// EvaluateSelection runs the workflow engine over the selected lines.
func (s *Service) EvaluateSelection(ctx context.Context, requestID int64, itemIDs []int64, actorRole string) (workflow.Decision, error) {
	_, items, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return workflow.Decision{}, err
	}
	selected, err := selectItems(items, itemIDs)
	if err != nil {
		return workflow.Decision{}, err
	}
	decision := workflow.Evaluate(toEngineItems(selected), permissions.FromDisplayName(actorRole))
	s.observeDecision(decision.Action)
	return decision, nil
}

// ApplyItemActionInput describes a bulk line action.
type ApplyItemActionInput struct {
	RequestID int64
	ItemIDs   []int64
	ActorID   int64
	ActorRole string
	// Scope is required when the selection spans more than one status.
	Scope   workflow.Scope
	Comment string
}

// ApplyItemAction executes the two-step bulk protocol: evaluate first,
// then apply to the scope-resolved targets. A mixed-status selection
// without an explicit scope is refused, never auto-resolved.
func (s *Service) ApplyItemAction(ctx context.Context, input ApplyItemActionInput) (workflow.Decision, error) {
	_, items, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return workflow.Decision{}, err
	}
	selected, err := selectItems(items, input.ItemIDs)
	if err != nil {
		return workflow.Decision{}, err
	}
	engineItems := toEngineItems(selected)
	cap := permissions.FromDisplayName(input.ActorRole)

	decision := workflow.Evaluate(engineItems, cap)
	s.observeDecision(decision.Action)
	if decision.Action == workflow.ActionBlocked {
		return decision, ErrActionBlocked
	}

	targets := engineItems
	action := decision.Action
	if decision.MixedStatus {
		if input.Scope != workflow.ScopePendingOnly && input.Scope != workflow.ScopeAll {
			return decision, ErrMixedSelection
		}
		targets = workflow.SelectTargets(engineItems, input.Scope)
		if len(targets) == 0 {
			return decision, fmt.Errorf("%w: scope matched no items", ErrValidation)
		}
		// Re-evaluate within the chosen scope to obtain a single action.
		scoped := workflow.Evaluate(targets, cap)
		if scoped.MixedStatus {
			// "all" can still span statuses; approve is the only action
			// meaningful across the board.
			action = workflow.ActionApprove
		} else {
			action = scoped.Action
		}
	}
	if action == workflow.ActionReturn && input.Comment == "" {
		return decision, ErrCommentRequired
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, target := range targets {
			next, ok := workflow.NextStatusForAction(action, target.Status)
			if !ok {
				continue
			}
			if err := tx.UpdateItemStatus(ctx, target.ID, next); err != nil {
				return err
			}
		}
		if s.approvals != nil && action == workflow.ActionReturn {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module: "PR", RefID: requestRef(input.RequestID), ActorID: input.ActorID,
				Action: shared.ApprovalReturn, Note: input.Comment,
			})
		}
		return nil
	})
	if err != nil {
		return decision, err
	}
	s.recordAudit(ctx, input.ActorID, "PR_ITEM_ACTION", input.RequestID, map[string]any{
		"action": string(action), "items": len(targets),
	})
	return decision, nil
}

// ApprovalHistory lists the approval trail for a request.
func (s *Service) ApprovalHistory(ctx context.Context, requestID int64) ([]shared.ApprovalLog, error) {
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, "PR", requestRef(requestID))
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "purchase_request", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func (s *Service) observeDecision(action workflow.Action) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.ObserveDecision(string(action))
}

func (s *Service) enqueueReindex(ctx context.Context, requestID int64) {
	if s.jobs == nil {
		return
	}
	_ = s.jobs.EnqueueReindex(ctx, requestID)
}

func (s *Service) releaseSubmitKey(ctx context.Context, number string) {
	if s.idempotency == nil {
		return
	}
	_ = s.idempotency.Delete(ctx, submitKey(number))
}

func submitKey(number string) string {
	return fmt.Sprintf("PR:%s:submit", number)
}

func requestRef(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PR:%d", id)))
}

func findItem(items []PurchaseRequestItem, id int64) (PurchaseRequestItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return PurchaseRequestItem{}, false
}

func selectItems(items []PurchaseRequestItem, ids []int64) ([]PurchaseRequestItem, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no items selected", ErrValidation)
	}
	selected := make([]PurchaseRequestItem, 0, len(ids))
	for _, id := range ids {
		item, ok := findItem(items, id)
		if !ok {
			return nil, ErrNotFound
		}
		selected = append(selected, item)
	}
	return selected, nil
}

func toEngineItems(items []PurchaseRequestItem) []workflow.Item {
	out := make([]workflow.Item, 0, len(items))
	for _, item := range items {
		out = append(out, workflow.Item{ID: item.ID, Status: item.Status})
	}
	return out
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultRate(rate float64) float64 {
	if rate <= 0 {
		return 1
	}
	return rate
}
