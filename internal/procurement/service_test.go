package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/shared"
	"github.com/meridian-procure/meridian-procure/internal/workflow"
)

type memoryRepo struct {
	requests map[int64]PurchaseRequest
	items    map[int64][]PurchaseRequestItem
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests: make(map[int64]PurchaseRequest),
		items:    make(map[int64][]PurchaseRequestItem),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseRequestItem, error) {
	pr, ok := r.requests[id]
	if !ok {
		return PurchaseRequest{}, nil, ErrNotFound
	}
	return pr, append([]PurchaseRequestItem(nil), r.items[id]...), nil
}

func (r *memoryRepo) GetRequestByNumber(ctx context.Context, number string) (PurchaseRequest, []PurchaseRequestItem, error) {
	for id, pr := range r.requests {
		if pr.Number == number {
			return pr, append([]PurchaseRequestItem(nil), r.items[id]...), nil
		}
	}
	return PurchaseRequest{}, nil, ErrNotFound
}

func (r *memoryRepo) ListRequests(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseRequest, int, error) {
	var out []PurchaseRequest
	for _, pr := range r.requests {
		out = append(out, pr)
	}
	return out, len(out), nil
}

func (tx *memoryTx) next() int64 {
	tx.repo.nextID++
	return tx.repo.nextID
}

func (tx *memoryTx) CreateRequest(ctx context.Context, pr PurchaseRequest) (int64, error) {
	id := tx.next()
	pr.ID = id
	tx.repo.requests[id] = pr
	return id, nil
}

func (tx *memoryTx) InsertItem(ctx context.Context, item PurchaseRequestItem) (int64, error) {
	item.ID = tx.next()
	tx.repo.items[item.RequestID] = append(tx.repo.items[item.RequestID], item)
	return item.ID, nil
}

func (tx *memoryTx) UpdateItem(ctx context.Context, item PurchaseRequestItem) error {
	items := tx.repo.items[item.RequestID]
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return nil
		}
	}
	return ErrNotFound
}

func (tx *memoryTx) UpdateItemStatus(ctx context.Context, itemID int64, status workflow.ItemStatus) error {
	for reqID, items := range tx.repo.items {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Status = status
				tx.repo.items[reqID] = items
				return nil
			}
		}
	}
	return ErrNotFound
}

func (tx *memoryTx) UpdateStage(ctx context.Context, requestID int64, stage workflow.Stage, cancelled bool) error {
	pr, ok := tx.repo.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	pr.Stage = stage
	pr.Cancelled = cancelled
	tx.repo.requests[requestID] = pr
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, nil, ServiceConfig{BaseCurrency: "USD"})
}

func draftInput() CreateRequestInput {
	return CreateRequestInput{
		RequestorID:  7,
		Department:   "Operations",
		Location:     "HQ",
		RequestType:  "goods",
		RequiredDate: time.Now().AddDate(0, 0, 14),
		Items: []ItemInput{
			{Name: "Laptop", RequestQty: 2, RequestUnit: "pcs", UnitPrice: 100, DiscountRate: 0.10, TaxRate: 0.07},
			{Name: "Dock", RequestQty: 1, RequestUnit: "pcs", UnitPrice: 50},
		},
	}
}

func TestCreateRequest(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NotZero(t, pr.ID)
	require.NotEmpty(t, pr.Number)
	require.Equal(t, workflow.StageRequester, pr.Stage)
	require.Equal(t, workflow.DocumentDraft, pr.Status())

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	require.Equal(t, workflow.ItemDraft, detail.Items[0].Status)
	// 100*2 with 10% discount and 7% tax, plus a flat 50 line.
	require.InDelta(t, 192.6+50, detail.Totals.Total, 0.001)
}

func TestCreateRequestRejectsBadPricing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	input := draftInput()
	input.Items[0].UnitPrice = -5
	_, err := svc.CreateRequest(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)

	input = draftInput()
	input.Items = nil
	_, err = svc.CreateRequest(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateRequestRejectsPercentStyleRates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	// Rates are fractions of 1. A caller sending 10 for "10%" would apply a
	// 1000% discount and drive the total negative if it slipped through, so
	// it has to be refused at the door.
	input := draftInput()
	input.Items[0].DiscountRate = 10
	input.Items[0].TaxRate = 7
	_, err := svc.CreateRequest(context.Background(), input)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitAdvancesStageAndItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)

	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StageDepartmentHeadApproval, detail.Request.Stage)
	require.Equal(t, workflow.DocumentInProgress, detail.Request.Status())
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemInProgress, it.Status)
	}

	// Resubmit is refused once past the requester stage.
	require.ErrorIs(t, svc.SubmitRequest(context.Background(), pr.ID, 7), ErrInvalidState)
}

func TestApproveStageWalksPipelineToCompletion(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))

	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 11, "Department Manager"))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 12, "Financial Manager"))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 13, "Purchasing Staff"))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StageCompleted, detail.Request.Stage)
	require.Equal(t, workflow.DocumentCompleted, detail.Request.Status())
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemApproved, it.Status)
	}

	// The pipeline is exhausted; a further approve is invalid.
	require.ErrorIs(t, svc.ApproveStage(context.Background(), pr.ID, 13, "Purchasing Staff"), ErrInvalidState)
}

func TestApproveStageBlocksRequestors(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))

	require.ErrorIs(t, svc.ApproveStage(context.Background(), pr.ID, 7, "Requestor"), ErrActionBlocked)
	require.ErrorIs(t, svc.ApproveStage(context.Background(), pr.ID, 7, "Janitor"), ErrActionBlocked)
}

func TestReturnRequest(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 11, "Department Manager"))

	// Comment is mandatory.
	err = svc.ReturnRequest(context.Background(), pr.ID, 12, "Financial Manager", workflow.StageRequester, "")
	require.ErrorIs(t, err, ErrCommentRequired)

	// Target must be an earlier stage.
	err = svc.ReturnRequest(context.Background(), pr.ID, 12, "Financial Manager", workflow.StageCompleted, "wrong direction")
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, svc.ReturnRequest(context.Background(), pr.ID, 12, "Financial Manager", workflow.StageRequester, "please split the order"))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StageRequester, detail.Request.Stage)
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemDraft, it.Status)
	}
}

func TestSubmitKeyReleasedOnReturnToRequester(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdempotency{keys: map[string]bool{}}
	svc := NewService(repo, nil, nil, idem, nil, ServiceConfig{BaseCurrency: "USD"})

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))
	require.True(t, idem.keys[submitKey(pr.Number)])

	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 11, "Department Manager"))
	require.NoError(t, svc.ReturnRequest(context.Background(), pr.ID, 12, "Financial Manager", workflow.StageRequester, "split the order"))
	require.False(t, idem.keys[submitKey(pr.Number)])

	// The request is back with the requester; a fresh submit starts the
	// cycle over instead of tripping over the previous key.
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StageDepartmentHeadApproval, detail.Request.Stage)
}

func TestSubmitKeyKeptOnReturnToApprovalStage(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdempotency{keys: map[string]bool{}}
	svc := NewService(repo, nil, nil, idem, nil, ServiceConfig{BaseCurrency: "USD"})

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 11, "Department Manager"))

	// A return that stays inside the approval pipeline needs no resubmit,
	// so the key remains held.
	require.NoError(t, svc.ReturnRequest(context.Background(), pr.ID, 12, "Financial Manager", workflow.StageDepartmentHeadApproval, "recheck the budget line"))
	require.True(t, idem.keys[submitKey(pr.Number)])
}

func TestSubmitRefusedWhileKeyHeld(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdempotency{keys: map[string]bool{}}
	svc := NewService(repo, nil, nil, idem, nil, ServiceConfig{BaseCurrency: "USD"})

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)

	// A duplicate delivery that raced past the stage read stops at the key.
	require.NoError(t, idem.CheckAndInsert(context.Background(), submitKey(pr.Number), "procurement.request"))
	require.ErrorIs(t, svc.SubmitRequest(context.Background(), pr.ID, 7), shared.ErrIdempotencyConflict)
}

func TestCancelRequest(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))

	require.NoError(t, svc.CancelRequest(context.Background(), pr.ID, 11, "Department Manager"))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	require.True(t, detail.Request.Cancelled)
	require.Equal(t, workflow.DocumentCancelled, detail.Request.Status())
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemCancelled, it.Status)
	}

	require.ErrorIs(t, svc.CancelRequest(context.Background(), pr.ID, 11, "Department Manager"), ErrInvalidState)
}

func TestUpdateItemPermissionGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	itemID := detail.Items[0].ID

	// Requestor may change quantity.
	item, err := svc.UpdateItem(context.Background(), pr.ID, itemID, "Requestor", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldRequestQty, Value: float64(3)}})
	require.NoError(t, err)
	require.Equal(t, float64(3), item.RequestQty)

	// Requestor may not set the price.
	_, err = svc.UpdateItem(context.Background(), pr.ID, itemID, "Requestor", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldPrice, Value: float64(80)}})
	require.ErrorIs(t, err, ErrFieldNotEditable)

	// Purchasing staff may.
	item, err = svc.UpdateItem(context.Background(), pr.ID, itemID, "Purchasing Staff", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldPrice, Value: float64(80)}})
	require.NoError(t, err)
	require.Equal(t, float64(80), item.UnitPrice)

	// View mode is read-only for everyone.
	_, err = svc.UpdateItem(context.Background(), pr.ID, itemID, "Purchasing Staff", permissions.ModeView,
		[]FieldChange{{Field: permissions.FieldPrice, Value: float64(90)}})
	require.ErrorIs(t, err, ErrFieldNotEditable)

	// Comment stays open to all roles.
	item, err = svc.UpdateItem(context.Background(), pr.ID, itemID, "Janitor", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldComment, Value: "urgent"}})
	require.NoError(t, err)
	require.Equal(t, "urgent", item.Comment)

	// The order unit is locked for every role.
	_, err = svc.UpdateItem(context.Background(), pr.ID, itemID, "Purchasing Manager", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldOrderUnit, Value: "box"}})
	require.ErrorIs(t, err, ErrFieldNotEditable)
}

func TestUpdateItemLockedWhenTerminal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.SubmitRequest(context.Background(), pr.ID, 7))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 11, "Department Manager"))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 12, "Financial Manager"))
	require.NoError(t, svc.ApproveStage(context.Background(), pr.ID, 13, "Purchasing Staff"))

	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), pr.ID, detail.Items[0].ID, "Requestor", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldComment, Value: "too late"}})
	require.ErrorIs(t, err, ErrItemLocked)
}

func TestUpdateItemRejectsBadPricing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), pr.ID, detail.Items[0].ID, "Purchasing Staff", permissions.ModeEdit,
		[]FieldChange{{Field: permissions.FieldPrice, Value: float64(-3)}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestEvaluateSelection(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	ids := []int64{detail.Items[0].ID, detail.Items[1].ID}

	decision, err := svc.EvaluateSelection(context.Background(), pr.ID, ids, "Department Manager")
	require.NoError(t, err)
	require.False(t, decision.MixedStatus)
	require.Equal(t, workflow.ActionApprove, decision.Action)

	decision, err = svc.EvaluateSelection(context.Background(), pr.ID, ids, "Requestor")
	require.NoError(t, err)
	require.Equal(t, workflow.ActionBlocked, decision.Action)
}

func TestApplyItemActionHomogeneous(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	ids := []int64{detail.Items[0].ID, detail.Items[1].ID}

	// Approving a draft set moves it in progress.
	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: ids, ActorID: 11, ActorRole: "Department Manager",
	})
	require.NoError(t, err)

	detail, err = svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemInProgress, it.Status)
	}

	// An in-progress set offers return, which demands a comment.
	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: ids, ActorID: 11, ActorRole: "Department Manager",
	})
	require.ErrorIs(t, err, ErrCommentRequired)

	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: ids, ActorID: 11, ActorRole: "Department Manager",
		Comment: "needs revision",
	})
	require.NoError(t, err)

	detail, err = svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	for _, it := range detail.Items {
		require.Equal(t, workflow.ItemDraft, it.Status)
	}
}

func TestApplyItemActionMixedRequiresScope(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	first, second := detail.Items[0].ID, detail.Items[1].ID

	// Move one line in progress to force a mixed selection.
	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: []int64{first}, ActorID: 11, ActorRole: "Department Manager",
	})
	require.NoError(t, err)

	ids := []int64{first, second}
	decision, err := svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: ids, ActorID: 11, ActorRole: "Department Manager",
	})
	require.ErrorIs(t, err, ErrMixedSelection)
	require.True(t, decision.MixedStatus)
	require.Equal(t, 1, decision.Breakdown[workflow.ItemDraft])
	require.Equal(t, 1, decision.Breakdown[workflow.ItemInProgress])

	// Approving across the board with an explicit scope resolves both lines.
	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: ids, ActorID: 11, ActorRole: "Department Manager",
		Scope: workflow.ScopeAll,
	})
	require.NoError(t, err)

	detail, err = svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)
	statuses := map[workflow.ItemStatus]int{}
	for _, it := range detail.Items {
		statuses[it.Status]++
	}
	// Draft advanced to InProgress and InProgress advanced to Approved.
	require.Equal(t, 1, statuses[workflow.ItemInProgress])
	require.Equal(t, 1, statuses[workflow.ItemApproved])
}

func TestApplyItemActionBlocked(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	pr, err := svc.CreateRequest(context.Background(), draftInput())
	require.NoError(t, err)
	detail, err := svc.GetRequest(context.Background(), pr.ID)
	require.NoError(t, err)

	_, err = svc.ApplyItemAction(context.Background(), ApplyItemActionInput{
		RequestID: pr.ID, ItemIDs: []int64{detail.Items[0].ID}, ActorID: 7, ActorRole: "Requestor",
	})
	require.ErrorIs(t, err, ErrActionBlocked)
}
