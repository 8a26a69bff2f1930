package procurement

import (
	"errors"
	"time"

	"github.com/meridian-procure/meridian-procure/internal/pricing"
	"github.com/meridian-procure/meridian-procure/internal/workflow"
)

// PurchaseRequest is the aggregate header. Status is always derived from
// Stage plus the cancelled flag, never stored independently.
type PurchaseRequest struct {
	ID           int64
	Number       string
	RequestDate  time.Time
	RequiredDate time.Time
	RequestorID  int64
	Department   string
	Location     string
	RequestType  string
	Stage        workflow.Stage
	Cancelled    bool
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Status projects the coarse document status from the stage.
func (pr PurchaseRequest) Status() workflow.DocumentStatus {
	return workflow.ProjectStatus(pr.Stage, pr.Cancelled)
}

// PurchaseRequestItem is one procurement line. The discount and tax columns
// persist both the rate and the override amount; the override flag selects
// which one is authoritative, and the adjustment accessors expose that
// choice as a pricing.Adjustment so callers can never read the wrong one.
type PurchaseRequestItem struct {
	ID          int64
	RequestID   int64
	Name        string
	Description string

	RequestQty  float64
	RequestUnit string
	ApprovedQty *float64

	VendorID    *int64
	PricelistID *int64

	Currency     string
	CurrencyRate float64
	UnitPrice    float64

	DiscountRate     float64
	DiscountAmount   float64
	DiscountOverride bool

	TaxType     string
	TaxRate     float64
	TaxAmount   float64
	TaxOverride bool

	DeliveryDate  time.Time
	DeliveryPoint string
	Comment       string

	Status workflow.ItemStatus
}

// DiscountAdjustment returns the authoritative discount variant.
func (it PurchaseRequestItem) DiscountAdjustment() pricing.Adjustment {
	if it.DiscountOverride {
		return pricing.FixedAmount(it.DiscountAmount)
	}
	return pricing.ComputedRate(it.DiscountRate)
}

// TaxAdjustment returns the authoritative tax variant.
func (it PurchaseRequestItem) TaxAdjustment() pricing.Adjustment {
	if it.TaxOverride {
		return pricing.FixedAmount(it.TaxAmount)
	}
	return pricing.ComputedRate(it.TaxRate)
}

// PricingInput assembles the calculator input for this line against the
// given base currency.
func (it PurchaseRequestItem) PricingInput(baseCurrency string) pricing.Input {
	return pricing.Input{
		UnitPrice:    it.UnitPrice,
		Quantity:     it.RequestQty,
		Discount:     it.DiscountAdjustment(),
		Tax:          it.TaxAdjustment(),
		Currency:     it.Currency,
		BaseCurrency: baseCurrency,
		CurrencyRate: it.CurrencyRate,
	}
}

// ListFilters narrows request listings.
type ListFilters struct {
	Stage       string
	Status      string
	Department  string
	RequestorID int64
	Search      string
	SortBy      string
	SortDir     string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: not found")
	// ErrInvalidState occurs when an action violates the stage or item workflow.
	ErrInvalidState = errors.New("procurement: invalid state transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrCommentRequired occurs when a return action carries no comment.
	ErrCommentRequired = errors.New("procurement: return comment required")
	// ErrFieldNotEditable occurs when the actor's role may not edit a field.
	ErrFieldNotEditable = errors.New("procurement: field not editable for role")
	// ErrItemLocked occurs when editing a line that reached a terminal status.
	ErrItemLocked = errors.New("procurement: item is in a terminal status")
	// ErrMixedSelection occurs when a bulk action spans multiple statuses
	// and no disambiguation scope was chosen.
	ErrMixedSelection = errors.New("procurement: mixed-status selection requires a scope")
	// ErrActionBlocked occurs when the workflow engine blocks the actor.
	ErrActionBlocked = errors.New("procurement: action blocked for role")
)
