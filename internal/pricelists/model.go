package pricelists

import (
	"errors"
	"time"
)

// Pricelist is a vendor price catalogue valid over a date window. Lines
// carry the default pricing a purchase request item inherits when it is
// linked to the pricelist.
type Pricelist struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=255"`
	VendorID  int64     `json:"vendor_id" validate:"required,gt=0"`
	Currency  string    `json:"currency" validate:"required,len=3"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is one priced product on a pricelist.
type Line struct {
	ID           int64   `json:"id"`
	PricelistID  int64   `json:"pricelist_id"`
	Product      string  `json:"product" validate:"required"`
	Unit         string  `json:"unit" validate:"required"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	// Rates are fractions of 1 (0.05 = 5%), matching the pricing calculator.
	DiscountRate float64 `json:"discount_rate" validate:"gte=0,lte=1"`
	TaxRate      float64 `json:"tax_rate" validate:"gte=0,lte=1"`
	MinQty       float64 `json:"min_qty" validate:"gte=0"`
}

// Template is a reusable set of request lines bound to a pricelist, used
// to prefill recurring purchase requests.
type Template struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name" validate:"required,max=255"`
	Description string         `json:"description"`
	PricelistID int64          `json:"pricelist_id" validate:"required,gt=0"`
	Lines       []TemplateLine `json:"lines"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TemplateLine is one prefilled request line in a template.
type TemplateLine struct {
	ID         int64   `json:"id"`
	TemplateID int64   `json:"template_id"`
	Product    string  `json:"product" validate:"required"`
	Qty        float64 `json:"qty" validate:"gt=0"`
	Unit       string  `json:"unit"`
}

// ValidOn reports whether the pricelist covers the given date. A zero
// ValidTo means open-ended.
func (p Pricelist) ValidOn(t time.Time) bool {
	if !p.Active {
		return false
	}
	if t.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidTo.IsZero() && t.After(p.ValidTo) {
		return false
	}
	return true
}

var (
	ErrNotFound   = errors.New("pricelists: not found")
	ErrDuplicate  = errors.New("pricelists: duplicate code")
	ErrValidation = errors.New("pricelists: invalid input")
	ErrExpired    = errors.New("pricelists: pricelist not valid on date")
)
