package pricing

import (
	"errors"
	"math"
)

var (
	// ErrInvalidInput occurs when a numeric input is NaN, infinite, negative,
	// or a computed rate exceeds 1.
	ErrInvalidInput = errors.New("pricing: invalid input")
	// ErrInvalidCurrencyRate occurs when the exchange rate is not positive.
	ErrInvalidCurrencyRate = errors.New("pricing: currency rate must be positive")
)

type adjustmentKind int

const (
	adjustComputed adjustmentKind = iota
	adjustFixed
)

// Adjustment selects between a rate-computed amount and a fixed override.
// Exactly one variant is authoritative.
type Adjustment struct {
	kind   adjustmentKind
	rate   float64
	amount float64
}

// ComputedRate builds an adjustment derived from a fractional rate (0.1 = 10%).
// Rates above 1 are rejected by Calculate, so a percent-style value can never
// be applied as a fraction.
func ComputedRate(rate float64) Adjustment {
	return Adjustment{kind: adjustComputed, rate: rate}
}

// FixedAmount builds an adjustment that overrides the computed value.
func FixedAmount(amount float64) Adjustment {
	return Adjustment{kind: adjustFixed, amount: amount}
}

// IsOverride reports whether the adjustment carries a fixed amount.
func (a Adjustment) IsOverride() bool {
	return a.kind == adjustFixed
}

// Rate returns the fractional rate for computed adjustments.
func (a Adjustment) Rate() float64 {
	return a.rate
}

// Amount returns the override amount for fixed adjustments.
func (a Adjustment) Amount() float64 {
	return a.amount
}

func (a Adjustment) resolve(base float64) float64 {
	if a.kind == adjustFixed {
		return a.amount
	}
	return base * a.rate
}

func (a Adjustment) valid() bool {
	if a.kind == adjustFixed {
		return isFinite(a.amount) && a.amount >= 0
	}
	return isFinite(a.rate) && a.rate >= 0 && a.rate <= 1
}

// Input carries everything needed to price one line item.
type Input struct {
	UnitPrice    float64
	Quantity     float64
	Discount     Adjustment
	Tax          Adjustment
	Currency     string
	BaseCurrency string
	CurrencyRate float64
}

// Breakdown is the derived monetary result for one line item.
type Breakdown struct {
	Subtotal float64
	Discount float64
	Net      float64
	Tax      float64
	Total    float64
	// Base holds the base-currency mirror of every amount. Nil when the
	// item currency already is the base currency.
	Base *BaseAmounts
}

// BaseAmounts mirrors Breakdown amounts converted to the base currency.
type BaseAmounts struct {
	Currency string
	Subtotal float64
	Discount float64
	Net      float64
	Tax      float64
	Total    float64
}

// Calculate derives subtotal, discount, net, tax and total in fixed order.
// Inputs that are NaN, infinite or negative are rejected up front so a bad
// number can never silently flow into a stored total.
func Calculate(in Input) (Breakdown, error) {
	if !isFinite(in.UnitPrice) || in.UnitPrice < 0 {
		return Breakdown{}, ErrInvalidInput
	}
	if !isFinite(in.Quantity) || in.Quantity < 0 {
		return Breakdown{}, ErrInvalidInput
	}
	if !in.Discount.valid() || !in.Tax.valid() {
		return Breakdown{}, ErrInvalidInput
	}
	rate := in.CurrencyRate
	if rate == 0 {
		rate = 1
	}
	if !isFinite(rate) || rate <= 0 {
		return Breakdown{}, ErrInvalidCurrencyRate
	}

	subtotal := round2(in.UnitPrice * in.Quantity)
	discount := round2(in.Discount.resolve(subtotal))
	net := round2(subtotal - discount)
	tax := round2(in.Tax.resolve(net))
	total := round2(net + tax)

	out := Breakdown{Subtotal: subtotal, Discount: discount, Net: net, Tax: tax, Total: total}
	if in.Currency != "" && in.BaseCurrency != "" && in.Currency != in.BaseCurrency {
		out.Base = &BaseAmounts{
			Currency: in.BaseCurrency,
			Subtotal: round2(subtotal * rate),
			Discount: round2(discount * rate),
			Net:      round2(net * rate),
			Tax:      round2(tax * rate),
			Total:    round2(total * rate),
		}
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
