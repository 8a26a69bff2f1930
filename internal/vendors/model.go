package vendors

import "time"

// Vendor represents a supplier a purchase line can be sourced from.
type Vendor struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code" validate:"required,max=32"`
	Name        string    `json:"name" validate:"required,max=255"`
	Address     string    `json:"address"`
	Email       string    `json:"email" validate:"omitempty,email"`
	Phone       string    `json:"phone" validate:"omitempty,max=32"`
	TaxNumber   string    `json:"tax_number"`
	PaymentTerm string    `json:"payment_term"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
