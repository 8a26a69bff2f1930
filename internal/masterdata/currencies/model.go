package currencies

import "time"

// Currency is an ISO currency with its exchange rate against the base
// currency. The rate multiplies a foreign amount into base terms.
type Currency struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Rate      float64   `json:"rate"`
	IsBase    bool      `json:"is_base"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
