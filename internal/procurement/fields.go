package procurement

import (
	"fmt"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
)

// applyChange mutates one line field from a decoded JSON value. Header
// level fields are rejected here; they travel through the request update
// path, not the line update path.
func applyChange(item *PurchaseRequestItem, change FieldChange) error {
	switch change.Field {
	case permissions.FieldProduct:
		s, ok := asString(change.Value)
		if !ok || s == "" {
			return fmt.Errorf("%w: product must be a non-empty string", ErrValidation)
		}
		item.Name = s
	case permissions.FieldComment:
		s, ok := asString(change.Value)
		if !ok {
			return fmt.Errorf("%w: comment must be a string", ErrValidation)
		}
		item.Comment = s
	case permissions.FieldRequestQty:
		f, ok := asFloat(change.Value)
		if !ok || f <= 0 {
			return fmt.Errorf("%w: requestQty must be a positive number", ErrValidation)
		}
		item.RequestQty = f
	case permissions.FieldRequestUnit:
		s, ok := asString(change.Value)
		if !ok || s == "" {
			return fmt.Errorf("%w: requestUnit must be a non-empty string", ErrValidation)
		}
		item.RequestUnit = s
	case permissions.FieldDeliveryPoint:
		s, ok := asString(change.Value)
		if !ok {
			return fmt.Errorf("%w: deliveryPoint must be a string", ErrValidation)
		}
		item.DeliveryPoint = s
	case permissions.FieldApprovedQty:
		if change.Value == nil {
			item.ApprovedQty = nil
			return nil
		}
		f, ok := asFloat(change.Value)
		if !ok || f < 0 {
			return fmt.Errorf("%w: approvedQty must be a non-negative number", ErrValidation)
		}
		item.ApprovedQty = &f
	case permissions.FieldVendor:
		id, err := asID(change.Value)
		if err != nil {
			return fmt.Errorf("%w: vendor %v", ErrValidation, err)
		}
		item.VendorID = id
	case permissions.FieldPricelist:
		id, err := asID(change.Value)
		if err != nil {
			return fmt.Errorf("%w: pricelist %v", ErrValidation, err)
		}
		item.PricelistID = id
	case permissions.FieldPrice:
		f, ok := asFloat(change.Value)
		if !ok || f < 0 {
			return fmt.Errorf("%w: price must be a non-negative number", ErrValidation)
		}
		item.UnitPrice = f
	case permissions.FieldLocation, permissions.FieldRequiredDate:
		return fmt.Errorf("%w: %s is a request-level field", ErrValidation, change.Field)
	default:
		return fmt.Errorf("%w: unknown field %s", ErrValidation, change.Field)
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asID(v any) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	f, ok := asFloat(v)
	if !ok || f < 0 || f != float64(int64(f)) {
		return nil, fmt.Errorf("must be an integer id")
	}
	id := int64(f)
	return &id, nil
}
