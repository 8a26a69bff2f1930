package vendors

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
)

var validate = validator.New()

func (s *Service) validateVendor(v Vendor) error {
	if err := validate.Struct(v); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("%w: %s %s", shared.ErrValidation, errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}
