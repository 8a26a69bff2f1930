package vendors

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	vendor.Code = strings.TrimSpace(vendor.Code)
	vendor.Name = strings.TrimSpace(vendor.Name)
	if err := s.validateVendor(vendor); err != nil {
		return Vendor{}, err
	}
	return s.repo.Create(ctx, vendor)
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	vendor.Code = strings.TrimSpace(vendor.Code)
	vendor.Name = strings.TrimSpace(vendor.Name)
	if err := s.validateVendor(vendor); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, vendor)
}

// Deactivate keeps the vendor on file but hides it from sourcing. Lines
// already pointing at it are untouched.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	vendor, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !vendor.Active {
		return fmt.Errorf("%w: vendor already inactive", shared.ErrValidation)
	}
	vendor.Active = false
	return s.repo.Update(ctx, id, vendor)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
