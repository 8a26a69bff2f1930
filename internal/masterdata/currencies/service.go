package currencies

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
	"github.com/meridian-procure/meridian-procure/internal/pricing"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Currency, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Currency, error) {
	code = normalizeCode(code)
	if code == "" {
		return Currency{}, fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) Create(ctx context.Context, c Currency) (Currency, error) {
	c.Code = normalizeCode(c.Code)
	if c.Code == "" {
		return Currency{}, fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if !pricing.ValidCurrency(c.Code) {
		return Currency{}, fmt.Errorf("%w: unknown ISO code %q", shared.ErrValidation, c.Code)
	}
	if c.Rate <= 0 {
		return Currency{}, fmt.Errorf("%w: rate must be positive", shared.ErrValidation)
	}
	if c.IsBase && c.Rate != 1 {
		return Currency{}, fmt.Errorf("%w: base currency rate must be 1", shared.ErrValidation)
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) UpdateRate(ctx context.Context, code string, rate float64) error {
	code = normalizeCode(code)
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", shared.ErrValidation)
	}
	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if existing.IsBase {
		return fmt.Errorf("%w: base currency rate is fixed", shared.ErrValidation)
	}
	return s.repo.UpdateRate(ctx, code, rate)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
