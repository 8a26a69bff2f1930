package pricelists

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Service orchestrates pricelist and template operations behind the cache.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService constructs the pricelists service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Pricelist, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	return s.repo.List(ctx, filters)
}

// Get reads through the cache.
func (s *Service) Get(ctx context.Context, id int64) (Pricelist, []Line, error) {
	if s.cache == nil {
		return s.repo.Get(ctx, id)
	}
	return s.cache.Get(ctx, id, func(ctx context.Context) (Pricelist, []Line, error) {
		return s.repo.Get(ctx, id)
	})
}

// ResolveLine finds the pricing defaults for a product on a pricelist,
// checking the validity window against the given date.
func (s *Service) ResolveLine(ctx context.Context, pricelistID int64, product string, on time.Time) (Line, error) {
	pl, lines, err := s.Get(ctx, pricelistID)
	if err != nil {
		return Line{}, err
	}
	if !pl.ValidOn(on) {
		return Line{}, ErrExpired
	}
	for _, line := range lines {
		if strings.EqualFold(line.Product, product) {
			return line, nil
		}
	}
	return Line{}, ErrNotFound
}

func (s *Service) Create(ctx context.Context, pl Pricelist, lines []Line) (Pricelist, error) {
	pl.Code = strings.TrimSpace(pl.Code)
	pl.Name = strings.TrimSpace(pl.Name)
	if err := s.validateAll(pl, lines); err != nil {
		return Pricelist{}, err
	}
	return s.repo.Create(ctx, pl, lines)
}

func (s *Service) Update(ctx context.Context, id int64, pl Pricelist) error {
	if err := s.validateAll(pl, nil); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, pl); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

func (s *Service) ReplaceLines(ctx context.Context, id int64, lines []Line) error {
	for _, line := range lines {
		if err := validate.Struct(line); err != nil {
			return wrapValidation(err)
		}
	}
	if err := s.repo.ReplaceLines(ctx, id, lines); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, pricelistID int64) ([]Template, error) {
	return s.repo.ListTemplates(ctx, pricelistID)
}

func (s *Service) CreateTemplate(ctx context.Context, tpl Template) (Template, error) {
	tpl.Name = strings.TrimSpace(tpl.Name)
	if err := validate.Struct(tpl); err != nil {
		return Template{}, wrapValidation(err)
	}
	for _, line := range tpl.Lines {
		if err := validate.Struct(line); err != nil {
			return Template{}, wrapValidation(err)
		}
	}
	return s.repo.CreateTemplate(ctx, tpl)
}

func (s *Service) DeleteTemplate(ctx context.Context, id int64) error {
	return s.repo.DeleteTemplate(ctx, id)
}

func (s *Service) validateAll(pl Pricelist, lines []Line) error {
	if err := validate.Struct(pl); err != nil {
		return wrapValidation(err)
	}
	if !pl.ValidTo.IsZero() && pl.ValidTo.Before(pl.ValidFrom) {
		return fmt.Errorf("%w: valid_to precedes valid_from", ErrValidation)
	}
	for _, line := range lines {
		if err := validate.Struct(line); err != nil {
			return wrapValidation(err)
		}
	}
	return nil
}

func wrapValidation(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return fmt.Errorf("%w: %s %s", ErrValidation, errs[0].Field(), errs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
