package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-procure/meridian-procure/internal/auth"
)

var validate = validator.New()

// Service manages user accounts for administrators.
type Service struct {
	repo Repository
}

// NewService constructs a user admin service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every account with its assigned role.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a new active account. The password is stored only as
// a bcrypt hash.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return User{}, fmt.Errorf("%w: %s %s", ErrValidation, errs[0].Field(), errs[0].Tag())
		}
		return User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Name:       strings.TrimSpace(input.Name),
		Department: strings.TrimSpace(input.Department),
	}
	return s.repo.Create(ctx, user, hash)
}

// Deactivate disables an account without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables a previously disabled account.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}
