package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound signals the user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrDuplicate signals the email is already taken.
	ErrDuplicate = errors.New("users: duplicate email")
	// ErrValidation signals invalid input.
	ErrValidation = errors.New("users: validation failed")
)

// User is the admin-facing account view. The password hash never leaves
// the package.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Role       string    `json:"role,omitempty"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateInput carries the fields needed to provision an account.
type CreateInput struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required,max=120"`
	Department string `json:"department" validate:"omitempty,max=120"`
	Password   string `json:"password" validate:"required,min=8"`
}
