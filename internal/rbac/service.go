package rbac

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service resolves user roles and their capability buckets.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// ListRoles returns all roles ordered by display name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, display_name, description, created_at, updated_at FROM roles ORDER BY display_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `SELECT id, display_name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.DisplayName, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, displayName, description string) (Role, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	now := time.Now()
	role := Role{DisplayName: displayName, Description: strings.TrimSpace(description), CreatedAt: now, UpdatedAt: now}
	err := s.pool.QueryRow(ctx, `INSERT INTO roles (display_name, description, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING id`,
		role.DisplayName, role.Description, now).Scan(&role.ID)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// AssignRole assigns a role to the given user, replacing any prior one.
// A user carries exactly one role; the capability bucket follows from it.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id`, userID, roleID)
	return err
}

// RoleForUser returns the display name of the user's assigned role.
func (s *Service) RoleForUser(ctx context.Context, userID int64) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT r.display_name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = $1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}

// CapabilityForUser maps the user's role display name into a capability
// bucket. A user without a role resolves to the unknown capability, which
// every downstream check treats as denied.
func (s *Service) CapabilityForUser(ctx context.Context, userID int64) (permissions.Capability, error) {
	name, err := s.RoleForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return permissions.CapabilityUnknown, nil
		}
		return permissions.CapabilityUnknown, err
	}
	return permissions.FromDisplayName(name), nil
}
