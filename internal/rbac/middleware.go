package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/shared"
)

// Resolver is what the middleware needs from the role service.
type Resolver interface {
	RoleForUser(ctx context.Context, userID int64) (string, error)
	CapabilityForUser(ctx context.Context, userID int64) (permissions.Capability, error)
}

// Middleware wires role based authorization helpers for HTTP handlers.
type Middleware struct {
	Service Resolver
	Logger  *slog.Logger
}

type actorContextKey struct{}

// Actor is the resolved identity attached to the request context.
type Actor struct {
	UserID     int64
	Role       string
	Capability permissions.Capability
}

// ActorFromContext extracts the resolved actor, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// RequireUser ensures a logged-in user and attaches the resolved actor to
// the request context.
func (m Middleware) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.resolveActor(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorContextKey{}, actor)))
		})
	}
}

// RequireAny ensures the current user's capability matches at least one of
// the given buckets.
func (m Middleware) RequireAny(caps ...permissions.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.resolveActor(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, c := range caps {
				if actor.Capability == c {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorContextKey{}, actor)))
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) resolveActor(r *http.Request) (Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Actor{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Actor{}, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return Actor{}, false
	}
	role, err := m.Service.RoleForUser(r.Context(), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if m.Logger != nil {
			m.Logger.Error("rbac resolve role", slog.Any("error", err))
		}
		return Actor{}, false
	}
	return Actor{UserID: userID, Role: role, Capability: permissions.FromDisplayName(role)}, true
}
