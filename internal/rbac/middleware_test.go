package rbac

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
	"github.com/meridian-procure/meridian-procure/internal/shared"
)

type stubResolver struct {
	role string
	err  error
}

func (s stubResolver) RoleForUser(ctx context.Context, userID int64) (string, error) {
	return s.role, s.err
}

func (s stubResolver) CapabilityForUser(ctx context.Context, userID int64) (permissions.Capability, error) {
	return permissions.FromDisplayName(s.role), s.err
}

func sessionContext(t *testing.T, userID string) context.Context {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := shared.NewSessionManager(client, "meridian_session", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return shared.ContextWithSession(context.Background(), sess)
}

func testMiddleware(role string) Middleware {
	return Middleware{
		Service: stubResolver{role: role},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRequireUserAttachesActor(t *testing.T) {
	mw := testMiddleware("Purchasing Staff")

	var got Actor
	handler := mw.RequireUser()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		got = actor
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(sessionContext(t, "7"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, int64(7), got.UserID)
	require.Equal(t, "Purchasing Staff", got.Role)
	require.Equal(t, permissions.CapabilityPurchaser, got.Capability)
}

func TestRequireUserRejectsAnonymous(t *testing.T) {
	mw := testMiddleware("Requestor")

	handler := mw.RequireUser()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(sessionContext(t, ""))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAnyGatesByCapability(t *testing.T) {
	cases := []struct {
		name string
		role string
		want int
	}{
		{"approver allowed", "Department Manager", http.StatusOK},
		{"purchaser allowed", "Purchasing Staff", http.StatusOK},
		{"requestor denied", "Requestor", http.StatusForbidden},
		{"unknown role denied", "Janitor", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mw := testMiddleware(tc.role)
			handler := mw.RequireAny(permissions.CapabilityApprover, permissions.CapabilityPurchaser)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(sessionContext(t, "3"))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, tc.want, res.Code)
		})
	}
}

func TestResolveActorToleratesMissingRole(t *testing.T) {
	mw := Middleware{
		Service: stubResolver{err: ErrNotFound},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	handler := mw.RequireUser()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, permissions.CapabilityUnknown, actor.Capability)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(sessionContext(t, "9"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}
