package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}, hashes: map[int64]string{}, nextID: 1}
}

func (m *memoryRepo) List(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Create(ctx context.Context, u User, passwordHash string) (User, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicate
		}
	}
	u.ID = m.nextID
	u.IsActive = true
	m.nextID++
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	return u, nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	user, err := service.Create(context.Background(), CreateInput{
		Email:      "Buyer@Example.COM",
		Name:       "Dana Fields",
		Department: "Purchasing",
		Password:   "opensesame1",
	})
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", user.Email)
	require.True(t, user.IsActive)

	hash := repo.hashes[user.ID]
	require.NotEqual(t, "opensesame1", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("opensesame1")))
}

func TestCreateValidation(t *testing.T) {
	service := NewService(newMemoryRepo())

	_, err := service.Create(context.Background(), CreateInput{Email: "not-an-email", Name: "X", Password: "longenough"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = service.Create(context.Background(), CreateInput{Email: "ok@example.com", Name: "X", Password: "short"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateDuplicateEmail(t *testing.T) {
	service := NewService(newMemoryRepo())
	input := CreateInput{Email: "dup@example.com", Name: "First", Password: "password1"}

	_, err := service.Create(context.Background(), input)
	require.NoError(t, err)

	input.Name = "Second"
	_, err = service.Create(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestDeactivateAndActivate(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	user, err := service.Create(context.Background(), CreateInput{Email: "a@example.com", Name: "A", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(context.Background(), user.ID))
	got, err := service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	require.NoError(t, service.Activate(context.Background(), user.ID))
	got, err = service.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	require.ErrorIs(t, service.Deactivate(context.Background(), 999), ErrNotFound)
}
