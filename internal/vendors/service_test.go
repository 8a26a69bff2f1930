package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
)

type memoryVendorRepo struct {
	vendors map[int64]Vendor
	nextID  int64
}

func newMemoryVendorRepo() *memoryVendorRepo {
	return &memoryVendorRepo{vendors: make(map[int64]Vendor)}
}

func (r *memoryVendorRepo) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	var out []Vendor
	for _, v := range r.vendors {
		if filters.IsActive != nil && v.Active != *filters.IsActive {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (r *memoryVendorRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (r *memoryVendorRepo) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	for _, v := range r.vendors {
		if v.Code == vendor.Code {
			return Vendor{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	vendor.ID = r.nextID
	r.vendors[vendor.ID] = vendor
	return vendor, nil
}

func (r *memoryVendorRepo) Update(ctx context.Context, id int64, vendor Vendor) error {
	if _, ok := r.vendors[id]; !ok {
		return shared.ErrNotFound
	}
	vendor.ID = id
	r.vendors[id] = vendor
	return nil
}

func (r *memoryVendorRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.vendors[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.vendors, id)
	return nil
}

func TestCreateVendorValidation(t *testing.T) {
	svc := NewService(newMemoryVendorRepo())

	_, err := svc.Create(context.Background(), Vendor{Name: "Acme"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Vendor{Code: "V001", Name: "Acme", Email: "not-an-email"})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.Create(context.Background(), Vendor{Code: "V001", Name: "Acme", Email: "sales@acme.test", Active: true})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	_, err = svc.Create(context.Background(), Vendor{Code: "V001", Name: "Acme Again"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestDeactivateVendor(t *testing.T) {
	repo := newMemoryVendorRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Vendor{Code: "V002", Name: "Globex", Active: true})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), created.ID))

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.False(t, got.Active)

	require.ErrorIs(t, svc.Deactivate(context.Background(), created.ID), shared.ErrValidation)
}

func TestListVendorsActiveFilter(t *testing.T) {
	repo := newMemoryVendorRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Vendor{Code: "V003", Name: "Initech", Active: true})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Vendor{Code: "V004", Name: "Umbrella", Active: false})
	require.NoError(t, err)

	active := true
	vendors, total, err := svc.List(context.Background(), shared.ListFilters{IsActive: &active})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Initech", vendors[0].Name)
}

func TestGetVendorInvalidID(t *testing.T) {
	svc := NewService(newMemoryVendorRepo())
	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
