package pricelists

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryPricelistRepo struct {
	pricelists map[int64]Pricelist
	lines      map[int64][]Line
	templates  map[int64]Template
	nextID     int64
	getCalls   int
}

func newMemoryPricelistRepo() *memoryPricelistRepo {
	return &memoryPricelistRepo{
		pricelists: make(map[int64]Pricelist),
		lines:      make(map[int64][]Line),
		templates:  make(map[int64]Template),
	}
}

func (r *memoryPricelistRepo) List(ctx context.Context, filters ListFilters) ([]Pricelist, int, error) {
	var out []Pricelist
	for _, pl := range r.pricelists {
		if filters.VendorID > 0 && pl.VendorID != filters.VendorID {
			continue
		}
		out = append(out, pl)
	}
	return out, len(out), nil
}

func (r *memoryPricelistRepo) Get(ctx context.Context, id int64) (Pricelist, []Line, error) {
	r.getCalls++
	pl, ok := r.pricelists[id]
	if !ok {
		return Pricelist{}, nil, ErrNotFound
	}
	return pl, append([]Line(nil), r.lines[id]...), nil
}

func (r *memoryPricelistRepo) Create(ctx context.Context, pl Pricelist, lines []Line) (Pricelist, error) {
	for _, existing := range r.pricelists {
		if existing.Code == pl.Code {
			return Pricelist{}, ErrDuplicate
		}
	}
	r.nextID++
	pl.ID = r.nextID
	r.pricelists[pl.ID] = pl
	for i := range lines {
		r.nextID++
		lines[i].ID = r.nextID
		lines[i].PricelistID = pl.ID
	}
	r.lines[pl.ID] = lines
	return pl, nil
}

func (r *memoryPricelistRepo) Update(ctx context.Context, id int64, pl Pricelist) error {
	if _, ok := r.pricelists[id]; !ok {
		return ErrNotFound
	}
	pl.ID = id
	r.pricelists[id] = pl
	return nil
}

func (r *memoryPricelistRepo) ReplaceLines(ctx context.Context, id int64, lines []Line) error {
	if _, ok := r.pricelists[id]; !ok {
		return ErrNotFound
	}
	r.lines[id] = lines
	return nil
}

func (r *memoryPricelistRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.pricelists[id]; !ok {
		return ErrNotFound
	}
	delete(r.pricelists, id)
	delete(r.lines, id)
	return nil
}

func (r *memoryPricelistRepo) GetTemplate(ctx context.Context, id int64) (Template, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return Template{}, ErrNotFound
	}
	return tpl, nil
}

func (r *memoryPricelistRepo) ListTemplates(ctx context.Context, pricelistID int64) ([]Template, error) {
	var out []Template
	for _, tpl := range r.templates {
		if pricelistID > 0 && tpl.PricelistID != pricelistID {
			continue
		}
		out = append(out, tpl)
	}
	return out, nil
}

func (r *memoryPricelistRepo) CreateTemplate(ctx context.Context, tpl Template) (Template, error) {
	r.nextID++
	tpl.ID = r.nextID
	r.templates[tpl.ID] = tpl
	return tpl, nil
}

func (r *memoryPricelistRepo) DeleteTemplate(ctx context.Context, id int64) error {
	if _, ok := r.templates[id]; !ok {
		return ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func samplePricelist() (Pricelist, []Line) {
	pl := Pricelist{
		Code:      "PL-2026",
		Name:      "Office supplies 2026",
		VendorID:  1,
		Currency:  "USD",
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	lines := []Line{
		{Product: "Paper A4", Unit: "box", UnitPrice: 25, DiscountRate: 0.05, TaxRate: 0.07},
		{Product: "Toner", Unit: "pcs", UnitPrice: 80},
	}
	return pl, lines
}

func TestCreatePricelistValidation(t *testing.T) {
	svc := NewService(newMemoryPricelistRepo(), nil)

	pl, lines := samplePricelist()
	pl.Currency = "DOLLARS"
	_, err := svc.Create(context.Background(), pl, lines)
	require.ErrorIs(t, err, ErrValidation)

	pl, lines = samplePricelist()
	pl.ValidTo = pl.ValidFrom.AddDate(0, 0, -1)
	_, err = svc.Create(context.Background(), pl, lines)
	require.ErrorIs(t, err, ErrValidation)

	pl, lines = samplePricelist()
	created, err := svc.Create(context.Background(), pl, lines)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestGetUsesCache(t *testing.T) {
	repo := newMemoryPricelistRepo()
	cache, _ := testCache(t)
	svc := NewService(repo, cache)

	pl, lines := samplePricelist()
	created, err := svc.Create(context.Background(), pl, lines)
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	_, gotLines, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, gotLines, 2)
	require.Equal(t, 1, repo.getCalls)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	repo := newMemoryPricelistRepo()
	cache, _ := testCache(t)
	svc := NewService(repo, cache)

	pl, lines := samplePricelist()
	created, err := svc.Create(context.Background(), pl, lines)
	require.NoError(t, err)

	_, _, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err)

	created.Name = "Office supplies 2026 rev2"
	require.NoError(t, svc.Update(context.Background(), created.ID, created))

	got, _, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Office supplies 2026 rev2", got.Name)
	require.Equal(t, 2, repo.getCalls)
}

func TestResolveLine(t *testing.T) {
	repo := newMemoryPricelistRepo()
	svc := NewService(repo, nil)

	pl, lines := samplePricelist()
	created, err := svc.Create(context.Background(), pl, lines)
	require.NoError(t, err)

	line, err := svc.ResolveLine(context.Background(), created.ID, "paper a4", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, float64(25), line.UnitPrice)

	_, err = svc.ResolveLine(context.Background(), created.ID, "Stapler", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrNotFound)

	// Before the validity window.
	_, err = svc.ResolveLine(context.Background(), created.ID, "Paper A4", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrExpired)
}

func TestTemplates(t *testing.T) {
	repo := newMemoryPricelistRepo()
	svc := NewService(repo, nil)

	pl, lines := samplePricelist()
	created, err := svc.Create(context.Background(), pl, lines)
	require.NoError(t, err)

	_, err = svc.CreateTemplate(context.Background(), Template{PricelistID: created.ID})
	require.ErrorIs(t, err, ErrValidation)

	tpl, err := svc.CreateTemplate(context.Background(), Template{
		Name:        "Monthly office order",
		PricelistID: created.ID,
		Lines:       []TemplateLine{{Product: "Paper A4", Qty: 10, Unit: "box"}},
	})
	require.NoError(t, err)
	require.NotZero(t, tpl.ID)

	listed, err := svc.ListTemplates(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, svc.DeleteTemplate(context.Background(), tpl.ID))
	_, err = svc.GetTemplate(context.Background(), tpl.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
