package currencies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
)

type memoryCurrencyRepo struct {
	byCode map[string]Currency
	nextID int64
}

func newMemoryCurrencyRepo() *memoryCurrencyRepo {
	return &memoryCurrencyRepo{byCode: make(map[string]Currency)}
}

func (r *memoryCurrencyRepo) List(ctx context.Context) ([]Currency, error) {
	var out []Currency
	for _, c := range r.byCode {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryCurrencyRepo) GetByCode(ctx context.Context, code string) (Currency, error) {
	c, ok := r.byCode[code]
	if !ok {
		return Currency{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryCurrencyRepo) Create(ctx context.Context, c Currency) (Currency, error) {
	if _, ok := r.byCode[c.Code]; ok {
		return Currency{}, shared.ErrDuplicate
	}
	r.nextID++
	c.ID = r.nextID
	r.byCode[c.Code] = c
	return c, nil
}

func (r *memoryCurrencyRepo) UpdateRate(ctx context.Context, code string, rate float64) error {
	c, ok := r.byCode[code]
	if !ok {
		return shared.ErrNotFound
	}
	c.Rate = rate
	r.byCode[code] = c
	return nil
}

func TestCreateCurrency(t *testing.T) {
	svc := NewService(newMemoryCurrencyRepo())

	_, err := svc.Create(context.Background(), Currency{Code: "ZZZ", Name: "Nope", Rate: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Currency{Code: "EUR", Name: "Euro", Rate: 0})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Currency{Code: "USD", Name: "US Dollar", Rate: 2, IsBase: true})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.Create(context.Background(), Currency{Code: "eur", Name: "Euro", Rate: 1.1})
	require.NoError(t, err)
	require.Equal(t, "EUR", created.Code)
}

func TestUpdateRate(t *testing.T) {
	repo := newMemoryCurrencyRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Currency{Code: "USD", Name: "US Dollar", Rate: 1, IsBase: true})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Currency{Code: "EUR", Name: "Euro", Rate: 1.1})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRate(context.Background(), "EUR", 1.2))
	got, err := svc.GetByCode(context.Background(), "EUR")
	require.NoError(t, err)
	require.Equal(t, 1.2, got.Rate)

	// The base currency rate stays pinned at 1.
	require.ErrorIs(t, svc.UpdateRate(context.Background(), "USD", 1.5), shared.ErrValidation)
	require.ErrorIs(t, svc.UpdateRate(context.Background(), "JPY", 150), shared.ErrNotFound)
}
