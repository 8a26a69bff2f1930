package currencies

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-procure/meridian-procure/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Currency, error)
	GetByCode(ctx context.Context, code string) (Currency, error)
	Create(ctx context.Context, c Currency) (Currency, error)
	UpdateRate(ctx context.Context, code string, rate float64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context) ([]Currency, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, rate, is_base, created_at, updated_at FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Currency
	for rows.Next() {
		var c Currency
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.IsBase, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, code string) (Currency, error) {
	var c Currency
	err := r.db.QueryRow(ctx, `SELECT id, code, name, rate, is_base, created_at, updated_at FROM currencies WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.IsBase, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Currency{}, shared.ErrNotFound
		}
		return Currency{}, err
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, c Currency) (Currency, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO currencies (code, name, rate, is_base, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		c.Code, c.Name, c.Rate, c.IsBase, now).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Currency{}, shared.ErrDuplicate
		}
		return Currency{}, err
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *repository) UpdateRate(ctx context.Context, code string, rate float64) error {
	tag, err := r.db.Exec(ctx, `UPDATE currencies SET rate = $1, updated_at = $2 WHERE code = $3`, rate, time.Now(), code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
