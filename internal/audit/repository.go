package audit

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit timeline rows.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
	All(ctx context.Context, filters TimelineFilters) ([]Entry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a pgx-backed audit repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const baseQuery = `SELECT a.occurred_at, COALESCE(u.name, ''), a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
WHERE 1=1`

func buildFilters(filters TimelineFilters) (string, []interface{}) {
	clause := ""
	args := []interface{}{}

	if !filters.From.IsZero() {
		args = append(args, filters.From)
		clause += ` AND a.occurred_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		clause += ` AND a.occurred_at <= $` + strconv.Itoa(len(args))
	}
	if filters.Actor != "" {
		args = append(args, "%"+filters.Actor+"%")
		clause += ` AND u.name ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.Entity != "" {
		args = append(args, filters.Entity)
		clause += ` AND a.entity = $` + strconv.Itoa(len(args))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		clause += ` AND a.action = $` + strconv.Itoa(len(args))
	}
	return clause, args
}

func (r *repository) Window(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	clause, args := buildFilters(filters)
	args = append(args, limit)
	query := baseQuery + clause + ` ORDER BY a.occurred_at DESC LIMIT $` + strconv.Itoa(len(args))
	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))
	return r.scan(ctx, query, args)
}

func (r *repository) All(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	clause, args := buildFilters(filters)
	query := baseQuery + clause + ` ORDER BY a.occurred_at DESC`
	return r.scan(ctx, query, args)
}

func (r *repository) scan(ctx context.Context, query string, args []interface{}) ([]Entry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.At, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Meta); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
