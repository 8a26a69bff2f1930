package pricelists

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilters narrows pricelist listings.
type ListFilters struct {
	VendorID int64
	Active   *bool
	Search   string
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Pricelist, int, error)
	Get(ctx context.Context, id int64) (Pricelist, []Line, error)
	Create(ctx context.Context, pl Pricelist, lines []Line) (Pricelist, error)
	Update(ctx context.Context, id int64, pl Pricelist) error
	ReplaceLines(ctx context.Context, id int64, lines []Line) error
	Delete(ctx context.Context, id int64) error

	GetTemplate(ctx context.Context, id int64) (Template, error)
	ListTemplates(ctx context.Context, pricelistID int64) ([]Template, error)
	CreateTemplate(ctx context.Context, tpl Template) (Template, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const pricelistColumns = `id, code, name, vendor_id, currency, valid_from, valid_to, active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Pricelist, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.VendorID > 0 {
		argCount++
		where += ` AND vendor_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.VendorID)
	}
	if filters.Active != nil {
		argCount++
		where += ` AND active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.Active)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pricelists`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + pricelistColumns + ` FROM pricelists` + where + ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Pricelist
	for rows.Next() {
		var pl Pricelist
		if err := scanPricelist(rows, &pl); err != nil {
			return nil, 0, err
		}
		out = append(out, pl)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Pricelist, []Line, error) {
	var pl Pricelist
	err := scanPricelist(r.db.QueryRow(ctx, `SELECT `+pricelistColumns+` FROM pricelists WHERE id = $1`, id), &pl)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pricelist{}, nil, ErrNotFound
		}
		return Pricelist{}, nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, pricelist_id, product, unit, unit_price, discount_rate, tax_rate, min_qty
		FROM pricelist_lines WHERE pricelist_id = $1 ORDER BY product`, id)
	if err != nil {
		return Pricelist{}, nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.PricelistID, &l.Product, &l.Unit, &l.UnitPrice, &l.DiscountRate, &l.TaxRate, &l.MinQty); err != nil {
			return Pricelist{}, nil, err
		}
		lines = append(lines, l)
	}
	return pl, lines, rows.Err()
}

func (r *repository) Create(ctx context.Context, pl Pricelist, lines []Line) (Pricelist, error) {
	now := time.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Pricelist{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO pricelists (code, name, vendor_id, currency, valid_from, valid_to, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		pl.Code, pl.Name, pl.VendorID, pl.Currency, pl.ValidFrom, pl.ValidTo, pl.Active, now).Scan(&pl.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Pricelist{}, ErrDuplicate
		}
		return Pricelist{}, err
	}
	for _, line := range lines {
		_, err := tx.Exec(ctx, `INSERT INTO pricelist_lines (pricelist_id, product, unit, unit_price, discount_rate, tax_rate, min_qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pl.ID, line.Product, line.Unit, line.UnitPrice, line.DiscountRate, line.TaxRate, line.MinQty)
		if err != nil {
			return Pricelist{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Pricelist{}, err
	}
	pl.CreatedAt = now
	pl.UpdatedAt = now
	return pl, nil
}

func (r *repository) Update(ctx context.Context, id int64, pl Pricelist) error {
	tag, err := r.db.Exec(ctx, `UPDATE pricelists SET code = $1, name = $2, vendor_id = $3, currency = $4,
		valid_from = $5, valid_to = $6, active = $7, updated_at = $8 WHERE id = $9`,
		pl.Code, pl.Name, pl.VendorID, pl.Currency, pl.ValidFrom, pl.ValidTo, pl.Active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ReplaceLines(ctx context.Context, id int64, lines []Line) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM pricelist_lines WHERE pricelist_id = $1`, id); err != nil {
		return err
	}
	for _, line := range lines {
		_, err := tx.Exec(ctx, `INSERT INTO pricelist_lines (pricelist_id, product, unit, unit_price, discount_rate, tax_rate, min_qty)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, line.Product, line.Unit, line.UnitPrice, line.DiscountRate, line.TaxRate, line.MinQty)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pricelists WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetTemplate(ctx context.Context, id int64) (Template, error) {
	var tpl Template
	err := r.db.QueryRow(ctx, `SELECT id, name, description, pricelist_id, created_at, updated_at FROM pr_templates WHERE id = $1`, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.PricelistID, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, template_id, product, qty, unit FROM pr_template_lines WHERE template_id = $1 ORDER BY id`, id)
	if err != nil {
		return Template{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l TemplateLine
		if err := rows.Scan(&l.ID, &l.TemplateID, &l.Product, &l.Qty, &l.Unit); err != nil {
			return Template{}, err
		}
		tpl.Lines = append(tpl.Lines, l)
	}
	return tpl, rows.Err()
}

func (r *repository) ListTemplates(ctx context.Context, pricelistID int64) ([]Template, error) {
	query := `SELECT id, name, description, pricelist_id, created_at, updated_at FROM pr_templates`
	args := []interface{}{}
	if pricelistID > 0 {
		query += ` WHERE pricelist_id = $1`
		args = append(args, pricelistID)
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var tpl Template
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.PricelistID, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (r *repository) CreateTemplate(ctx context.Context, tpl Template) (Template, error) {
	now := time.Now()
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Template{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO pr_templates (name, description, pricelist_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		tpl.Name, tpl.Description, tpl.PricelistID, now).Scan(&tpl.ID)
	if err != nil {
		return Template{}, err
	}
	for i := range tpl.Lines {
		tpl.Lines[i].TemplateID = tpl.ID
		err := tx.QueryRow(ctx, `INSERT INTO pr_template_lines (template_id, product, qty, unit)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			tpl.ID, tpl.Lines[i].Product, tpl.Lines[i].Qty, tpl.Lines[i].Unit).Scan(&tpl.Lines[i].ID)
		if err != nil {
			return Template{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Template{}, err
	}
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return tpl, nil
}

func (r *repository) DeleteTemplate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pr_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPricelist(row pgx.Row, pl *Pricelist) error {
	return row.Scan(&pl.ID, &pl.Code, &pl.Name, &pl.VendorID, &pl.Currency,
		&pl.ValidFrom, &pl.ValidTo, &pl.Active, &pl.CreatedAt, &pl.UpdatedAt)
}
