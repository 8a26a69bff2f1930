package procurement

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-procure/meridian-procure/internal/workflow"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const requestColumns = `id, number, request_date, required_date, requestor_id, department, location, request_type, stage, cancelled, description, created_at, updated_at`

func scanRequest(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	var stage string
	err := row.Scan(&pr.ID, &pr.Number, &pr.RequestDate, &pr.RequiredDate, &pr.RequestorID,
		&pr.Department, &pr.Location, &pr.RequestType, &stage, &pr.Cancelled,
		&pr.Description, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRequest{}, ErrNotFound
		}
		return PurchaseRequest{}, err
	}
	pr.Stage = workflow.Stage(stage)
	return pr, nil
}

// GetRequest returns one request with its lines.
func (r *Repository) GetRequest(ctx context.Context, id int64) (PurchaseRequest, []PurchaseRequestItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_requests WHERE id = $1`, id)
	pr, err := scanRequest(row)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	items, err := r.listItems(ctx, pr.ID)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, items, nil
}

// GetRequestByNumber resolves a request by its document number.
func (r *Repository) GetRequestByNumber(ctx context.Context, number string) (PurchaseRequest, []PurchaseRequestItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM purchase_requests WHERE number = $1`, number)
	pr, err := scanRequest(row)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	items, err := r.listItems(ctx, pr.ID)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, items, nil
}

func (r *Repository) listItems(ctx context.Context, requestID int64) ([]PurchaseRequestItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, request_id, name, description,
		request_qty, request_unit, approved_qty, vendor_id, pricelist_id,
		currency, currency_rate, unit_price,
		discount_rate, discount_amount, discount_override,
		tax_type, tax_rate, tax_amount, tax_override,
		delivery_date, delivery_point, comment, status
		FROM purchase_request_items WHERE request_id = $1 ORDER BY id`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PurchaseRequestItem
	for rows.Next() {
		var it PurchaseRequestItem
		var status string
		err := rows.Scan(&it.ID, &it.RequestID, &it.Name, &it.Description,
			&it.RequestQty, &it.RequestUnit, &it.ApprovedQty, &it.VendorID, &it.PricelistID,
			&it.Currency, &it.CurrencyRate, &it.UnitPrice,
			&it.DiscountRate, &it.DiscountAmount, &it.DiscountOverride,
			&it.TaxType, &it.TaxRate, &it.TaxAmount, &it.TaxOverride,
			&it.DeliveryDate, &it.DeliveryPoint, &it.Comment, &status)
		if err != nil {
			return nil, err
		}
		it.Status = workflow.ItemStatus(status)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListRequests returns a filtered page plus the unpaged total.
func (r *Repository) ListRequests(ctx context.Context, limit, offset int, filters ListFilters) ([]PurchaseRequest, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Stage != "" {
		argCount++
		where += ` AND stage = $` + strconv.Itoa(argCount)
		args = append(args, filters.Stage)
	}
	if filters.Department != "" {
		argCount++
		where += ` AND department = $` + strconv.Itoa(argCount)
		args = append(args, filters.Department)
	}
	if filters.RequestorID > 0 {
		argCount++
		where += ` AND requestor_id = $` + strconv.Itoa(argCount)
		args = append(args, filters.RequestorID)
	}
	if filters.Status == "cancelled" {
		where += ` AND cancelled`
	} else if filters.Status != "" {
		where += ` AND NOT cancelled`
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (number ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requestColumns + ` FROM purchase_requests` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []PurchaseRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, pr)
	}
	return out, total, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "number " + dir
	case "required_date":
		return "required_date " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "request_date " + dir
	}
}

func (t *txRepo) CreateRequest(ctx context.Context, pr PurchaseRequest) (int64, error) {
	now := time.Now()
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_requests
		(number, request_date, required_date, requestor_id, department, location, request_type, stage, cancelled, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11) RETURNING id`,
		pr.Number, pr.RequestDate, pr.RequiredDate, pr.RequestorID, pr.Department,
		pr.Location, pr.RequestType, string(pr.Stage), pr.Cancelled, pr.Description, now).Scan(&id)
	return id, err
}

func (t *txRepo) InsertItem(ctx context.Context, item PurchaseRequestItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_request_items
		(request_id, name, description, request_qty, request_unit, approved_qty,
		 vendor_id, pricelist_id, currency, currency_rate, unit_price,
		 discount_rate, discount_amount, discount_override,
		 tax_type, tax_rate, tax_amount, tax_override,
		 delivery_date, delivery_point, comment, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING id`,
		item.RequestID, item.Name, item.Description, item.RequestQty, item.RequestUnit, item.ApprovedQty,
		item.VendorID, item.PricelistID, item.Currency, item.CurrencyRate, item.UnitPrice,
		item.DiscountRate, item.DiscountAmount, item.DiscountOverride,
		item.TaxType, item.TaxRate, item.TaxAmount, item.TaxOverride,
		item.DeliveryDate, item.DeliveryPoint, item.Comment, string(item.Status)).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item PurchaseRequestItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_request_items SET
		description = $1, request_qty = $2, request_unit = $3, approved_qty = $4,
		vendor_id = $5, pricelist_id = $6, currency = $7, currency_rate = $8, unit_price = $9,
		discount_rate = $10, discount_amount = $11, discount_override = $12,
		tax_type = $13, tax_rate = $14, tax_amount = $15, tax_override = $16,
		delivery_date = $17, delivery_point = $18, comment = $19
		WHERE id = $20`,
		item.Description, item.RequestQty, item.RequestUnit, item.ApprovedQty,
		item.VendorID, item.PricelistID, item.Currency, item.CurrencyRate, item.UnitPrice,
		item.DiscountRate, item.DiscountAmount, item.DiscountOverride,
		item.TaxType, item.TaxRate, item.TaxAmount, item.TaxOverride,
		item.DeliveryDate, item.DeliveryPoint, item.Comment, item.ID)
	return err
}

func (t *txRepo) UpdateItemStatus(ctx context.Context, itemID int64, status workflow.ItemStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_request_items SET status = $1 WHERE id = $2`, string(status), itemID)
	return err
}

func (t *txRepo) UpdateStage(ctx context.Context, requestID int64, stage workflow.Stage, cancelled bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_requests SET stage = $1, cancelled = $2, updated_at = $3 WHERE id = $4`,
		string(stage), cancelled, time.Now(), requestID)
	return err
}
