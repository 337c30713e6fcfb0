package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

var (
	ErrDiscountExists    = errors.New("repository: discount code already exists")
	ErrDiscountNotFound  = errors.New("repository: discount not found")
	ErrUsageLimitReached = errors.New("repository: discount usage limit reached")
)

const uniqueViolation pq.ErrorCode = "23505"

const discountColumns = `
	id, code, discount_type, value, scope, category, product_id,
	min_purchase_usd, max_discount_usd, usage_limit, usage_count,
	is_active, valid_from, valid_until, stackable, description,
	created_at, updated_at`

type DiscountRepo struct {
	db *sql.DB
}

func NewDiscountRepo(db *sql.DB) *DiscountRepo {
	return &DiscountRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDiscount reads one discounts row. Rows whose scope columns do not form
// a valid target are reported with models.ErrMalformed.
func scanDiscount(row rowScanner) (models.Discount, error) {
	var (
		d          models.Discount
		typ        string
		scope      string
		category   sql.NullString
		productID  sql.NullString
		usageLimit sql.NullInt64
		validFrom  sql.NullTime
		validUntil sql.NullTime
	)

	err := row.Scan(
		&d.ID,
		&d.Code,
		&typ,
		&d.Value,
		&scope,
		&category,
		&productID,
		&d.MinPurchaseUSD,
		&d.MaxDiscountUSD,
		&usageLimit,
		&d.UsageCount,
		&d.IsActive,
		&validFrom,
		&validUntil,
		&d.Stackable,
		&d.Description,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return models.Discount{}, err
	}

	d.Type = models.DiscountType(typ)
	target, err := models.ParseTarget(scope, category.String, productID.String)
	if err != nil {
		return models.Discount{}, fmt.Errorf("%w: discount %s: %v", models.ErrMalformed, d.Code, err)
	}
	d.Target = target
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		d.UsageLimit = &limit
	}
	if validFrom.Valid {
		t := validFrom.Time.UTC()
		d.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time.UTC()
		d.ValidUntil = &t
	}
	return d, nil
}

func collectDiscounts(rows *sql.Rows) ([]models.Discount, error) {
	defer rows.Close()

	var out []models.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			if errors.Is(err, models.ErrMalformed) {
				continue
			}
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByCodes loads the records for the given codes. Codes are normalized
// before the lookup; unknown codes are simply absent from the result.
func (r *DiscountRepo) GetByCodes(ctx context.Context, codes []string) ([]models.Discount, error) {
	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := models.NormalizeCode(c); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	query := `SELECT ` + discountColumns + ` FROM discounts WHERE code = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(normalized))
	if err != nil {
		return nil, fmt.Errorf("query discounts by code: %w", err)
	}
	return collectDiscounts(rows)
}

func (r *DiscountRepo) List(ctx context.Context, activeOnly bool) ([]models.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return collectDiscounts(rows)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r *DiscountRepo) Create(ctx context.Context, d models.Discount) (models.Discount, error) {
	d.Code = d.Key()

	var usageLimit sql.NullInt64
	if d.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: int64(*d.UsageLimit), Valid: true}
	}

	insert := `
		INSERT INTO discounts
		(code, discount_type, value, scope, category, product_id,
		 min_purchase_usd, max_discount_usd, usage_limit, usage_count,
		 is_active, valid_from, valid_until, stackable, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, insert,
		d.Code,
		string(d.Type),
		d.Value,
		string(d.Target.Scope()),
		nullString(d.Target.Category()),
		nullString(d.Target.ProductID()),
		d.MinPurchaseUSD,
		d.MaxDiscountUSD,
		usageLimit,
		d.UsageCount,
		d.IsActive,
		nullTime(d.ValidFrom),
		nullTime(d.ValidUntil),
		d.Stackable,
		d.Description,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Discount{}, fmt.Errorf("%w: %s", ErrDiscountExists, d.Code)
		}
		return models.Discount{}, fmt.Errorf("insert discount: %w", err)
	}
	return d, nil
}
