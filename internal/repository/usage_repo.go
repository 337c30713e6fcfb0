package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

type UsageRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db, now: time.Now}
}

// Lock the discount row and read its counters
func (r *UsageRepo) lockUsage(ctx context.Context, tx *sql.Tx, code string) (int, sql.NullInt64, error) {
	var (
		usageCount int
		usageLimit sql.NullInt64
	)

	query := `
		SELECT usage_count, usage_limit
		FROM discounts
		WHERE code = $1
		FOR UPDATE
	`

	err := tx.QueryRowContext(ctx, query, code).Scan(&usageCount, &usageLimit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.NullInt64{}, fmt.Errorf("%w: %s", ErrDiscountNotFound, code)
		}
		return 0, sql.NullInt64{}, err
	}
	return usageCount, usageLimit, nil
}

func (r *UsageRepo) incrementUsage(ctx context.Context, tx *sql.Tx, code string, at time.Time) error {
	query := `
		UPDATE discounts
		SET usage_count = usage_count + 1,
		    updated_at = $2
		WHERE code = $1
	`

	_, err := tx.ExecContext(ctx, query, code, at)
	return err
}

// recordRedemption reports false when the order already holds the code.
func (r *UsageRepo) recordRedemption(ctx context.Context, tx *sql.Tx, orderID, code string, amount decimal.Decimal, at time.Time) (bool, error) {
	insert := `
		INSERT INTO order_discounts (order_id, code, amount, redeemed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, code) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, insert, orderID, code, amount, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const (
	serializationFailure pq.ErrorCode = "40001"
	deadlockDetected     pq.ErrorCode = "40P01"
)

// maxRedeemAttempts bounds how often a redemption aborted by the database
// for a transient conflict is replayed.
const maxRedeemAttempts = 3

// isTransientTxError reports whether PostgreSQL aborted the transaction for a
// conflict that a fresh attempt can resolve.
func isTransientTxError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
}

// Redeem stores the applied discounts on the order and bumps each code's
// usage counter exactly once per order, in one read committed transaction.
// Limits are re-checked under row locks, so a checkout that waited on a lock
// sees the counter the other one committed; if a code was exhausted
// meanwhile the whole redemption is rolled back with ErrUsageLimitReached.
// It returns the codes that were newly redeemed.
func (r *UsageRepo) Redeem(ctx context.Context, orderID string, applied []models.AppliedDiscount) ([]string, error) {
	// lock rows in a stable order so concurrent redemptions cannot deadlock
	ordered := make([]models.AppliedDiscount, len(applied))
	copy(ordered, applied)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Key() < ordered[j].Key() })

	var err error
	for attempt := 1; attempt <= maxRedeemAttempts; attempt++ {
		var redeemed []string
		redeemed, err = r.redeemOnce(ctx, orderID, ordered)
		if err == nil || !isTransientTxError(err) || ctx.Err() != nil {
			return redeemed, err
		}
	}
	return nil, err
}

func (r *UsageRepo) redeemOnce(ctx context.Context, orderID string, ordered []models.AppliedDiscount) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := r.now().UTC()
	var redeemed []string
	for _, a := range ordered {
		code := a.Key()

		usageCount, usageLimit, err := r.lockUsage(ctx, tx, code)
		if err != nil {
			return nil, fmt.Errorf("lock usage %s: %w", code, err)
		}

		inserted, err := r.recordRedemption(ctx, tx, orderID, code, a.AppliedAmount, now)
		if err != nil {
			return nil, fmt.Errorf("record redemption %s: %w", code, err)
		}
		if !inserted {
			continue
		}

		if usageLimit.Valid && int64(usageCount) >= usageLimit.Int64 {
			return nil, fmt.Errorf("%w: %s", ErrUsageLimitReached, code)
		}
		if err := r.incrementUsage(ctx, tx, code, now); err != nil {
			return nil, fmt.Errorf("increment usage %s: %w", code, err)
		}
		redeemed = append(redeemed, code)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tx commit: %w", err)
	}
	committed = true
	return redeemed, nil
}

// RedeemedCodes lists the codes already stored on an order.
func (r *UsageRepo) RedeemedCodes(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code FROM order_discounts WHERE order_id = $1 ORDER BY code`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
