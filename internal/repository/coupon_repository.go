package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
	"github.com/fairyhunter13/event-coupon-ledger/pkg/database"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

const couponColumns = `id, code, discount, expires_at, max_redemptions, times_redeemed, active, created_at`

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
// Accepts *pgxpool.Pool in production and a mock in tests.
func NewCouponRepository(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Insert inserts a new coupon into the database.
// Returns service.ErrDuplicateCode if a coupon with the same code already exists.
func (r *CouponRepository) Insert(ctx context.Context, coupon *model.Coupon) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (id, code, discount, expires_at, max_redemptions, times_redeemed, active)
		 VALUES ($1, $2, $3, $4, $5, 0, TRUE)
		 RETURNING created_at`,
		coupon.ID, coupon.Code, coupon.Discount, coupon.ExpiresAt, coupon.MaxRedemptions,
	).Scan(&coupon.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrDuplicateCode
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetByCode retrieves a coupon by its code.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by code %s: %w", code, err)
	}
	return coupon, nil
}

// GetCouponForUpdate retrieves a coupon with a row lock (SELECT FOR UPDATE).
// This locks the row until the transaction completes.
// Returns service.ErrNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetCouponForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`

	coupon, err := scanCoupon(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("get coupon for update %s: %w", code, err)
	}
	return coupon, nil
}

// IncrementRedemptions bumps times_redeemed by one.
// Must be called within a transaction after locking the row.
func (r *CouponRepository) IncrementRedemptions(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error {
	query := `UPDATE coupons SET times_redeemed = times_redeemed + 1 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment redemptions for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// Deactivate marks a coupon inactive.
// Returns service.ErrNotFound if no coupon has the code.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE coupons SET active = FALSE WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("deactivate coupon %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

// Delete removes a coupon. Redemptions are removed by ON DELETE CASCADE.
// Returns service.ErrNotFound if no coupon has the code.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete coupon %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var coupon model.Coupon
	err := row.Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.Discount,
		&coupon.ExpiresAt,
		&coupon.MaxRedemptions,
		&coupon.TimesRedeemed,
		&coupon.Active,
		&coupon.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
