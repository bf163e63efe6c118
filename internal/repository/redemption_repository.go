package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
	"github.com/fairyhunter13/event-coupon-ledger/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by RedemptionRepository.
type RedemptionPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for redemptions using pgx.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Insert inserts a redemption record within a transaction.
// Returns service.ErrAlreadyRedeemed if the registration already redeemed this coupon.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, redemption *model.Redemption) error {
	query := `INSERT INTO redemptions (id, coupon_id, registration_id, discount, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.Exec(ctx, query,
		redemption.ID,
		redemption.CouponID,
		redemption.RegistrationID,
		redemption.Discount,
		redemption.RedeemedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrAlreadyRedeemed
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// ListByCoupon returns the redemptions of a coupon, oldest first.
// On success, returns an empty slice (not nil) when there are none.
func (r *RedemptionRepository) ListByCoupon(ctx context.Context, couponID uuid.UUID) ([]model.Redemption, error) {
	query := `SELECT r.id, r.coupon_id, c.code, r.registration_id, r.discount, r.redeemed_at
		FROM redemptions r
		JOIN coupons c ON c.id = r.coupon_id
		WHERE r.coupon_id = $1
		ORDER BY r.redeemed_at, r.id`

	rows, err := r.pool.Query(ctx, query, couponID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions for coupon %s: %w", couponID, err)
	}
	defer rows.Close()

	redemptions := []model.Redemption{}
	for rows.Next() {
		var rd model.Redemption
		if err := rows.Scan(&rd.ID, &rd.CouponID, &rd.CouponCode, &rd.RegistrationID, &rd.Discount, &rd.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}

	return redemptions, nil
}
