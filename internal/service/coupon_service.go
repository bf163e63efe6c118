package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
	"github.com/fairyhunter13/event-coupon-ledger/pkg/database"
)

const (
	minDiscount = 1
	maxDiscount = 100
)

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, coupon *model.Coupon) error
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetCouponForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Coupon, error)
	IncrementRedemptions(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error
	Deactivate(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// RedemptionRepositoryInterface defines the interface for redemption data access.
type RedemptionRepositoryInterface interface {
	Insert(ctx context.Context, tx database.TxQuerier, redemption *model.Redemption) error
	ListByCoupon(ctx context.Context, couponID uuid.UUID) ([]model.Redemption, error)
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Invalidator is implemented by coupon repositories that keep a cached copy
// of coupons. The service calls it after every committed mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// Recorder receives ledger outcomes, typically for metrics.
type Recorder interface {
	CouponCreated(outcome string)
	CouponValidated(outcome string)
	CouponRedeemed(outcome string, discount int)
}

type nopRecorder struct{}

func (nopRecorder) CouponCreated(string)       {}
func (nopRecorder) CouponValidated(string)     {}
func (nopRecorder) CouponRedeemed(string, int) {}

// Option configures a CouponService.
type Option func(*CouponService)

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *CouponService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithDefaultMaxRedemptions sets the cap applied when a create request omits one.
// Zero means unlimited.
func WithDefaultMaxRedemptions(n int) Option {
	return func(s *CouponService) {
		if n >= 0 {
			s.defaultMaxRedemptions = n
		}
	}
}

// CouponService is the coupon ledger: it owns coupon definitions and enforces
// validity and redemption rules.
type CouponService struct {
	pool                  TxBeginner
	couponRepo            CouponRepositoryInterface
	redemptionRepo        RedemptionRepositoryInterface
	recorder              Recorder
	defaultMaxRedemptions int
}

// NewCouponService creates a new CouponService with the given pool and repositories.
// New coupons are single-use unless configured otherwise.
func NewCouponService(pool TxBeginner, couponRepo CouponRepositoryInterface, redemptionRepo RedemptionRepositoryInterface, opts ...Option) *CouponService {
	s := &CouponService{
		pool:                  pool,
		couponRepo:            couponRepo,
		redemptionRepo:        redemptionRepo,
		recorder:              nopRecorder{},
		defaultMaxRedemptions: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create provisions a new coupon.
// Returns ErrInvalidDiscount if the discount is outside 1..100,
// ErrInvalidCode for a blank code and ErrDuplicateCode if the code is taken.
func (s *CouponService) Create(ctx context.Context, req *model.CreateCouponRequest) (coupon *model.Coupon, err error) {
	defer func() { s.recorder.CouponCreated(Outcome(err)) }()

	if req == nil || req.Discount == nil || req.ExpiresAt == nil {
		return nil, ErrInvalidRequest
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrInvalidCode
	}
	if *req.Discount < minDiscount || *req.Discount > maxDiscount {
		return nil, ErrInvalidDiscount
	}

	maxRedemptions := s.defaultMaxRedemptions
	if req.MaxRedemptions != nil {
		if *req.MaxRedemptions < 0 {
			return nil, ErrInvalidRequest
		}
		maxRedemptions = *req.MaxRedemptions
	}

	coupon = &model.Coupon{
		ID:             uuid.New(),
		Code:           req.Code,
		Discount:       *req.Discount,
		ExpiresAt:      req.ExpiresAt.UTC(),
		MaxRedemptions: maxRedemptions,
		Active:         true,
	}
	if err := s.couponRepo.Insert(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Lookup retrieves a coupon by code.
// Returns ErrNotFound if the coupon doesn't exist.
func (s *CouponService) Lookup(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrNotFound
	}
	return coupon, nil
}

// Validate reports whether the coupon is redeemable at the given time.
// It does not lock or mutate anything; Redeem re-checks under a row lock.
func (s *CouponService) Validate(ctx context.Context, code string, at time.Time) (v *model.Validation, err error) {
	defer func() { s.recorder.CouponValidated(Outcome(err)) }()

	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkRedeemable(coupon, at); err != nil {
		return nil, err
	}

	return &model.Validation{
		Code:      coupon.Code,
		Discount:  coupon.Discount,
		ExpiresAt: coupon.ExpiresAt,
		Remaining: coupon.Remaining(),
		CheckedAt: at,
	}, nil
}

// Redeem applies the coupon once and returns the redemption with the discount to apply.
func (s *CouponService) Redeem(ctx context.Context, code string, at time.Time) (*model.Redemption, error) {
	return s.RedeemFor(ctx, code, "", at)
}

// RedeemFor atomically redeems a coupon on behalf of a registration.
// Uses SELECT FOR UPDATE to lock the coupon row during the transaction.
// An empty registrationID is replaced by a generated one, so only the cap applies.
// Returns:
//   - ErrNotFound if the coupon doesn't exist
//   - ErrInactive if the coupon was deactivated
//   - ErrExpired if at is after the expiration date
//   - ErrAlreadyRedeemed if the cap is reached or the registration already redeemed it
func (s *CouponService) RedeemFor(ctx context.Context, code, registrationID string, at time.Time) (redemption *model.Redemption, err error) {
	discount := 0
	defer func() { s.recorder.CouponRedeemed(Outcome(err), discount) }()

	if registrationID == "" {
		registrationID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op once committed

	// 1. Lock the coupon row
	coupon, err := s.couponRepo.GetCouponForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get coupon for update: %w", err)
	}

	// 2. Check the rules against the locked state
	if err := checkRedeemable(coupon, at); err != nil {
		return nil, err
	}

	// 3. Record the redemption (UNIQUE constraint catches repeats per registration)
	redemption = &model.Redemption{
		ID:             uuid.New(),
		CouponID:       coupon.ID,
		CouponCode:     coupon.Code,
		RegistrationID: registrationID,
		Discount:       coupon.Discount,
		RedeemedAt:     at.UTC(),
	}
	if err := s.redemptionRepo.Insert(ctx, tx, redemption); err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	// 4. Bump the counter
	if err := s.couponRepo.IncrementRedemptions(ctx, tx, coupon.ID); err != nil {
		return nil, fmt.Errorf("increment redemptions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	s.invalidate(ctx, code)
	discount = redemption.Discount
	return redemption, nil
}

// Redemptions lists the redemptions of a coupon, oldest first.
func (s *CouponService) Redemptions(ctx context.Context, code string) ([]model.Redemption, error) {
	coupon, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	redemptions, err := s.redemptionRepo.ListByCoupon(ctx, coupon.ID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}

// Deactivate marks a coupon as no longer redeemable.
func (s *CouponService) Deactivate(ctx context.Context, code string) error {
	if err := s.couponRepo.Deactivate(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// Delete removes a coupon together with its redemption history.
func (s *CouponService) Delete(ctx context.Context, code string) error {
	if err := s.couponRepo.Delete(ctx, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

func (s *CouponService) invalidate(ctx context.Context, code string) {
	inv, ok := s.couponRepo.(Invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, code); err != nil {
		log.Warn().Err(err).Str("coupon_code", code).Msg("failed to invalidate cached coupon")
	}
}

// checkRedeemable applies the redemption rules in order:
// active, then expiration, then the redemption cap.
func checkRedeemable(c *model.Coupon, at time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if at.After(c.ExpiresAt) {
		return ErrExpired
	}
	if !c.Unlimited() && c.TimesRedeemed >= c.MaxRedemptions {
		return ErrAlreadyRedeemed
	}
	return nil
}
