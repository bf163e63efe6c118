package model

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a percentage discount code redeemable against an event registration.
type Coupon struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	Discount       int       `json:"discount"` // percentage, 1..100
	ExpiresAt      time.Time `json:"expires_at"`
	MaxRedemptions int       `json:"max_redemptions"` // 0 means unlimited
	TimesRedeemed  int       `json:"times_redeemed"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"-"`
}

// Unlimited reports whether the coupon has no redemption cap.
func (c *Coupon) Unlimited() bool {
	return c.MaxRedemptions == 0
}

// Remaining returns the number of redemptions left, or -1 when unlimited.
func (c *Coupon) Remaining() int {
	if c.Unlimited() {
		return -1
	}
	if left := c.MaxRedemptions - c.TimesRedeemed; left > 0 {
		return left
	}
	return 0
}

// Apply returns the discount in cents for a price in cents, rounded down.
func (c *Coupon) Apply(priceCents int64) int64 {
	if priceCents <= 0 {
		return 0
	}
	return priceCents * int64(c.Discount) / 100
}

// Redemption records one successful application of a coupon.
type Redemption struct {
	ID             uuid.UUID `json:"id"`
	CouponID       uuid.UUID `json:"coupon_id"`
	CouponCode     string    `json:"coupon_code"`
	RegistrationID string    `json:"registration_id"`
	Discount       int       `json:"discount"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}

// CouponResponse is the API response DTO for coupon lookups.
type CouponResponse struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	Discount       int       `json:"discount"`
	ExpiresAt      time.Time `json:"expires_at"`
	MaxRedemptions int       `json:"max_redemptions"`
	TimesRedeemed  int       `json:"times_redeemed"`
	Active         bool      `json:"active"`
}

// NewCouponResponse builds the API view of a coupon.
func NewCouponResponse(c *Coupon) *CouponResponse {
	return &CouponResponse{
		ID:             c.ID,
		Code:           c.Code,
		Discount:       c.Discount,
		ExpiresAt:      c.ExpiresAt,
		MaxRedemptions: c.MaxRedemptions,
		TimesRedeemed:  c.TimesRedeemed,
		Active:         c.Active,
	}
}

// Validation is the result of a successful redeemability check.
type Validation struct {
	Code      string    `json:"code"`
	Discount  int       `json:"discount"`
	ExpiresAt time.Time `json:"expires_at"`
	Remaining int       `json:"remaining"` // -1 when unlimited
	CheckedAt time.Time `json:"checked_at"`
}

// CreateCouponRequest is the DTO for creating a coupon.
type CreateCouponRequest struct {
	Code           string     `json:"code" validate:"required,notblank,couponcode,max=255"`
	Discount       *int       `json:"discount" validate:"required,gte=1,lte=100"`
	ExpiresAt      *time.Time `json:"expires_at" validate:"required"`
	MaxRedemptions *int       `json:"max_redemptions" validate:"omitempty,gte=0"`
}

// RedeemCouponRequest is the DTO for redeeming a coupon.
type RedeemCouponRequest struct {
	RegistrationID string `json:"registration_id" validate:"omitempty,notblank,max=255"`
}
