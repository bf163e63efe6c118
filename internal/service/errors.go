package service

import "errors"

var (
	// ErrInvalidDiscount is returned when a discount is outside 1..100
	ErrInvalidDiscount = errors.New("discount must be between 1 and 100")

	// ErrInvalidCode is returned when a coupon code is empty or blank
	ErrInvalidCode = errors.New("invalid coupon code")

	// ErrDuplicateCode is returned when attempting to create a coupon whose code already exists
	ErrDuplicateCode = errors.New("coupon code already exists")

	// ErrNotFound is returned when a coupon cannot be found
	ErrNotFound = errors.New("coupon not found")

	// ErrExpired is returned when a coupon is checked after its expiration date
	ErrExpired = errors.New("coupon expired")

	// ErrAlreadyRedeemed is returned when a coupon has no redemptions left
	// or the registration has already redeemed it
	ErrAlreadyRedeemed = errors.New("coupon already redeemed")

	// ErrInactive is returned when a coupon was deactivated by an administrator
	ErrInactive = errors.New("coupon inactive")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")
)

// Outcome returns a short label for err, used for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate"
	default:
		return "error"
	}
}
