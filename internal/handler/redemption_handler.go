package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
)

// RedemptionServiceInterface defines the operations used by the registration flow.
type RedemptionServiceInterface interface {
	Validate(ctx context.Context, code string, at time.Time) (*model.Validation, error)
	RedeemFor(ctx context.Context, code, registrationID string, at time.Time) (*model.Redemption, error)
}

// RedemptionHandler handles coupon validation and redemption requests.
// Both are evaluated against the server clock.
type RedemptionHandler struct {
	service   RedemptionServiceInterface
	validator *validator.Validate
	now       func() time.Time
}

// NewRedemptionHandler creates a new RedemptionHandler with the given service and validator.
func NewRedemptionHandler(svc RedemptionServiceInterface, v *validator.Validate) *RedemptionHandler {
	return &RedemptionHandler{service: svc, validator: v, now: time.Now}
}

// ValidateCoupon handles GET /api/coupons/:code/validate requests.
func (h *RedemptionHandler) ValidateCoupon(c *fiber.Ctx) error {
	code := c.Params("code")

	v, err := h.service.Validate(c.Context(), code, h.now().UTC())
	if err != nil {
		if status, msg, ok := ledgerError(err); ok {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("coupon_code", code).
			Msg("failed to validate coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(v)
}

// RedeemCoupon handles POST /api/coupons/:code/redeem requests.
// The body is optional; without a registration_id only the coupon cap applies.
func (h *RedemptionHandler) RedeemCoupon(c *fiber.Ctx) error {
	code := c.Params("code")

	var req model.RedeemCouponRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := h.validator.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
		}
	}

	redemption, err := h.service.RedeemFor(c.Context(), code, req.RegistrationID, h.now().UTC())
	if err != nil {
		if status, msg, ok := ledgerError(err); ok {
			log.Info().
				Str("request_id", requestID(c)).
				Str("coupon_code", code).
				Str("registration_id", req.RegistrationID).
				Str("reason", msg).
				Msg("coupon redemption rejected")
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("coupon_code", code).
			Str("registration_id", req.RegistrationID).
			Msg("failed to redeem coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("coupon_code", code).
		Str("registration_id", redemption.RegistrationID).
		Int("discount", redemption.Discount).
		Msg("coupon redeemed")

	return c.JSON(redemption)
}
