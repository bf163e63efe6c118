package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/event-coupon-ledger/internal/model"
)

// CouponServiceInterface defines the administrative coupon operations.
type CouponServiceInterface interface {
	Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error)
	Lookup(ctx context.Context, code string) (*model.Coupon, error)
	Redemptions(ctx context.Context, code string) ([]model.Redemption, error)
	Deactivate(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// CouponHandler handles HTTP requests for coupon administration.
type CouponHandler struct {
	service   CouponServiceInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given service and validator.
func NewCouponHandler(svc CouponServiceInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{service: svc, validator: v}
}

// CreateCoupon handles POST /api/coupons requests to create a new coupon.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req model.CreateCouponRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	coupon, err := h.service.Create(c.Context(), &req)
	if err != nil {
		if status, msg, ok := ledgerError(err); ok {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("coupon_code", req.Code).
			Msg("failed to create coupon")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("coupon_code", coupon.Code).
		Int("discount", coupon.Discount).
		Time("expires_at", coupon.ExpiresAt).
		Int("max_redemptions", coupon.MaxRedemptions).
		Msg("coupon created")

	return c.Status(fiber.StatusCreated).JSON(model.NewCouponResponse(coupon))
}

// GetCoupon handles GET /api/coupons/:code requests to retrieve coupon details.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	code := c.Params("code")

	coupon, err := h.service.Lookup(c.Context(), code)
	if err != nil {
		return h.fail(c, err, code, "failed to get coupon")
	}
	return c.JSON(model.NewCouponResponse(coupon))
}

// ListRedemptions handles GET /api/coupons/:code/redemptions requests.
func (h *CouponHandler) ListRedemptions(c *fiber.Ctx) error {
	code := c.Params("code")

	redemptions, err := h.service.Redemptions(c.Context(), code)
	if err != nil {
		return h.fail(c, err, code, "failed to list redemptions")
	}
	return c.JSON(redemptions)
}

// DeactivateCoupon handles POST /api/coupons/:code/deactivate requests.
func (h *CouponHandler) DeactivateCoupon(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.service.Deactivate(c.Context(), code); err != nil {
		return h.fail(c, err, code, "failed to deactivate coupon")
	}

	log.Info().Str("request_id", requestID(c)).Str("coupon_code", code).Msg("coupon deactivated")
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteCoupon handles DELETE /api/coupons/:code requests.
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.service.Delete(c.Context(), code); err != nil {
		return h.fail(c, err, code, "failed to delete coupon")
	}

	log.Info().Str("request_id", requestID(c)).Str("coupon_code", code).Msg("coupon deleted")
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CouponHandler) fail(c *fiber.Ctx, err error, code, msg string) error {
	if status, clientMsg, ok := ledgerError(err); ok {
		return c.Status(status).JSON(fiber.Map{"error": clientMsg})
	}
	log.Error().
		Err(err).
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("coupon_code", code).
		Msg(msg)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
