package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fairyhunter13/event-coupon-ledger/internal/service"
)

// ledgerError maps a ledger sentinel to its HTTP status and client message.
// ok is false for errors that should surface as 500.
func ledgerError(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "coupon not found", true
	case errors.Is(err, service.ErrDuplicateCode):
		return fiber.StatusConflict, "coupon already exists", true
	case errors.Is(err, service.ErrAlreadyRedeemed):
		return fiber.StatusConflict, "coupon already redeemed", true
	case errors.Is(err, service.ErrExpired):
		return fiber.StatusGone, "coupon expired", true
	case errors.Is(err, service.ErrInactive):
		return fiber.StatusGone, "coupon inactive", true
	case errors.Is(err, service.ErrInvalidDiscount):
		return fiber.StatusBadRequest, "invalid request: discount must be between 1 and 100", true
	case errors.Is(err, service.ErrInvalidCode):
		return fiber.StatusBadRequest, "invalid request: code is invalid", true
	case errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest, "invalid request", true
	}
	return fiber.StatusInternalServerError, "internal server error", false
}

// formatValidationError converts validator errors to client-facing messages.
// Only the first failing field is reported.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Code":
				switch tag {
				case "required":
					return "invalid request: code is required"
				case "notblank":
					return "invalid request: code cannot be whitespace only"
				case "max":
					return "invalid request: code exceeds maximum length of 255"
				}
				return "invalid request: code is invalid"
			case "Discount":
				if tag == "required" {
					return "invalid request: discount is required"
				}
				return "invalid request: discount must be between 1 and 100"
			case "ExpiresAt":
				return "invalid request: expires_at is required"
			case "MaxRedemptions":
				return "invalid request: max_redemptions must be 0 (unlimited) or greater"
			case "RegistrationID":
				if tag == "max" {
					return "invalid request: registration_id exceeds maximum length of 255"
				}
				return "invalid request: registration_id is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				if tag == "max" {
					return "invalid request: " + field + " exceeds maximum length"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
