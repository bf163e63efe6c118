package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// codeReserved holds characters that cannot appear in a coupon code because
// the code is used as a URL path segment.
const codeReserved = "/?#%"

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// Register custom "notblank" validator - rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// Register custom "couponcode" validator - printable, no whitespace, path-safe
	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return ValidCode(str)
	})

	return v
}

// ValidCode reports whether s can be used as a coupon code.
func ValidCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) || strings.ContainsRune(codeReserved, r) {
			return false
		}
	}
	return true
}
