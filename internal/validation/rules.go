// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/panvault/internal/errors"
)

var (
	// hpanRegex matches a 64-character lowercase hex string (HMAC-SHA256 output).
	hpanRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

	// panRegex matches a 13-19 digit card number.
	panRegex = regexp.MustCompile(`^[0-9]{13,19}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Hpan validates that a string is a well-formed hashed PAN identifier.
var Hpan = validation.NewStringRuleWithError(
	func(s string) bool {
		return hpanRegex.MatchString(s)
	},
	validation.NewError("validation_hpan", "must be a 64-character hex string"),
)

// Pan validates that a string is a 13-19 digit card number.
var Pan = validation.NewStringRuleWithError(
	func(s string) bool {
		return panRegex.MatchString(s)
	},
	validation.NewError("validation_pan", "must be 13 to 19 digits"),
)
