package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// ResetCodeLength is the number of decimal digits in a reset code
	ResetCodeLength = 6
	// DefaultResetCodeTTL is how long an issued code stays valid
	DefaultResetCodeTTL = 15 * time.Minute
	// MinPasswordLength is the minimum length of a new password
	MinPasswordLength = 6
)

var resetCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

var (
	resetCodeFloor = big.NewInt(100000)
	resetCodeSpan  = big.NewInt(900000)
)

// GenerateResetCode returns a uniformly random code in 100000..999999.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Add(n, resetCodeFloor).Int64()), nil
}

// ValidateResetCodeFormat checks that code is exactly six ASCII digits.
// Clients run it before submitting; the server treats a malformed code the
// same as a wrong one.
func ValidateResetCodeFormat(code string) error {
	return validation.Validate(code,
		validation.Required,
		validation.Match(resetCodePattern).Error("must be a 6 digit code"),
	)
}
