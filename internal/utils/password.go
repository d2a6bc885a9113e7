package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored bcrypt digest with a candidate
// password.  A mismatch is (false, nil); any other failure means the
// stored digest itself is unusable (truncated, wrong format) and comes
// back as an error so callers can treat it as an infrastructure fault
// rather than a wrong password.
func VerifyPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	}
	return false, err
}

// ValidatePasswordStrength checks a candidate password against every rule
// and returns the full list of violations, not just the first, so the
// caller can surface all of them to the user at once.  An empty slice
// means the password is acceptable.
func ValidatePasswordStrength(plain string) []string {
	var reasons []string
	if len(plain) < 8 {
		reasons = append(reasons, "must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper {
		reasons = append(reasons, "must contain an uppercase letter")
	}
	if !lower {
		reasons = append(reasons, "must contain a lowercase letter")
	}
	if !digit {
		reasons = append(reasons, "must contain a digit")
	}
	if !symbol {
		reasons = append(reasons, "must contain a symbol")
	}
	return reasons
}
