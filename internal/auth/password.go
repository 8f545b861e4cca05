package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("password must be at least 8 characters and contain upper and lower case letters and a digit")

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// CheckStrength rejects passwords shorter than MinPasswordLength or missing
// an upper case letter, a lower case letter or a digit.
func CheckStrength(pw string) error {
	var upper, lower, digit bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if n < MinPasswordLength || !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword hashes pw with bcrypt at cost. Out of range costs fall back to
// bcrypt.DefaultCost.
func HashPassword(pw string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
