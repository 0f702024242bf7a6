package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword applies the password strength rules: minimum length,
// not entirely numeric, and not containing the user's own attributes.
// Returns ErrWeakPassword when any rule fails.
func ValidatePassword(password, username, email, firstName, lastName string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	if isEntirelyNumeric(password) {
		return ErrWeakPassword
	}

	lower := strings.ToLower(password)
	attributes := []string{username, emailLocalPart(email), firstName, lastName}
	for _, attr := range attributes {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if len(attr) >= 3 && strings.Contains(lower, attr) {
			return ErrWeakPassword
		}
	}

	return nil
}

func isEntirelyNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func emailLocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
