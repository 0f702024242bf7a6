package auth

import (
	"errors"
	"fmt"
)

// ErrRefreshToken is the base of the refresh-token error taxonomy. Every
// refresh failure matches it via errors.Is, so callers can catch broadly
// or pick a specific case.
var ErrRefreshToken = errors.New("refresh token error")

var (
	// ErrInvalidRefreshToken covers unknown or malformed tokens and
	// ownership mismatches on revocation.
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrRefreshToken)

	// ErrExpiredRefreshToken covers expired and revoked sessions.
	ErrExpiredRefreshToken = fmt.Errorf("%w: refresh token expired or revoked", ErrRefreshToken)

	// ErrRefreshTokenReuseDetected signals replay of an already-rotated
	// token. The session's whole descendant lineage is revoked before this
	// is returned.
	ErrRefreshTokenReuseDetected = fmt.Errorf("%w: refresh token reuse detected", ErrRefreshToken)
)

var (
	// ErrUserExists is returned when a username or email is already taken.
	ErrUserExists = errors.New("a user with the given username or email already exists")

	// ErrWeakPassword is returned when a password fails the strength rules.
	ErrWeakPassword = errors.New("password does not meet the strength requirements")
)
