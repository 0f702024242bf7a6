package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsStaff      bool
	CreatedAt    time.Time
}

// RefreshSession represents one logical login. Rotation supersedes a session
// with a successor (ReplacedBy), forming a linked lineage per login.
type RefreshSession struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	UserAgent  string
	IPAddress  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RotatedAt  *time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// Expired reports whether the session is past its expiry at the given instant.
// ExpiresAt is fixed at issuance and never extended on rotation.
func (s RefreshSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Rotated reports whether the session has been superseded by a successor.
func (s RefreshSession) Rotated() bool {
	return s.RotatedAt != nil
}

// Revoked reports whether the session has been explicitly revoked.
func (s RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Active reports whether the session can still be rotated or revoked:
// not rotated, not revoked, not expired.
func (s RefreshSession) Active(now time.Time) bool {
	return !s.Rotated() && !s.Revoked() && !s.Expired(now)
}
