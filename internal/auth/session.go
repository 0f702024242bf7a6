package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/maksimzayats/fastdjango/internal/model"
	"github.com/maksimzayats/fastdjango/internal/repo"
)

// IssuedSession pairs a stored session with the raw refresh token handed to
// the client. The raw token is retrievable only here; the store keeps its
// hash.
type IssuedSession struct {
	Session      model.RefreshSession
	RefreshToken string
}

// RefreshSessionService governs the issue / rotate / revoke lifecycle of
// refresh sessions, including reuse detection on replayed tokens.
type RefreshSessionService struct {
	refreshRepo repo.RefreshRepo
	refreshTTL  time.Duration
	now         func() time.Time
}

// RefreshSessionOption configures a RefreshSessionService.
type RefreshSessionOption func(*RefreshSessionService)

// WithNow overrides the service clock; used by tests.
func WithNow(now func() time.Time) RefreshSessionOption {
	return func(s *RefreshSessionService) { s.now = now }
}

// NewRefreshSessionService creates a new refresh session service
func NewRefreshSessionService(refreshRepo repo.RefreshRepo, refreshTTL time.Duration, opts ...RefreshSessionOption) *RefreshSessionService {
	s := &RefreshSessionService{
		refreshRepo: refreshRepo,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRefreshSession starts a new session lineage for a login. UserAgent
// and ip are captured for audit; expiry is fixed here and never extended.
func (s *RefreshSessionService) CreateRefreshSession(ctx context.Context, userID uuid.UUID, userAgent, ip string) (IssuedSession, error) {
	token, tokenHash, err := GenerateRefreshToken()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("generate refresh token: %w", err)
	}

	session, err := s.refreshRepo.Create(ctx, repo.SessionParams{
		UserID:    userID,
		TokenHash: tokenHash,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: s.now().Add(s.refreshTTL),
	})
	if err != nil {
		return IssuedSession{}, fmt.Errorf("create refresh session: %w", err)
	}

	return IssuedSession{Session: session, RefreshToken: token}, nil
}

// RotateRefreshToken exchanges a valid refresh token for a successor
// session with a fresh token and TTL, marking the presented session
// rotated.
//
// Presenting an already-rotated token is treated as theft: the session's
// entire descendant lineage is revoked and ErrRefreshTokenReuseDetected is
// returned. A lost race between two rotations of the same token takes the
// same path, which is intentional; the server cannot tell a race from a
// replay.
func (s *RefreshSessionService) RotateRefreshToken(ctx context.Context, rawToken, userAgent, ip string) (IssuedSession, error) {
	session, err := s.refreshRepo.FindByTokenHash(ctx, HashRefreshToken(rawToken))
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return IssuedSession{}, ErrInvalidRefreshToken
		}
		return IssuedSession{}, fmt.Errorf("find refresh session: %w", err)
	}

	if session.Revoked() || session.Expired(s.now()) {
		return IssuedSession{}, ErrExpiredRefreshToken
	}

	if session.Rotated() {
		return IssuedSession{}, s.handleReuse(ctx, session)
	}

	token, tokenHash, err := GenerateRefreshToken()
	if err != nil {
		return IssuedSession{}, fmt.Errorf("generate refresh token: %w", err)
	}

	successor, err := s.refreshRepo.Rotate(ctx, session.ID, repo.SessionParams{
		UserID:    session.UserID,
		TokenHash: tokenHash,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: s.now().Add(s.refreshTTL),
	})
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrSessionRotated):
			// Another rotation of the same token committed first.
			return IssuedSession{}, s.handleReuse(ctx, session)
		case errors.Is(err, repo.ErrSessionRevoked):
			return IssuedSession{}, ErrExpiredRefreshToken
		case errors.Is(err, repo.ErrSessionNotFound):
			return IssuedSession{}, ErrInvalidRefreshToken
		}
		return IssuedSession{}, fmt.Errorf("rotate refresh session: %w", err)
	}

	return IssuedSession{Session: successor, RefreshToken: token}, nil
}

func (s *RefreshSessionService) handleReuse(ctx context.Context, session model.RefreshSession) error {
	log.Printf("refresh token reuse detected for session %s (user %s); revoking lineage", session.ID, session.UserID)
	if err := s.refreshRepo.RevokeLineage(ctx, session.ID); err != nil {
		return fmt.Errorf("revoke lineage after reuse: %w", err)
	}
	return ErrRefreshTokenReuseDetected
}

// RevokeRefreshToken revokes the session identified by the token, provided
// it belongs to userID. Unknown tokens and cross-user attempts both fail
// with ErrInvalidRefreshToken. Revoking an already-revoked session is a
// no-op.
func (s *RefreshSessionService) RevokeRefreshToken(ctx context.Context, rawToken string, userID uuid.UUID) error {
	session, err := s.refreshRepo.FindByTokenHash(ctx, HashRefreshToken(rawToken))
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return ErrInvalidRefreshToken
		}
		return fmt.Errorf("find refresh session: %w", err)
	}

	if session.UserID != userID {
		return ErrInvalidRefreshToken
	}

	if err := s.refreshRepo.Revoke(ctx, session.ID); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}
