package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/maksimzayats/fastdjango/internal/model"
)

var (
	// ErrSessionNotFound is returned when no session matches a token hash or id.
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrSessionRotated is returned by Rotate when the predecessor already
	// has a successor. The caller treats this as a reuse signal.
	ErrSessionRotated = errors.New("refresh session already rotated")
	// ErrSessionRevoked is returned by Rotate when the predecessor was revoked.
	ErrSessionRevoked = errors.New("refresh session revoked")
)

// SessionParams carries the fields captured when a session is created,
// either at login or as a rotation successor.
type SessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
}

// RefreshRepo defines the interface for refresh session repository operations
type RefreshRepo interface {
	Create(ctx context.Context, p SessionParams) (model.RefreshSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	Rotate(ctx context.Context, predecessorID uuid.UUID, successor SessionParams) (model.RefreshSession, error)
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	RevokeLineage(ctx context.Context, sessionID uuid.UUID) error
}

type refreshRepo struct {
	db *sql.DB
}

// NewRefreshRepo creates a new RefreshRepo instance
func NewRefreshRepo(db *sql.DB) RefreshRepo {
	return &refreshRepo{db: db}
}

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, created_at, expires_at, rotated_at, revoked_at, replaced_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.RefreshSession, error) {
	var s model.RefreshSession
	var idStr, userIDStr string
	var replacedByStr sql.NullString
	err := row.Scan(
		&idStr,
		&userIDStr,
		&s.TokenHash,
		&s.UserAgent,
		&s.IPAddress,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.RotatedAt,
		&s.RevokedAt,
		&replacedByStr,
	)
	if err != nil {
		return model.RefreshSession{}, err
	}
	s.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("parse session ID: %w", err)
	}
	s.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("parse session user ID: %w", err)
	}
	if replacedByStr.Valid && replacedByStr.String != "" {
		u, err := uuid.Parse(replacedByStr.String)
		if err != nil {
			return model.RefreshSession{}, fmt.Errorf("parse replaced_by: %w", err)
		}
		s.ReplacedBy = &u
	}
	return s, nil
}

// Create inserts a new refresh session
func (r *refreshRepo) Create(ctx context.Context, p SessionParams) (model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_sessions (user_id, token_hash, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+sessionColumns+`
	`, p.UserID, p.TokenHash, p.UserAgent, p.IPAddress, p.ExpiresAt)
	s, err := scanSession(row)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("insert refresh session: %w", err)
	}
	return s, nil
}

// FindByTokenHash returns the session matching the hash in whatever state it
// is in; callers decide what rotated, revoked or expired means for them.
func (r *refreshRepo) FindByTokenHash(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM refresh_sessions
		WHERE token_hash = $1
	`, tokenHash)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshSession{}, ErrSessionNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("find session: %w", err)
	}
	return s, nil
}

// Rotate supersedes the predecessor with a freshly inserted successor in one
// transaction. The predecessor row is locked for the duration, so of two
// concurrent rotations exactly one commits; the other gets ErrSessionRotated.
func (r *refreshRepo) Rotate(ctx context.Context, predecessorID uuid.UUID, successor SessionParams) (model.RefreshSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rotatedAt, revokedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT rotated_at, revoked_at
		FROM refresh_sessions
		WHERE id = $1
		FOR UPDATE
	`, predecessorID).Scan(&rotatedAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshSession{}, ErrSessionNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("lock predecessor: %w", err)
	}
	if rotatedAt.Valid {
		return model.RefreshSession{}, ErrSessionRotated
	}
	if revokedAt.Valid {
		return model.RefreshSession{}, ErrSessionRevoked
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO refresh_sessions (user_id, token_hash, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+sessionColumns+`
	`, successor.UserID, successor.TokenHash, successor.UserAgent, successor.IPAddress, successor.ExpiresAt)
	s, err := scanSession(row)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("insert successor session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET rotated_at = now(), replaced_by = $2
		WHERE id = $1
	`, predecessorID, s.ID)
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("mark predecessor rotated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.RefreshSession{}, fmt.Errorf("commit rotation: %w", err)
	}
	return s, nil
}

// Revoke sets revoked_at for the session. Revoking an already-revoked
// session is a no-op, not an error.
func (r *refreshRepo) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, sessionID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeLineage revokes the session and every descendant reachable through
// replaced_by. Used as the theft response when a rotated token is replayed.
func (r *refreshRepo) RevokeLineage(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		WITH RECURSIVE lineage AS (
			SELECT id, replaced_by FROM refresh_sessions WHERE id = $1
			UNION ALL
			SELECT s.id, s.replaced_by
			FROM refresh_sessions s
			JOIN lineage l ON s.id = l.replaced_by
		)
		UPDATE refresh_sessions
		SET revoked_at = now()
		WHERE id IN (SELECT id FROM lineage) AND revoked_at IS NULL
	`, sessionID)
	if err != nil {
		return fmt.Errorf("revoke session lineage: %w", err)
	}
	return nil
}
