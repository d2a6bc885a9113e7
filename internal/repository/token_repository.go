package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alibekd/taskboard/internal/model"
)

// TokenRepo persists refresh token records.  Only the SHA-256 hash of a
// refresh secret is ever stored; the raw bearer string never reaches
// this layer.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token record for a newly issued secret.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ip, user_agent) VALUES (?,?,?,?,?)",
		userID, tokenHash, exp, ip, userAgent)
	return err
}

// FindByHash loads the record for a hashed secret.  Expiry and revocation
// are not filtered here; callers check Valid() so diagnostics can tell a
// revoked token from an unknown one.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t       model.RefreshToken
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked_at, ip, user_agent, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revoked, &t.IP, &t.UserAgent, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, err
	}
	if revoked.Valid {
		t.RevokedAt = &revoked.Time
	}
	return t, nil
}

// Revoke marks a token as revoked and reports whether this call made the
// transition.  The WHERE clause makes the flip atomic: under two
// concurrent rotations of the same secret exactly one caller sees
// revoked=true and may proceed to mint a successor; the other gets
// false and must fail the refresh.  Revoking an already-revoked or
// unknown hash is not an error, it just returns false.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllForUser revokes every live token of a user in one statement
// and returns how many sessions it ended.  Used on logout-everywhere and
// on account deactivation.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes rows whose expiry is older than the cutoff.  Run
// from a background sweep; revocation state never depends on it.
func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
