package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTokenRepoWithMock(t *testing.T) (*TokenRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewTokenRepo(db), mock, db
}

func TestTokenRepo_Revoke_FirstCallWins(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	q := `UPDATE\s+refresh_tokens\s+SET\s+revoked_at=NOW\(\)\s+WHERE\s+token_hash=\?\s+AND\s+revoked_at\s+IS\s+NULL`

	// First revoke flips the row.
	mock.ExpectExec(q).WithArgs("abc123").WillReturnResult(sqlmock.NewResult(0, 1))
	// Second revoke of the same hash matches no rows: idempotent, but the
	// caller learns it lost the race.
	mock.ExpectExec(q).WithArgs("abc123").WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.Revoke(context.Background(), "abc123")
	if err != nil || !flipped {
		t.Fatalf("first revoke: flipped=%v err=%v", flipped, err)
	}
	flipped, err = repo.Revoke(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("second revoke must not error: %v", err)
	}
	if flipped {
		t.Fatalf("second revoke must report no transition")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenRepo_RevokeAllForUser_ReturnsCount(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+refresh_tokens\s+SET\s+revoked_at=NOW\(\)\s+WHERE\s+user_id=\?\s+AND\s+revoked_at\s+IS\s+NULL`).
		WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("RevokeAllForUser error: %v", err)
	}
	if n != 3 {
		t.Fatalf("count mismatch: got %d want 3", n)
	}
}

func TestTokenRepo_FindByHash_NotFound(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash=\?`).
		WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRepo_FindByHash_RevokedRowSurfaces(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	revoked := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "ip", "user_agent", "created_at"}).
		AddRow(1, 7, "abc123", now.Add(time.Hour), revoked, "10.0.0.1", "cli/1.0", now.Add(-2*time.Hour))
	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens WHERE token_hash=\?`).
		WithArgs("abc123").WillReturnRows(rows)

	tok, err := repo.FindByHash(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FindByHash error: %v", err)
	}
	if tok.RevokedAt == nil {
		t.Fatalf("expected revoked_at to be set")
	}
	if tok.Valid(now) {
		t.Fatalf("revoked token must not be valid")
	}
}

func TestTokenRepo_Store(t *testing.T) {
	repo, mock, db := newTokenRepoWithMock(t)
	defer db.Close()

	exp := time.Now().UTC().Add(7 * 24 * time.Hour)
	mock.ExpectExec(`INSERT INTO refresh_tokens \(user_id, token_hash, expires_at, ip, user_agent\)`).
		WithArgs(uint64(7), "abc123", exp, "10.0.0.1", "cli/1.0").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Store(context.Background(), 7, "abc123", exp, "10.0.0.1", "cli/1.0"); err != nil {
		t.Fatalf("Store error: %v", err)
	}
}
