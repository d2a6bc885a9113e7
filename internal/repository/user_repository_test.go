package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newUserRepoWithMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewUserRepo(db), mock, db
}

func TestUserRepo_Create_NormalizesEmail(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users \(email, password_hash, role, is_active\)`).
		WithArgs("alice@ex.com", "hash", "user").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := repo.Create(context.Background(), "  Alice@Ex.COM ", "hash", "user")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != 42 {
		t.Fatalf("unexpected id %d", id)
	}
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("alice@ex.com", "hash", "user").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	_, err := repo.Create(context.Background(), "alice@ex.com", "hash", "user")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
		WithArgs("ghost@ex.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@ex.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo_GetByID(t *testing.T) {
	repo, mock, db := newUserRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "last_login_at", "created_at", "updated_at"}).
		AddRow(7, "bob@ex.com", "hash", "admin", true, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
		WithArgs(uint64(7)).WillReturnRows(rows)

	u, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if u.Email != "bob@ex.com" || u.Role != "admin" || !u.IsActive || u.LastLoginAt != nil {
		t.Fatalf("unexpected user: %+v", u)
	}
}
