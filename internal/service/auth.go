// Package service contains the use-case layer between HTTP handlers and
// the repositories.  AuthService owns the whole credential lifecycle:
// registration, login, refresh rotation, logout and the Verify choke
// point every protected endpoint goes through.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/alibekd/taskboard/internal/cache"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/utils"
)

// UserStore is the slice of the user repository AuthService depends on.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, role string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	SetActive(ctx context.Context, id uint64, active bool) error
	UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenStore is the slice of the refresh token repository AuthService
// depends on.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
}

// ProfileCache is the slice of the cache store AuthService depends on:
// cached principals keyed by user, misses indistinguishable from an
// absent cache.
type ProfileCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Delete(ctx context.Context, keys ...string)
}

// TokenPair bundles a freshly issued access/refresh pair.
type TokenPair struct {
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// AuthService orchestrates password hashing, the token codec, the
// refresh token store and the profile cache into the credential flows.
// All dependencies are injected; there is no package-level state.
type AuthService struct {
	Users      UserStore
	Tokens     TokenStore
	Cache      ProfileCache
	Codec      *utils.TokenCodec
	BcryptCost int
}

func NewAuthService(users UserStore, tokens TokenStore, c ProfileCache, codec *utils.TokenCodec, bcryptCost int) *AuthService {
	return &AuthService{Users: users, Tokens: tokens, Cache: c, Codec: codec, BcryptCost: bcryptCost}
}

// Register validates input shape and password strength, hashes the
// password and creates the user with role "user".  The returned
// principal is the public profile; the digest never leaves this layer.
func (s *AuthService) Register(ctx context.Context, email, password string) (model.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var reasons []string
	if _, err := mail.ParseAddress(email); err != nil {
		reasons = append(reasons, "email is not a valid address")
	}
	reasons = append(reasons, utils.ValidatePasswordStrength(password)...)
	if len(reasons) > 0 {
		return model.Principal{}, &ValidationError{Reasons: reasons}
	}

	hash, err := utils.HashPassword(password, s.BcryptCost)
	if err != nil {
		return model.Principal{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.Users.Create(ctx, email, hash, model.RoleUser)
	if err != nil {
		return model.Principal{}, err // ErrEmailExists maps to Conflict upstream
	}
	return model.Principal{ID: id, Email: email, Role: model.RoleUser, IsActive: true}, nil
}

// Login verifies credentials and mints an access/refresh pair.  Unknown
// email, wrong password and a deactivated account all return the same
// ErrInvalidCredentials so responses never reveal which check failed.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (TokenPair, model.Principal, error) {
	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, model.Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, model.Principal{}, fmt.Errorf("load user: %w", err)
	}
	match, err := utils.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		// The stored digest is unusable; this is not a wrong password.
		return TokenPair{}, model.Principal{}, fmt.Errorf("verify password for user %d: %w", u.ID, err)
	}
	if !u.IsActive || !match {
		return TokenPair{}, model.Principal{}, ErrInvalidCredentials
	}

	pair, err := s.mintPair(ctx, u, ip, userAgent)
	if err != nil {
		return TokenPair{}, model.Principal{}, err
	}
	if err := s.Users.UpdateLastLogin(ctx, u.ID, time.Now().UTC()); err != nil {
		log.Printf("auth: update last_login_at for user %d failed: %v", u.ID, err)
	}
	p := u.Principal()
	s.cacheProfile(ctx, p)
	return pair, p, nil
}

// Refresh rotates a refresh token: verify, look up by hash, require a
// live record and an active user, then revoke the old record BEFORE
// persisting its successor.  If revocation loses a race with a
// concurrent rotation of the same secret the attempt fails; the reverse
// order would let a stolen predecessor outlive its replacement.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh, ip, userAgent string) (TokenPair, model.Principal, error) {
	if _, err := s.Codec.VerifyRefresh(rawRefresh); err != nil {
		return TokenPair{}, model.Principal{}, ErrInvalidCredentials
	}
	hash := utils.HashToken(rawRefresh)
	rec, err := s.Tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, model.Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, model.Principal{}, fmt.Errorf("find refresh token: %w", err)
	}
	if !rec.Valid(time.Now().UTC()) {
		return TokenPair{}, model.Principal{}, ErrInvalidCredentials
	}
	u, err := s.Users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, model.Principal{}, ErrInvalidCredentials
		}
		return TokenPair{}, model.Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return TokenPair{}, model.Principal{}, ErrInvalidCredentials
	}

	flipped, err := s.Tokens.Revoke(ctx, hash)
	if err != nil {
		return TokenPair{}, model.Principal{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !flipped {
		// A concurrent rotation already consumed this secret.
		return TokenPair{}, model.Principal{}, ErrInvalidCredentials
	}

	pair, err := s.mintPair(ctx, u, ip, userAgent)
	if err != nil {
		// Old record is gone and no successor exists: the session is
		// lost and the client must log in again.
		return TokenPair{}, model.Principal{}, err
	}
	p := u.Principal()
	s.cacheProfile(ctx, p)
	return pair, p, nil
}

// Logout ends a single session.  Both steps are best-effort and
// independent: revoke the refresh record when a token was supplied,
// drop the profile cache entry when the user is known.  A missing or
// already-dead refresh token is not an error; logout always succeeds.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string, userID uint64) {
	if rawRefresh != "" {
		if _, err := s.Tokens.Revoke(ctx, utils.HashToken(rawRefresh)); err != nil {
			log.Printf("auth: revoke on logout failed: %v", err)
		}
	}
	if userID != 0 {
		s.Cache.Delete(ctx, cache.ProfileKey(userID))
	}
}

// LogoutAll revokes every live refresh record of the user and
// invalidates their cached profile and listings.  Returns the number of
// sessions ended.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) (int64, error) {
	n, err := s.Tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all for user %d: %w", userID, err)
	}
	s.Cache.Delete(ctx, cache.ProfileKey(userID), cache.UserProjectsKey(userID))
	return n, nil
}

// Verify resolves a bearer access token into a Principal.  This is the
// single choke point for every protected endpoint: signature/kind/expiry
// check, then cache read, then store fallback with cache fill.  An
// inactive account fails verification even with a structurally valid,
// unexpired token.
func (s *AuthService) Verify(ctx context.Context, rawAccess string) (model.Principal, error) {
	claims, err := s.Codec.VerifyAccess(rawAccess)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
	}
	uid, err := claims.UserID()
	if err != nil {
		return model.Principal{}, ErrInvalidCredentials
	}

	if b, ok := s.Cache.Get(ctx, cache.ProfileKey(uid)); ok {
		var p model.Principal
		if err := json.Unmarshal(b, &p); err == nil {
			if !p.IsActive {
				return model.Principal{}, ErrInvalidCredentials
			}
			return p, nil
		}
		// Unreadable entry: fall through to the store and overwrite it.
	}

	u, err := s.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Principal{}, ErrInvalidCredentials
		}
		return model.Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return model.Principal{}, ErrInvalidCredentials
	}
	p := u.Principal()
	s.cacheProfile(ctx, p)
	return p, nil
}

// Deactivate disables an account and ends every session it has: flip
// is_active, revoke all refresh records, purge the cached profile so
// outstanding access tokens die at the next Verify.
func (s *AuthService) Deactivate(ctx context.Context, userID uint64) (int64, error) {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return 0, err
	}
	if err := s.Users.SetActive(ctx, userID, false); err != nil {
		return 0, fmt.Errorf("deactivate user %d: %w", userID, err)
	}
	n, err := s.Tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all for user %d: %w", userID, err)
	}
	s.Cache.Delete(ctx, cache.ProfileKey(userID), cache.UserProjectsKey(userID))
	return n, nil
}

// mintPair issues an access/refresh pair and persists the refresh hash.
func (s *AuthService) mintPair(ctx context.Context, u model.User, ip, userAgent string) (TokenPair, error) {
	access, err := s.Codec.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Codec.IssueRefresh(u.ID, u.Email)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.Tokens.Store(ctx, u.ID, utils.HashToken(refresh.Token), refresh.Exp, ip, userAgent); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *AuthService) cacheProfile(ctx context.Context, p model.Principal) {
	if b, err := json.Marshal(p); err == nil {
		s.Cache.Set(ctx, cache.ProfileKey(p.ID), b)
	}
}
