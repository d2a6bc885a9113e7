package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibekd/taskboard/internal/cache"
	"github.com/alibekd/taskboard/internal/model"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/utils"
)

// --- fakes ---

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: map[uint64]model.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, email, passwordHash, role string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	id := f.nextID
	f.nextID++
	f.users[id] = model.User{ID: id, Email: email, PasswordHash: passwordHash, Role: role, IsActive: true}
	return id, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) SetActive(_ context.Context, id uint64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	u.IsActive = active
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) UpdateLastLogin(_ context.Context, id uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	u.LastLoginAt = &at
	f.users[id] = u
	return nil
}

type fakeTokenStore struct {
	mu      sync.Mutex
	records map[string]model.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{records: map[string]model.RefreshToken{}}
}

func (f *fakeTokenStore) Store(_ context.Context, userID uint64, tokenHash string, exp time.Time, ip, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[tokenHash] = model.RefreshToken{
		ID: uint64(len(f.records) + 1), UserID: userID, TokenHash: tokenHash,
		ExpiresAt: exp, IP: ip, UserAgent: userAgent, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeTokenStore) FindByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeTokenStore) Revoke(_ context.Context, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[tokenHash]
	if !ok || r.RevokedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	r.RevokedAt = &now
	f.records[tokenHash] = r
	return true, nil
}

func (f *fakeTokenStore) RevokeAllForUser(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for h, r := range f.records {
		if r.UserID == userID && r.RevokedAt == nil {
			r.RevokedAt = &now
			f.records[h] = r
			n++
		}
	}
	return n, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok
}

func (f *fakeCache) Set(_ context.Context, key string, val []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = val
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
}

func newTestService() (*AuthService, *fakeUserStore, *fakeTokenStore) {
	users := newFakeUserStore()
	tokens := newFakeTokenStore()
	codec := &utils.TokenCodec{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	// nil Redis client: every cache read is a miss, which Verify must
	// treat as "not cached", never as "does not exist".
	svc := NewAuthService(users, tokens, cache.New(nil, time.Minute), codec, 4)
	return svc, users, tokens
}

// --- flows ---

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, "alice@ex.com", p.Email)
	assert.Equal(t, model.RoleUser, p.Role)
	assert.True(t, p.IsActive)

	pair, principal, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "10.0.0.1", "cli/1.0")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access.Token)
	assert.NotEmpty(t, pair.Refresh.Token)
	assert.Equal(t, p.ID, principal.ID)
}

func TestLogin_WrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)

	_, _, errWrongPass := svc.Login(ctx, "alice@ex.com", "Wr0ng!Pass", "", "")
	_, _, errNoUser := svc.Login(ctx, "ghost@ex.com", "Str0ng!Pass", "", "")

	assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
	assert.Equal(t, errWrongPass.Error(), errNoUser.Error())
}

func TestLogin_DeactivatedAccountSameError(t *testing.T) {
	t.Parallel()
	svc, users, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "bob@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	require.NoError(t, users.SetActive(ctx, p.ID, false))

	_, _, err = svc.Login(ctx, "bob@ex.com", "Str0ng!Pass", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
}

func TestRegister_WeakPasswordReturnsAllReasons(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), "alice@ex.com", "short")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	// short, no upper, no digit, no symbol
	assert.Len(t, verr.Reasons, 4)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestRefresh_RotationKillsOldSecret(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	rotated, principal, err := svc.Refresh(ctx, pair.Refresh.Token, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice@ex.com", principal.Email)
	assert.NotEqual(t, pair.Refresh.Token, rotated.Refresh.Token)

	// The predecessor is permanently dead even with remaining TTL.
	_, _, err = svc.Refresh(ctx, pair.Refresh.Token, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The successor still works.
	_, _, err = svc.Refresh(ctx, rotated.Refresh.Token, "", "")
	assert.NoError(t, err)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, pair.Access.Token, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_DeactivatedUserRejected(t *testing.T) {
	t.Parallel()
	svc, users, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	require.NoError(t, users.SetActive(ctx, p.ID, false))
	_, _, err = svc.Refresh(ctx, pair.Refresh.Token, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_ResolvesPrincipal(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	p, err := svc.Verify(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, p.ID)
	assert.Equal(t, "alice@ex.com", p.Email)
	assert.Equal(t, model.RoleUser, p.Role)
}

func TestVerify_DeactivationTakesEffectMidSession(t *testing.T) {
	t.Parallel()
	svc, users, _ := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	require.NoError(t, users.SetActive(ctx, reg.ID, false))

	// The access token is still unexpired and correctly signed, but the
	// account is gone: Verify must refuse it.
	_, err = svc.Verify(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerify_RefreshTokenRejected(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	t.Parallel()
	svc, _, tokens := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, p, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	// With a token: the session record is revoked.
	svc.Logout(ctx, pair.Refresh.Token, p.ID)
	rec, err := tokens.FindByHash(ctx, utils.HashToken(pair.Refresh.Token))
	require.NoError(t, err)
	assert.NotNil(t, rec.RevokedAt)

	// Without a token, with an unknown token: still fine.
	svc.Logout(ctx, "", p.ID)
	svc.Logout(ctx, "never-issued", 0)
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)

	var pairs []TokenPair
	for i := 0; i < 3; i++ {
		pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}

	n, err := svc.LogoutAll(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, pair := range pairs {
		_, _, err := svc.Refresh(ctx, pair.Refresh.Token, "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestDeactivate_EndsSessions(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	n, err := svc.Deactivate(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, _, err = svc.Refresh(ctx, pair.Refresh.Token, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Verify(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDeactivate_UnknownUser(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	_, err := svc.Deactivate(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLogin_UnusableDigestIsNotInvalidCredentials(t *testing.T) {
	t.Parallel()
	svc, users, _ := newTestService()
	ctx := context.Background()

	// A row whose password_hash is not bcrypt output (truncated by a
	// bad migration, say) is an infrastructure fault when the user
	// tries to log in, never a wrong password.
	_, err := users.Create(ctx, "alice@ex.com", "not-a-bcrypt-digest", model.RoleUser)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

// newCachedTestService wires a fake in-memory cache so the cache-hit
// paths of Verify run, not just the nil-client miss path.
func newCachedTestService() (*AuthService, *fakeUserStore, *fakeCache) {
	users := newFakeUserStore()
	fc := newFakeCache()
	codec := &utils.TokenCodec{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	return NewAuthService(users, newFakeTokenStore(), fc, codec, 4), users, fc
}

func TestVerify_ServesCachedProfile(t *testing.T) {
	t.Parallel()
	svc, users, _ := newCachedTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	// Change the row behind the cache without purging it.  Verify must
	// answer from the cached profile, so the old email comes back.
	users.mu.Lock()
	u := users.users[reg.ID]
	u.Email = "renamed@ex.com"
	users.users[reg.ID] = u
	users.mu.Unlock()

	p, err := svc.Verify(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@ex.com", p.Email)
}

func TestVerify_RejectsCachedInactivePrincipal(t *testing.T) {
	t.Parallel()
	svc, _, fc := newCachedTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice@ex.com", "Str0ng!Pass")
	require.NoError(t, err)
	pair, _, err := svc.Login(ctx, "alice@ex.com", "Str0ng!Pass", "", "")
	require.NoError(t, err)

	// Deactivation elsewhere left an inactive profile in the cache; the
	// cached entry alone must be enough to end the session.
	b, err := json.Marshal(model.Principal{ID: reg.ID, Email: reg.Email, Role: reg.Role, IsActive: false})
	require.NoError(t, err)
	fc.Set(ctx, cache.ProfileKey(reg.ID), b)

	_, err = svc.Verify(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
