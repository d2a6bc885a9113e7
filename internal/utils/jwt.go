package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing turns bearer secrets into opaque store handles
	"encoding/hex"  // hex encoding for digests
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // jti claim values
)

// Token kinds embedded in the claim set.  Access and refresh tokens are
// signed with different secrets AND carry a kind tag; verification checks
// both, so a token signed for one kind can never pass as the other even
// if the two secrets were misconfigured to the same value.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Verification failure taxonomy.  Callers collapse all three into a
// single authentication failure at the HTTP boundary but the distinction
// is kept for diagnostics.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed or forged")
	ErrTokenKind      = errors.New("token kind mismatch")
)

// Claims is the only claim shape this service signs.  Kind distinguishes
// access from refresh tokens; refresh tokens omit Role since the role is
// re-read from the user row at rotation time.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	Kind  string `json:"kind"`
}

// TokenCodec signs and verifies the two token kinds.  Secrets and TTLs
// come from configuration; nothing here is persisted.
type TokenCodec struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// SignedToken bundles a serialized JWT with its expiry so handlers can
// echo the expiry back to clients without re-parsing the token.
type SignedToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// IssueAccess builds and signs a short-lived HS256 access token carrying
// the principal's id, email and role.
func (tc *TokenCodec) IssueAccess(userID uint64, email, role string) (SignedToken, error) {
	return tc.issue(tc.AccessSecret, tc.AccessTTL, userID, email, role, KindAccess)
}

// IssueRefresh builds and signs a long-lived HS256 refresh token.  The
// raw string goes back to the client; only its Hash() is ever stored.
func (tc *TokenCodec) IssueRefresh(userID uint64, email string) (SignedToken, error) {
	return tc.issue(tc.RefreshSecret, tc.RefreshTTL, userID, email, "", KindRefresh)
}

func (tc *TokenCodec) issue(secret []byte, ttl time.Duration, userID uint64, email, role, kind string) (SignedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
		Kind:  kind,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// VerifyAccess checks signature, expiry and kind of an access token and
// returns its claims.
func (tc *TokenCodec) VerifyAccess(token string) (*Claims, error) {
	return tc.verify(token, tc.AccessSecret, KindAccess)
}

// VerifyRefresh is the refresh-kind counterpart of VerifyAccess.
func (tc *TokenCodec) VerifyRefresh(token string) (*Claims, error) {
	return tc.verify(token, tc.RefreshSecret, KindRefresh)
}

func (tc *TokenCodec) verify(token string, secret []byte, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject any signing method other than HMAC before touching the
		// secret; asymmetric-alg confusion attacks die here.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != kind {
		return nil, ErrTokenKind
	}
	return claims, nil
}

// UserID extracts the numeric subject of a verified claim set.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenMalformed
	}
	return id, nil
}

// HashToken returns the SHA-256 digest of a bearer token as a hex string.
// Storing only the hash prevents attackers from replaying sessions out of
// stolen database rows; the literal token string is never stored or logged.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ParseExpiry converts a duration spec of the form "<int><unit>" with
// unit s, m, h or d (e.g. "15m", "7d") into a time.Duration.  Any other
// shape is a configuration error.
func ParseExpiry(spec string) (time.Duration, error) {
	spec = strings.TrimSpace(spec)
	if len(spec) < 2 {
		return 0, fmt.Errorf("invalid duration spec %q", spec)
	}
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration spec %q", spec)
	}
	switch spec[len(spec)-1] {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit in %q", spec)
	}
}
