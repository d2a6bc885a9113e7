// Package cache wraps Redis as a best-effort, read-through cache for hot
// profile and resource lookups.  The cache is advisory only: a miss never
// means "does not exist", and any transport failure degrades silently to
// a miss (or a no-op for writes) so correctness never depends on Redis
// being up.  Callers must invalidate by deletion, never by update.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a thin cache-aside client.  A nil underlying Redis client is
// legal and turns every operation into a miss/no-op, which is how the
// service runs when Redis is unreachable at startup.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New builds a Store with a default entry TTL.  rdb may be nil.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Get returns the cached value and true on a hit.  Errors and nil
// clients are reported as a plain miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.rdb == nil {
		return nil, false
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores a value under the default TTL, best effort.
func (s *Store) Set(ctx context.Context, key string, val []byte) {
	if s == nil || s.rdb == nil {
		return
	}
	_ = s.rdb.Set(ctx, key, val, s.ttl).Err()
}

// Delete removes entries, best effort.  Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if s == nil || s.rdb == nil || len(keys) == 0 {
		return
	}
	_ = s.rdb.Del(ctx, keys...).Err()
}

// DeletePrefix removes every key under a prefix using SCAN so large
// keyspaces are walked incrementally instead of blocking Redis with KEYS.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) {
	if s == nil || s.rdb == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = s.rdb.Del(ctx, keys...).Err()
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// Key namespaces.  Keys embed the entity kind and id so that derived
// listings can be invalidated in one DeletePrefix call.

// ProfileKey caches the Principal view of a user.
func ProfileKey(userID uint64) string { return fmt.Sprintf("profile:%d", userID) }

// ProjectKey caches a single project with its member set.
func ProjectKey(projectID uint64) string { return fmt.Sprintf("project:%d", projectID) }

// UserProjectsKey caches the "projects visible to user X" listing.
func UserProjectsKey(userID uint64) string { return fmt.Sprintf("projects:u:%d", userID) }

// UserProjectsPrefix invalidates every cached project listing at once;
// used when a visibility change affects an unknown set of viewers.
const UserProjectsPrefix = "projects:u:"
