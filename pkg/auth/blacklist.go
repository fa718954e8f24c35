package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/onyxia-store/onyxia/pkg/cache"
)

// Blacklist records revoked tokens. An entry only has to outlive the token
// it revokes.
type Blacklist interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// CacheBlacklist stores a SHA-256 digest of each revoked token in a cache.Store
// with a TTL ending at the token's expiry.
type CacheBlacklist struct {
	store cache.Store
	now   func() time.Time
}

func NewBlacklist(store cache.Store) *CacheBlacklist {
	return &CacheBlacklist{store: store, now: time.Now}
}

// WithClock must match the clock of the backing store when both are faked.
func (b *CacheBlacklist) WithClock(now func() time.Time) *CacheBlacklist {
	b.now = now
	return b
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:" + hex.EncodeToString(sum[:])
}

func (b *CacheBlacklist) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		// already expired; validation rejects it anyway
		return nil
	}
	return b.store.Set(ctx, blacklistKey(token), []byte("1"), ttl)
}

func (b *CacheBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return b.store.Exists(ctx, blacklistKey(token))
}
