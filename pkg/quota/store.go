// Package quota implements the shared usage counter store and the
// plan-ceiling enforcement gate.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/tileboardhq/tileboard/pkg/cache"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/plans"
)

// Store is a counter store keyed by (subject, quota kind), backed by
// Redis so every server instance observes consistent counts.
type Store struct {
	cache     *cache.Client
	retention time.Duration
}

// NewStore creates a usage counter store. retention is the guest
// counter expiry window, refreshed on every guest write.
func NewStore(cache *cache.Client, retention time.Duration) *Store {
	return &Store{cache: cache, retention: retention}
}

// GuestKey is the cookie-identity counter key for a guest
func GuestKey(guestID string, kind plans.QuotaKind) string {
	return fmt.Sprintf("guest:%s:usage:%s", guestID, kind)
}

// GuestIPKey is the shadow counter key correlated with the client IP
func GuestIPKey(ip string, kind plans.QuotaKind) string {
	return fmt.Sprintf("guest_ip:%s:usage:%s", ip, kind)
}

// MemberKey is the persistent counter key for a member
func MemberKey(userID string, kind plans.QuotaKind) string {
	return fmt.Sprintf("member:%s:usage:%s", userID, kind)
}

// SubjectKey picks the primary counter key for an identity
func SubjectKey(id identity.Identity, kind plans.QuotaKind) string {
	if id.IsMember() {
		return MemberKey(id.MemberID, kind)
	}
	return GuestKey(id.GuestID, kind)
}

// Get reads a counter; missing keys read as zero
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	return s.cache.GetInt(ctx, key)
}

// Increment atomically bumps a counter and returns the new value
func (s *Store) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	return s.cache.IncrBy(ctx, key, amount)
}

// IncrementWithCeiling atomically bumps a counter unless the result
// would exceed the ceiling, in which case the counter is unchanged
func (s *Store) IncrementWithCeiling(ctx context.Context, key string, amount, ceiling int64) (bool, int64, error) {
	return s.cache.IncrByWithCeiling(ctx, key, amount, ceiling)
}

// Touch refreshes the retention window on a guest counter. Member
// counters persist and are never expired here.
func (s *Store) Touch(ctx context.Context, key string) error {
	return s.cache.Expire(ctx, key, s.retention)
}
