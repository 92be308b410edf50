// Package interfaces defines the profile cache contract shared by the
// in-memory and Redis stores.
package interfaces

import (
	"context"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/user"
)

// ProfileCache holds the persisted facts behind a user's visibility
// profile for the session-scoped staleness policy. Device class is never
// stored; it belongs to the request.
type ProfileCache interface {
	// GetProfileFacts reports a miss with found=false. Expired entries are misses.
	GetProfileFacts(ctx context.Context, userID string) (facts *user.ProfileFacts, found bool, err error)
	SetProfileFacts(ctx context.Context, userID string, facts *user.ProfileFacts, ttl time.Duration) error
	InvalidateProfile(ctx context.Context, userID string) error
}

// ExpiringCache is implemented by stores that need periodic sweeping.
type ExpiringCache interface {
	PurgeExpired(now time.Time) int
	Len() int
}
