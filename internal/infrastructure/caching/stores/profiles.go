// Package stores provides concrete profile cache store implementations
package stores

import (
	"context"
	"sync"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
)

type profileEntry struct {
	facts     user.ProfileFacts
	expiresAt time.Time
}

// ProfilesStore caches profile facts in process memory.
type ProfilesStore struct {
	entries map[string]profileEntry
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
	now     func() time.Time
}

// NewProfilesStore creates a new in-memory profile cache store
func NewProfilesStore(logger *logging.ChanneledLogger) *ProfilesStore {
	if logger != nil {
		logger.Cache().Info("Initializing in-memory profile cache store")
	}
	return &ProfilesStore{
		entries: make(map[string]profileEntry),
		logger:  logger,
		now:     time.Now,
	}
}

func (ps *ProfilesStore) GetProfileFacts(_ context.Context, userID string) (*user.ProfileFacts, bool, error) {
	start := time.Now()
	ps.mu.RLock()
	entry, exists := ps.entries[userID]
	ps.mu.RUnlock()

	hit := exists && ps.now().Before(entry.expiresAt)
	if ps.logger != nil {
		ps.logger.Cache().Debug("Cache operation", "operation", "get", "type", "profile",
			"userId", logging.SanitizeUserID(userID), "hit", hit, "duration", time.Since(start))
	}
	if !hit {
		return nil, false, nil
	}

	facts := cloneFacts(entry.facts)
	return &facts, true, nil
}

func (ps *ProfilesStore) SetProfileFacts(_ context.Context, userID string, facts *user.ProfileFacts, ttl time.Duration) error {
	if facts == nil || ttl <= 0 {
		return nil
	}
	ps.mu.Lock()
	ps.entries[userID] = profileEntry{facts: cloneFacts(*facts), expiresAt: ps.now().Add(ttl)}
	ps.mu.Unlock()

	if ps.logger != nil {
		ps.logger.Cache().Debug("Cache operation", "operation", "set", "type", "profile",
			"userId", logging.SanitizeUserID(userID), "ttl", ttl)
	}
	return nil
}

func (ps *ProfilesStore) InvalidateProfile(_ context.Context, userID string) error {
	ps.mu.Lock()
	_, existed := ps.entries[userID]
	delete(ps.entries, userID)
	ps.mu.Unlock()

	if ps.logger != nil {
		ps.logger.Cache().Info("Profile cache invalidated", "userId", logging.SanitizeUserID(userID), "existed", existed)
	}
	return nil
}

// PurgeExpired drops entries whose TTL has passed and returns how many went.
func (ps *ProfilesStore) PurgeExpired(now time.Time) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	purged := 0
	for userID, entry := range ps.entries {
		if !now.Before(entry.expiresAt) {
			delete(ps.entries, userID)
			purged++
		}
	}
	return purged
}

func (ps *ProfilesStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.entries)
}

func cloneFacts(f user.ProfileFacts) user.ProfileFacts {
	return user.ProfileFacts{
		TokenBalance:     f.TokenBalance,
		UsedAnalyzerIDs:  append([]string(nil), f.UsedAnalyzerIDs...),
		JoinedContestIDs: append([]string(nil), f.JoinedContestIDs...),
	}
}
