// Package services provides application-level services that orchestrate
// business logic and coordinate between repositories and domain entities.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sharpline/sharpline-go/internal/domain/entities/visibility"
	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/interfaces"
	"github.com/sharpline/sharpline-go/internal/infrastructure/messaging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/performance"
	"github.com/sharpline/sharpline-go/pkg/config"
)

// ProfileSource says where a loaded profile came from.
type ProfileSource string

const (
	ProfileSourceAnonymous  ProfileSource = "anonymous"
	ProfileSourceDatabase   ProfileSource = "database"
	ProfileSourceCache      ProfileSource = "cache"
	ProfileSourceFailClosed ProfileSource = "fail_closed"
)

// ProfileResult is a resolved profile. A consumer only evaluates rules
// once it holds one.
type ProfileResult struct {
	Profile visibility.Profile `json:"profile"`
	Source  ProfileSource      `json:"source"`
}

// ProfileServiceConfig selects the staleness policy.
type ProfileServiceConfig struct {
	CacheMode     string
	CacheTTL      time.Duration
	LoadTimeout   time.Duration
	DefaultDevice visibility.DeviceClass
}

// ProfileServiceConfigFromEnv reads the policy from pkg/config.
func ProfileServiceConfigFromEnv() ProfileServiceConfig {
	return ProfileServiceConfig{
		CacheMode:     config.ProfileCacheMode,
		CacheTTL:      config.ProfileCacheTTL,
		LoadTimeout:   config.ProfileLoadTimeout,
		DefaultDevice: visibility.ParseDeviceClass(config.DefaultDeviceClass),
	}
}

// ProfileService builds visibility profiles for viewers and owns the
// staleness policy. In request mode every call reads the repository; in
// session mode facts are cached per user until the TTL passes or the
// profile is invalidated.
type ProfileService struct {
	factsRepo   user.ProfileFactsRepository
	cache       interfaces.ProfileCache
	publisher   messaging.ProfileEventPublisher
	config      ProfileServiceConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	// generations counts invalidations per user. A load only caches the
	// facts it read if no invalidation landed while it was reading.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewProfileService creates a profile service. cache may be nil, which
// forces request mode; publisher may be nil.
func NewProfileService(
	factsRepo user.ProfileFactsRepository,
	cache interfaces.ProfileCache,
	publisher messaging.ProfileEventPublisher,
	cfg ProfileServiceConfig,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *ProfileService {
	if cfg.CacheMode != config.ProfileCacheModeSession || cache == nil {
		cfg.CacheMode = config.ProfileCacheModeRequest
		cache = nil
	}
	if !cfg.DefaultDevice.IsValid() {
		cfg.DefaultDevice = visibility.DeviceDesktop
	}
	return &ProfileService{
		factsRepo:   factsRepo,
		cache:       cache,
		publisher:   publisher,
		config:      cfg,
		logger:      logger,
		perfTracker: perfTracker,
		generations: make(map[string]uint64),
	}
}

// CacheMode returns the effective staleness policy.
func (s *ProfileService) CacheMode() string {
	return s.config.CacheMode
}

// DeviceClassFor classifies the viewer's reported viewport, falling back
// to the configured default when none was reported.
func (s *ProfileService) DeviceClassFor(viewer user.Viewer) visibility.DeviceClass {
	if viewer.ViewportWidth > 0 {
		return visibility.ClassifyDevice(viewer.ViewportWidth)
	}
	return s.config.DefaultDevice
}

// LoadProfile resolves the viewer's profile. Anonymous viewers and
// repository failures yield the fail-closed profile with a nil error.
// The only error is ctx's, returned when the caller went away before the
// facts arrived; the late result is then discarded and never cached.
func (s *ProfileService) LoadProfile(ctx context.Context, viewer user.Viewer) (ProfileResult, error) {
	device := s.DeviceClassFor(viewer)

	if viewer.IsAnonymous() {
		return ProfileResult{Profile: visibility.FailClosedProfile(device), Source: ProfileSourceAnonymous}, nil
	}
	if err := ctx.Err(); err != nil {
		return ProfileResult{}, err
	}

	marker := s.perfTracker.StartOperation("load_profile")
	defer marker.Complete()
	userID := viewer.UserID

	if s.cache != nil {
		facts, found, err := s.cache.GetProfileFacts(ctx, userID)
		if err != nil {
			s.logger.Cache().Warn("Profile cache read failed, loading from database", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		}
		if found {
			marker.AddCacheHit()
			marker.SetSuccess(true)
			return ProfileResult{Profile: profileFromFacts(facts, device), Source: ProfileSourceCache}, nil
		}
		marker.AddCacheMiss()
	}

	generation := s.generation(userID)
	facts, err := s.fetchFacts(ctx, userID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Auth().Debug("Discarding profile load for departed caller", "userId", logging.SanitizeUserID(userID))
		marker.SetError(ctxErr)
		return ProfileResult{}, ctxErr
	}
	if err != nil {
		s.logger.Auth().Error("Profile load failed, using fail-closed profile", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		marker.SetError(err)
		return ProfileResult{Profile: visibility.FailClosedProfile(device), Source: ProfileSourceFailClosed}, nil
	}

	if s.cache != nil {
		s.storeFacts(ctx, userID, facts, generation)
	}

	marker.SetSuccess(true)
	return ProfileResult{Profile: profileFromFacts(facts, device), Source: ProfileSourceDatabase}, nil
}

// fetchFacts reads the three fact sets concurrently under the load timeout.
func (s *ProfileService) fetchFacts(ctx context.Context, userID string) (*user.ProfileFacts, error) {
	if s.config.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.LoadTimeout)
		defer cancel()
	}

	var facts user.ProfileFacts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balance, err := s.factsRepo.FindTokenBalance(gctx, userID)
		if err != nil {
			return fmt.Errorf("token balance: %w", err)
		}
		facts.TokenBalance = balance
		return nil
	})
	g.Go(func() error {
		ids, err := s.factsRepo.FindUsedAnalyzerIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("used analyzers: %w", err)
		}
		facts.UsedAnalyzerIDs = ids
		return nil
	})
	g.Go(func() error {
		ids, err := s.factsRepo.FindJoinedContestIDs(gctx, userID)
		if err != nil {
			return fmt.Errorf("joined contests: %w", err)
		}
		facts.JoinedContestIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &facts, nil
}

// storeFacts caches facts read at the given generation. Facts read before
// an invalidation are never left in the cache: the write is skipped when
// the generation already moved, and undone when it moved during the write.
func (s *ProfileService) storeFacts(ctx context.Context, userID string, facts *user.ProfileFacts, generation uint64) {
	if s.generation(userID) != generation {
		s.logger.Cache().Debug("Skipping cache write for profile invalidated during load", "userId", logging.SanitizeUserID(userID))
		return
	}
	if err := s.cache.SetProfileFacts(ctx, userID, facts, s.config.CacheTTL); err != nil {
		s.logger.Cache().Warn("Profile cache write failed", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		return
	}
	if s.generation(userID) != generation {
		if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
			s.logger.Cache().Warn("Failed to drop profile invalidated during cache write", "error", err.Error(), "userId", logging.SanitizeUserID(userID))
		}
	}
}

func (s *ProfileService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// Invalidate drops the user's cached facts and notifies their connected
// clients so they reload. It is safe to call in request mode.
func (s *ProfileService) Invalidate(ctx context.Context, userID, reason string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.InvalidateProfile(ctx, userID); err != nil {
			return fmt.Errorf("failed to invalidate profile: %w", err)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishProfileInvalidated(userID, reason)
	}
	s.logger.Auth().Info("Profile invalidated", "userId", logging.SanitizeUserID(userID), "reason", reason, "mode", s.config.CacheMode)
	return nil
}

func profileFromFacts(facts *user.ProfileFacts, device visibility.DeviceClass) visibility.Profile {
	return visibility.NewProfile(true, facts.TokenBalance, facts.UsedAnalyzerIDs, facts.JoinedContestIDs, device)
}
