package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
)

// ConnectRedis builds a client from a redis:// URL or a host:port address
// and verifies it with a ping.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr, Password: password, DB: db}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisProfilesStore caches profile facts in Redis so every instance
// behind the load balancer sees the same invalidations.
type RedisProfilesStore struct {
	client redis.UniversalClient
	prefix string
	logger *logging.ChanneledLogger
}

func NewRedisProfilesStore(client redis.UniversalClient, prefix string, logger *logging.ChanneledLogger) *RedisProfilesStore {
	if logger != nil {
		logger.Cache().Info("Initializing redis profile cache store", "prefix", prefix)
	}
	return &RedisProfilesStore{client: client, prefix: prefix, logger: logger}
}

func (s *RedisProfilesStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisProfilesStore) GetProfileFacts(ctx context.Context, userID string) (*user.ProfileFacts, bool, error) {
	start := time.Now()
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logOp("get", userID, false, start)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get profile: %w", err)
	}

	var facts user.ProfileFacts
	if err := json.Unmarshal(raw, &facts); err != nil {
		// A corrupt entry is a miss; the next Set overwrites it.
		s.logOp("get", userID, false, start)
		return nil, false, nil
	}
	s.logOp("get", userID, true, start)
	return &facts, true, nil
}

func (s *RedisProfilesStore) SetProfileFacts(ctx context.Context, userID string, facts *user.ProfileFacts, ttl time.Duration) error {
	if facts == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}
	return nil
}

func (s *RedisProfilesStore) InvalidateProfile(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete profile: %w", err)
	}
	if s.logger != nil {
		s.logger.Cache().Info("Profile cache invalidated", "backend", "redis", "userId", logging.SanitizeUserID(userID))
	}
	return nil
}

func (s *RedisProfilesStore) logOp(op, userID string, hit bool, start time.Time) {
	if s.logger == nil {
		return
	}
	s.logger.Cache().Debug("Cache operation", "operation", op, "type", "profile", "backend", "redis",
		"userId", logging.SanitizeUserID(userID), "hit", hit, "duration", time.Since(start))
}
