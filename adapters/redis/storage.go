package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"travelkit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"TRAVELKIT_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password" env:"TRAVELKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"TRAVELKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"TRAVELKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// KeyPrefix namespaces every key the store writes.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"TRAVELKIT_REDIS_KEY_PREFIX"`
	// CacheTTL bounds how long an assembled snapshot is cached; zero disables the cache.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"TRAVELKIT_REDIS_CACHE_TTL"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "travelkit",
		CacheTTL:     5 * time.Minute,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - {prefix}:user:{user_id}:stats -> hash of stat name to counter
// - {prefix}:user:{user_id}:visited -> set of destination ids
// - {prefix}:user:{user_id}:profile -> hash with verified, budget_range, favorite_types (JSON)
// - {prefix}:user:{user_id}:snapshot -> JSON blob of the assembled snapshot, with TTL
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: config.KeyPrefix, ttl: config.CacheTTL}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	def := DefaultConfig()
	return &Store{client: client, prefix: def.KeyPrefix, ttl: def.CacheTTL}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(userID core.UserID, part string) string {
	if s.prefix == "" {
		return fmt.Sprintf("user:%s:%s", userID, part)
	}
	return fmt.Sprintf("%s:user:%s:%s", s.prefix, userID, part)
}

func (s *Store) statsKey(userID core.UserID) string    { return s.key(userID, "stats") }
func (s *Store) visitedKey(userID core.UserID) string  { return s.key(userID, "visited") }
func (s *Store) profileKey(userID core.UserID) string  { return s.key(userID, "profile") }
func (s *Store) snapshotKey(userID core.UserID) string { return s.key(userID, "snapshot") }

// IncrementStat atomically adds delta to a counter. Redis rejects increments that overflow.
func (s *Store) IncrementStat(ctx context.Context, userID core.UserID, stat core.Stat, delta int64) (int64, error) {
	total, err := s.client.HIncrBy(ctx, s.statsKey(userID), string(stat), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", stat, err)
	}

	// Invalidate cached snapshot since it changed
	s.invalidateSnapshotCache(ctx, userID)

	return total, nil
}

// AddVisit adds a destination to the visited set and reports whether it was new.
func (s *Store) AddVisit(ctx context.Context, userID core.UserID, destinationID string) (bool, error) {
	n, err := s.client.SAdd(ctx, s.visitedKey(userID), destinationID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to add visit: %w", err)
	}
	if n > 0 {
		s.invalidateSnapshotCache(ctx, userID)
	}
	return n > 0, nil
}

func (s *Store) SetVerified(ctx context.Context, userID core.UserID, verified bool) error {
	if err := s.client.HSet(ctx, s.profileKey(userID), "verified", strconv.FormatBool(verified)).Err(); err != nil {
		return fmt.Errorf("failed to set verified: %w", err)
	}
	s.invalidateSnapshotCache(ctx, userID)
	return nil
}

func (s *Store) SetPreferences(ctx context.Context, userID core.UserID, prefs core.Preferences) error {
	fields, err := preferenceFields(prefs)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.profileKey(userID), fields).Err(); err != nil {
		return fmt.Errorf("failed to set preferences: %w", err)
	}
	s.invalidateSnapshotCache(ctx, userID)
	return nil
}

// SaveSnapshot replaces every key of the user in one MULTI/EXEC transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap core.ActivitySnapshot) error {
	userID := snap.UserID
	prefs, err := preferenceFields(snap.Preferences)
	if err != nil {
		return err
	}
	stats := make(map[string]any, len(core.AllStats))
	for _, st := range core.AllStats {
		stats[string(st)] = snap.Stats.Get(st)
	}
	prefs["verified"] = strconv.FormatBool(snap.Verified)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.statsKey(userID), s.visitedKey(userID), s.profileKey(userID), s.snapshotKey(userID))
		pipe.HSet(ctx, s.statsKey(userID), stats)
		if len(snap.VisitedDestinationIDs) > 0 {
			members := make([]any, 0, len(snap.VisitedDestinationIDs))
			for _, id := range snap.VisitedDestinationIDs {
				members = append(members, id)
			}
			pipe.SAdd(ctx, s.visitedKey(userID), members...)
		}
		pipe.HSet(ctx, s.profileKey(userID), prefs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot serves the cached snapshot or rebuilds it from the data keys. The
// rebuild runs under WATCH on those keys, so a write landing between the read and
// the cache fill aborts the fill instead of caching a stale snapshot.
func (s *Store) GetSnapshot(ctx context.Context, userID core.UserID) (core.ActivitySnapshot, error) {
	if cached, err := s.getCachedSnapshot(ctx, userID); err == nil {
		return cached, nil
	}
	if s.ttl <= 0 {
		return s.buildSnapshotFromKeys(ctx, s.client, userID)
	}

	var snap core.ActivitySnapshot
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var err error
		if snap, err = s.buildSnapshotFromKeys(ctx, tx, userID); err != nil {
			return err
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.snapshotKey(userID), data, s.ttl)
			return nil
		})
		return err
	}, s.statsKey(userID), s.visitedKey(userID), s.profileKey(userID))

	switch {
	case errors.Is(err, redis.TxFailedErr):
		// a concurrent write won; rebuild without caching
		return s.buildSnapshotFromKeys(ctx, s.client, userID)
	case err != nil:
		return core.ActivitySnapshot{}, err
	}
	return snap, nil
}

func (s *Store) getCachedSnapshot(ctx context.Context, userID core.UserID) (core.ActivitySnapshot, error) {
	if s.ttl <= 0 {
		return core.ActivitySnapshot{}, redis.Nil
	}
	data, err := s.client.Get(ctx, s.snapshotKey(userID)).Bytes()
	if err != nil {
		return core.ActivitySnapshot{}, err
	}

	var snap core.ActivitySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.ActivitySnapshot{}, err
	}

	return snap, nil
}

func (s *Store) invalidateSnapshotCache(ctx context.Context, userID core.UserID) {
	s.client.Del(ctx, s.snapshotKey(userID))
}

// pipeliner is satisfied by both *redis.Client and *redis.Tx.
type pipeliner interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// buildSnapshotFromKeys reconstructs the snapshot from the stats, visited and profile keys.
func (s *Store) buildSnapshotFromKeys(ctx context.Context, c pipeliner, userID core.UserID) (core.ActivitySnapshot, error) {
	var (
		statsCmd   *redis.MapStringStringCmd
		visitedCmd *redis.StringSliceCmd
		profileCmd *redis.MapStringStringCmd
	)
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		statsCmd = pipe.HGetAll(ctx, s.statsKey(userID))
		visitedCmd = pipe.SMembers(ctx, s.visitedKey(userID))
		profileCmd = pipe.HGetAll(ctx, s.profileKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return core.ActivitySnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap := core.NewSnapshot(userID)
	for _, st := range core.AllStats {
		raw, ok := statsCmd.Val()[string(st)]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue // Skip invalid entries
		}
		snap.Stats.Set(st, v)
	}

	visited := visitedCmd.Val()
	sort.Strings(visited)
	snap.VisitedDestinationIDs = append(snap.VisitedDestinationIDs, visited...)

	profile := profileCmd.Val()
	snap.Verified, _ = strconv.ParseBool(profile["verified"])
	snap.Preferences.BudgetRange = core.BudgetRange(profile["budget_range"])
	if raw := profile["favorite_types"]; raw != "" {
		var types []string
		if err := json.Unmarshal([]byte(raw), &types); err == nil {
			snap.Preferences.FavoriteTypes = types
		}
	}

	return snap, nil
}

func preferenceFields(prefs core.Preferences) (map[string]any, error) {
	types := prefs.FavoriteTypes
	if types == nil {
		types = []string{}
	}
	raw, err := json.Marshal(types)
	if err != nil {
		return nil, fmt.Errorf("failed to encode favorite types: %w", err)
	}
	return map[string]any{
		"budget_range":   string(prefs.BudgetRange),
		"favorite_types": string(raw),
	}, nil
}
