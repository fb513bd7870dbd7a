package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"ecorewards/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"ECOREWARDS_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" env:"ECOREWARDS_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"ECOREWARDS_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	// KeyPrefix namespaces every key, e.g. "ecorewards:".
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"ECOREWARDS_REDIS_KEY_PREFIX"`
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
	}
}

// Store keeps profiles in Redis.
// Data structure:
// - {prefix}user:{user_id}:profile -> JSON blob of UserProfile
// - {prefix}users -> set of known user ids
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis-backed store with the provided configuration
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

	return &Store{client: client, prefix: config.KeyPrefix}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// profileKey generates the Redis key for a user's profile
func (s *Store) profileKey(userID core.UserID) string {
	return fmt.Sprintf("%suser:%s:profile", s.prefix, userID)
}

// usersKey is the set of every user with a stored profile
func (s *Store) usersKey() string {
	return s.prefix + "users"
}

// Load fetches and decodes a profile. A missing key maps to core.ErrNotFound.
func (s *Store) Load(ctx context.Context, userID core.UserID) (core.UserProfile, error) {
	data, err := s.client.Get(ctx, s.profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile core.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return core.UserProfile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

// Save writes the profile and registers the user in one MULTI/EXEC transaction.
func (s *Store) Save(ctx context.Context, profile core.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.profileKey(profile.UserID), data, 0)
		pipe.SAdd(ctx, s.usersKey(), string(profile.UserID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Users lists every user with a stored profile, sorted.
func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	members, err := s.client.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(members)
	out := make([]core.UserID, len(members))
	for i, m := range members {
		out[i] = core.UserID(m)
	}
	return out, nil
}
