package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rewardkit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
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

// Store implements engine.Storage on Redis.
// Data structure:
// - reward:user:{user_id} -> hash {xp, level, updated}
// - reward:marker:{kind}:{user_id}:{scope_id} -> "1" (SETNX idempotency marker)
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed storage with the provided configuration
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func userKey(user core.UserID) string {
	return fmt.Sprintf("reward:user:%s", user)
}

func markerKey(kind core.ScopeKind, user core.UserID, scope core.ScopeID) string {
	return fmt.Sprintf("reward:marker:%s:%s:%s", kind, user, scope)
}

// createUserScript provisions the hash only when absent, so re-running
// account creation cannot reset an existing ledger.
var createUserScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 1 then
		return 0
	end
	redis.call('HSET', key, 'xp', 0, 'level', 1, 'updated', ARGV[1])
	return 1
`)

// addXPScript is the atomic increment-and-relevel unit: missing users
// fail without mutation, the increment and the level derived from the
// fresh total land in one script execution.
var addXPScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 0 then
		return redis.error_reply('user not found')
	end
	local delta = tonumber(ARGV[1])
	local total = redis.call('HINCRBY', key, 'xp', delta)
	local level = 1
	for i = 2, #ARGV - 1 do
		if total >= tonumber(ARGV[i]) then
			level = i - 1
		end
	end
	redis.call('HSET', key, 'level', level, 'updated', ARGV[#ARGV])
	return {total, level}
`)

func (s *Store) CreateUser(ctx context.Context, user core.UserID) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := createUserScript.Run(ctx, s.client, []string{userKey(user)}, now).Err(); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) AddXP(ctx context.Context, user core.UserID, delta int64) (core.Progress, error) {
	now := time.Now().UTC()
	args := make([]interface{}, 0, core.MaxLevel+2)
	args = append(args, delta)
	for _, min := range core.LevelThresholds() {
		args = append(args, min)
	}
	args = append(args, now.Format(time.RFC3339Nano))

	result, err := addXPScript.Run(ctx, s.client, []string{userKey(user)}, args...).Result()
	if err != nil {
		if strings.Contains(err.Error(), "user not found") {
			return core.Progress{}, core.ErrUserNotFound
		}
		return core.Progress{}, fmt.Errorf("failed to add xp: %w", err)
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return core.Progress{}, fmt.Errorf("unexpected result shape from Redis script: %v", result)
	}
	total, _ := vals[0].(int64)
	level, _ := vals[1].(int64)

	return core.Progress{UserID: user, XP: total, Level: int(level), Updated: now}, nil
}

func (s *Store) GetProgress(ctx context.Context, user core.UserID) (core.Progress, error) {
	fields, err := s.client.HGetAll(ctx, userKey(user)).Result()
	if err != nil {
		return core.Progress{}, fmt.Errorf("failed to get progress: %w", err)
	}
	if len(fields) == 0 {
		return core.Progress{}, core.ErrUserNotFound
	}

	xp, err := strconv.ParseInt(fields["xp"], 10, 64)
	if err != nil {
		return core.Progress{}, fmt.Errorf("corrupt xp field for %s: %w", user, err)
	}
	level, err := strconv.Atoi(fields["level"])
	if err != nil {
		return core.Progress{}, fmt.Errorf("corrupt level field for %s: %w", user, err)
	}
	updated, _ := time.Parse(time.RFC3339Nano, fields["updated"])

	return core.Progress{UserID: user, XP: xp, Level: level, Updated: updated}, nil
}

// PutIfAbsent relies on SETNX: exactly one of any number of concurrent
// identical inserts observes true.
func (s *Store) PutIfAbsent(ctx context.Context, kind core.ScopeKind, user core.UserID, scope core.ScopeID) (bool, error) {
	inserted, err := s.client.SetNX(ctx, markerKey(kind, user, scope), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to put marker: %w", err)
	}
	return inserted, nil
}
