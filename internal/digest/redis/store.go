// Package redis provides the Redis implementation of the digest store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds digest store configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL is the retention window applied when a digest transitions from
	// empty/expired to non-empty.
	TTL time.Duration
}

// Store keeps per-chat digests in Redis sorted sets. Scores come from a
// per-chat counter so entries sort by arrival order; the TTL is set only
// when the set did not exist, so the retention window counts from the
// first entry after a flush or expiry.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// appendScript atomically assigns the next score, adds the entry and
// starts the retention window on a previously empty digest.
var appendScript = redis.NewScript(`
local existed = redis.call('EXISTS', KEYS[1])
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], seq, ARGV[1])
if existed == 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
    redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return seq
`)

// drainScript atomically reads all entries in score order and deletes the
// digest together with its counter.
var drainScript = redis.NewScript(`
local entries = redis.call('ZRANGE', KEYS[1], 0, -1)
redis.call('DEL', KEYS[1], KEYS[2])
return entries
`)

// NewStore creates a new Redis digest store and verifies connectivity.
func NewStore(ctx context.Context, config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client, ttl: config.TTL}, nil
}

// Append adds a message to the chat's digest.
func (s *Store) Append(ctx context.Context, chatID int64, message string) error {
	keys := []string{digestKey(chatID), seqKey(chatID)}
	err := appendScript.Run(ctx, s.client, keys, message, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("append digest entry: %w", err)
	}
	return nil
}

// Drain atomically returns all entries in arrival order and clears the
// digest.
func (s *Store) Drain(ctx context.Context, chatID int64) ([]string, error) {
	keys := []string{digestKey(chatID), seqKey(chatID)}
	entries, err := drainScript.Run(ctx, s.client, keys).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("drain digest: %w", err)
	}
	return entries, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func digestKey(chatID int64) string {
	return fmt.Sprintf("digest:%d", chatID)
}

func seqKey(chatID int64) string {
	return fmt.Sprintf("digest:%d:seq", chatID)
}
