// Package redisstore keeps conversation state in Redis so several bot
// replicas can share it and restarts do not drop in-flight conversations.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/feedbot/core/logger"
	"github.com/m3rciful/feedbot/internal/feedback"
)

// DefaultPrefix namespaces conversation keys.
const DefaultPrefix = "feedbot:conv:"

// Store implements feedback.Store on top of a Redis client.
type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New builds a store. ttl <= 0 keeps keys until overwritten.
func New(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Conversation.Info("redis connected",
		slog.String("event", "store.connect"),
		slog.String("store", "redis"),
		slog.String("host", opts.Addr),
	)
	return client, nil
}

func (s *Store) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

// Load returns the stored state. Missing or unreadable entries yield Menu{}.
func (s *Store) Load(ctx context.Context, userID int64) (feedback.State, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return feedback.Menu{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	st, err := Decode(raw)
	if err != nil {
		logger.Warn(ctx, "store.conversation", "store.decode",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return feedback.Menu{}, nil
	}
	return st, nil
}

// Save overwrites the user's state and refreshes its TTL.
func (s *Store) Save(ctx context.Context, userID int64, st feedback.State) error {
	raw, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Encode serializes a state as its JSON snapshot.
func Encode(st feedback.State) ([]byte, error) {
	if st == nil {
		st = feedback.Menu{}
	}
	raw, err := json.Marshal(feedback.SnapshotOf(st))
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}
	return raw, nil
}

// Decode parses a JSON snapshot and validates it.
func Decode(raw []byte) (feedback.State, error) {
	var snap feedback.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return snap.State()
}
