// Package redis provides a Redis-backed preferences.Store so preference
// state survives restarts and is shared across bridge processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/estia-labs/chatbridge/preferences"
)

const storeName = "preferences-redis"

type (
	// Options configures the Redis store.
	Options struct {
		// Client is the Redis client.
		Client *redis.Client
		// KeyPrefix namespaces the store's keys. Defaults to "chatbridge:prefs".
		KeyPrefix string
	}

	// Store implements preferences.Store on two Redis hashes per
	// (user, thread) pair: one for favorites, one for hidden items. Hash
	// fields are item codes, values the stored snapshots.
	Store struct {
		rdb    commands
		prefix string
	}

	// commands is the slice of the Redis API the store uses.
	commands interface {
		HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
		HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
		HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
		Ping(ctx context.Context) *redis.StatusCmd
	}
)

// New returns a Store backed by the given Redis client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return newStoreWithCommands(opts.Client, opts.KeyPrefix)
}

func newStoreWithCommands(rdb commands, prefix string) (*Store, error) {
	if rdb == nil {
		return nil, errors.New("redis commands are required")
	}
	if prefix == "" {
		prefix = "chatbridge:prefs"
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string {
	return storeName
}

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) favKey(userID, threadID string) string {
	return fmt.Sprintf("%s:%s:%s:fav", s.prefix, userID, threadID)
}

func (s *Store) hiddenKey(userID, threadID string) string {
	return fmt.Sprintf("%s:%s:%s:hidden", s.prefix, userID, threadID)
}

// Get implements preferences.Store.
func (s *Store) Get(ctx context.Context, userID, threadID string) (preferences.Record, error) {
	if err := validateKey(userID, threadID); err != nil {
		return preferences.Record{}, err
	}
	rec := preferences.NewRecord()

	favs, err := s.rdb.HGetAll(ctx, s.favKey(userID, threadID)).Result()
	if err != nil {
		return preferences.Record{}, fmt.Errorf("load favorites: %w", err)
	}
	for code, snapshot := range favs {
		rec.Favorites[code] = json.RawMessage(snapshot)
	}

	hidden, err := s.rdb.HGetAll(ctx, s.hiddenKey(userID, threadID)).Result()
	if err != nil {
		return preferences.Record{}, fmt.Errorf("load hidden: %w", err)
	}
	for code, snapshot := range hidden {
		rec.Hidden[code] = json.RawMessage(snapshot)
	}
	return rec, nil
}

// AddFavorite implements preferences.Store.
func (s *Store) AddFavorite(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (preferences.Record, error) {
	return s.set(ctx, userID, threadID, code, snapshot, s.favKey)
}

// RemoveFavorite implements preferences.Store.
func (s *Store) RemoveFavorite(ctx context.Context, userID, threadID, code string) (preferences.Record, error) {
	return s.del(ctx, userID, threadID, code, s.favKey)
}

// Hide implements preferences.Store.
func (s *Store) Hide(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (preferences.Record, error) {
	return s.set(ctx, userID, threadID, code, snapshot, s.hiddenKey)
}

// Unhide implements preferences.Store.
func (s *Store) Unhide(ctx context.Context, userID, threadID, code string) (preferences.Record, error) {
	return s.del(ctx, userID, threadID, code, s.hiddenKey)
}

func (s *Store) set(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage, key func(string, string) string) (preferences.Record, error) {
	if err := validateMutation(userID, threadID, code); err != nil {
		return preferences.Record{}, err
	}
	if len(snapshot) == 0 {
		snapshot = json.RawMessage("{}")
	}
	if err := s.rdb.HSet(ctx, key(userID, threadID), code, string(snapshot)).Err(); err != nil {
		return preferences.Record{}, fmt.Errorf("store snapshot: %w", err)
	}
	return s.Get(ctx, userID, threadID)
}

func (s *Store) del(ctx context.Context, userID, threadID, code string, key func(string, string) string) (preferences.Record, error) {
	if err := validateMutation(userID, threadID, code); err != nil {
		return preferences.Record{}, err
	}
	if err := s.rdb.HDel(ctx, key(userID, threadID), code).Err(); err != nil {
		return preferences.Record{}, fmt.Errorf("remove snapshot: %w", err)
	}
	return s.Get(ctx, userID, threadID)
}

func validateKey(userID, threadID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	if threadID == "" {
		return errors.New("thread id is required")
	}
	return nil
}

func validateMutation(userID, threadID, code string) error {
	if err := validateKey(userID, threadID); err != nil {
		return err
	}
	if code == "" {
		return errors.New("item code is required")
	}
	return nil
}
