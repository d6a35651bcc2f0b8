package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/carefeed/logging"
)

// TTL is the maximum age of an entry served by Get. It applies to every key.
const TTL = 24 * time.Hour

// DefaultPrefix namespaces every key the Store writes to its Backend.
const DefaultPrefix = "@carefeed_cache_"

// Expired entries are parked under prefix+staleSegment+key so GetStale can
// still serve them. Logical keys must not begin with this segment.
const staleSegment = "stale:"

// Entry is the serialized form of a cached value.
type Entry struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"storedAt"`
}

// Staleness describes a value returned by GetStale.
type Staleness struct {
	StoredAt time.Time
	Age      time.Duration
	// Evicted reports that Get already expired the entry and it was served
	// from the stale slot.
	Evicted bool
}

// Observer receives storage failures that the Store swallows.
type Observer interface {
	StorageError(op string)
}

type nopObserver struct{}

func (nopObserver) StorageError(string) {}

// Store layers TTL semantics and a stale-read path over a Backend. All
// backend failures are logged and treated as cache misses; nothing it does
// returns an error to the caller.
type Store struct {
	backend  Backend
	prefix   string
	now      func() time.Time
	logger   *zap.Logger
	observer Observer
}

// Option customizes a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewStore wraps backend. The returned Store is safe for concurrent use as
// long as the backend is.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		prefix:   DefaultPrefix,
		now:      time.Now,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = logging.Component(s.logger, "cache")
	return s
}

// Prefix returns the namespace applied to backend keys.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) freshKey(key string) string { return s.prefix + key }
func (s *Store) staleKey(key string) string { return s.prefix + staleSegment + key }

// Set stores value under key, replacing any previous entry and its stale copy.
// Write failures are logged and dropped.
func (s *Store) Set(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache payload not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	raw, err := json.Marshal(Entry{Payload: payload, StoredAt: s.now().UTC()})
	if err != nil {
		s.logger.Warn("cache entry not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.backend.Set(ctx, s.freshKey(key), raw); err != nil {
		s.storageFailure("set", key, err)
		return
	}
	s.remove(ctx, "set", s.staleKey(key), key)
}

// Get returns the payload stored under key when it is younger than TTL.
// An expired entry is evicted from the fresh slot before Get reports a miss.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	raw, entry, ok := s.read(ctx, "get", s.freshKey(key), key)
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.StoredAt) >= TTL {
		s.evict(ctx, key, raw)
		return nil, false
	}
	return entry.Payload, true
}

// GetStale returns the payload stored under key regardless of age. It only
// misses when nothing was ever stored or the key was cleared.
func (s *Store) GetStale(ctx context.Context, key string) (json.RawMessage, Staleness, bool) {
	if _, entry, ok := s.read(ctx, "get_stale", s.freshKey(key), key); ok {
		return entry.Payload, s.staleness(entry, false), true
	}
	if _, entry, ok := s.read(ctx, "get_stale", s.staleKey(key), key); ok {
		return entry.Payload, s.staleness(entry, true), true
	}
	return nil, Staleness{}, false
}

// Age reports how many whole hours ago key was stored.
func (s *Store) Age(ctx context.Context, key string) (int, bool) {
	_, entry, ok := s.read(ctx, "age", s.freshKey(key), key)
	if !ok {
		return 0, false
	}
	age := s.now().Sub(entry.StoredAt)
	if age < 0 {
		age = 0
	}
	return int(age / time.Hour), true
}

// Clear drops key, including any stale copy.
func (s *Store) Clear(ctx context.Context, key string) {
	s.remove(ctx, "clear", s.freshKey(key), key)
	s.remove(ctx, "clear", s.staleKey(key), key)
}

// ClearAll drops every key under the store's prefix.
func (s *Store) ClearAll(ctx context.Context) {
	keys, err := s.backend.Keys(ctx, s.prefix)
	if err != nil {
		s.storageFailure("clear_all", "", err)
		return
	}
	for _, k := range keys {
		s.remove(ctx, "clear_all", k, strings.TrimPrefix(k, s.prefix))
	}
}

// Keys lists the logical keys that currently hold a fresh or stale entry.
func (s *Store) Keys(ctx context.Context) []string {
	raw, err := s.backend.Keys(ctx, s.prefix)
	if err != nil {
		s.storageFailure("keys", "", err)
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		logical := strings.TrimPrefix(strings.TrimPrefix(k, s.prefix), staleSegment)
		if _, dup := seen[logical]; dup {
			continue
		}
		seen[logical] = struct{}{}
		keys = append(keys, logical)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) read(ctx context.Context, op, backendKey, key string) ([]byte, Entry, bool) {
	raw, err := s.backend.Get(ctx, backendKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.storageFailure(op, key, err)
		}
		return nil, Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.StoredAt.IsZero() {
		s.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, Entry{}, false
	}
	return raw, entry, true
}

func (s *Store) evict(ctx context.Context, key string, raw []byte) {
	if err := s.backend.Set(ctx, s.staleKey(key), raw); err != nil {
		// The fresh slot stays put so GetStale can still serve the entry.
		s.storageFailure("evict", key, err)
		return
	}
	current, err := s.backend.Get(ctx, s.freshKey(key))
	switch {
	case err != nil && !errors.Is(err, ErrNotFound):
		s.storageFailure("evict", key, err)
		return
	case err != nil || !bytes.Equal(current, raw):
		// A Clear or Set landed after the expired entry was read; it owns the key now.
		s.remove(ctx, "evict", s.staleKey(key), key)
		return
	}
	s.remove(ctx, "evict", s.freshKey(key), key)
	s.logger.Debug("evicted expired cache entry", zap.String("key", key))
}

func (s *Store) remove(ctx context.Context, op, backendKey, key string) {
	if err := s.backend.Delete(ctx, backendKey); err != nil && !errors.Is(err, ErrNotFound) {
		s.storageFailure(op, key, err)
	}
}

func (s *Store) staleness(entry Entry, evicted bool) Staleness {
	return Staleness{StoredAt: entry.StoredAt, Age: s.now().Sub(entry.StoredAt), Evicted: evicted}
}

func (s *Store) storageFailure(op, key string, err error) {
	s.observer.StorageError(op)
	s.logger.Warn("cache storage failure", zap.String("op", op), zap.String("key", key), zap.Error(err))
}

// Load decodes the fresh payload under key into T.
func Load[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var out T
	payload, ok := s.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		s.logger.Warn("cache payload type mismatch", zap.String("key", key), zap.Error(err))
		return out, false
	}
	return out, true
}

// LoadStale decodes the payload under key into T ignoring TTL.
func LoadStale[T any](ctx context.Context, s *Store, key string) (T, Staleness, bool) {
	var out T
	payload, st, ok := s.GetStale(ctx, key)
	if !ok {
		return out, Staleness{}, false
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		s.logger.Warn("stale cache payload type mismatch", zap.String("key", key), zap.Error(err))
		return out, Staleness{}, false
	}
	return out, st, true
}
