// Package lexicon provides the runtime custom-lexicon overlay: teacher-added
// wrong→right substitution pairs held in Redis and merged over the built-in
// correction tables, plus an optional cache of full correction results.
//
// The overlay is advisory: every method degrades gracefully, and callers fall
// back to the static tables when Redis is unreachable — a missing overlay
// must never fail a correction.
package lexicon

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulox/pulox/internal/correction"
)

const (
	defaultHashKey     = "pulox:lexicon:custom"
	defaultCachePrefix = "pulox:result:"
	defaultCacheTTL    = time.Hour
)

// Option is a functional option for a [Store].
type Option func(*Store)

// WithHashKey overrides the Redis hash key holding the overlay entries.
func WithHashKey(key string) Option {
	return func(s *Store) { s.hashKey = key }
}

// WithCacheTTL sets the expiry for cached correction results. Zero disables
// result caching entirely.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.cacheTTL = ttl }
}

// Store holds custom lexicon entries and cached results in Redis. Safe for
// concurrent use; all state lives server-side.
type Store struct {
	client      *redis.Client
	hashKey     string
	cachePrefix string
	cacheTTL    time.Duration
}

// entry is the stored form of one overlay substitution.
type entry struct {
	To   string               `json:"to"`
	Type correction.ErrorType `json:"type,omitempty"`
}

// decodeEntry parses a stored hash value. Legacy plain-string values are
// accepted as the replacement text.
func decodeEntry(val string) entry {
	var e entry
	if err := json.Unmarshal([]byte(val), &e); err != nil || e.To == "" {
		return entry{To: val}
	}
	return e
}

// New creates a Store over the provided Redis client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		hashKey:     defaultHashKey,
		cachePrefix: defaultCachePrefix,
		cacheTTL:    defaultCacheTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put inserts or replaces a custom substitution. typ may be empty; it
// defaults to word_choice when the overlay is applied.
func (s *Store) Put(ctx context.Context, wrong, right string, typ correction.ErrorType) error {
	if wrong == "" || right == "" {
		return fmt.Errorf("lexicon: wrong and right must be non-empty")
	}
	raw, err := json.Marshal(entry{To: right, Type: typ})
	if err != nil {
		return fmt.Errorf("lexicon: encode entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.hashKey, wrong, raw).Err(); err != nil {
		return fmt.Errorf("lexicon: put %q: %w", wrong, err)
	}
	return nil
}

// Delete removes a custom substitution. Deleting an absent entry is not an
// error.
func (s *Store) Delete(ctx context.Context, wrong string) error {
	if err := s.client.HDel(ctx, s.hashKey, wrong).Err(); err != nil {
		return fmt.Errorf("lexicon: delete %q: %w", wrong, err)
	}
	return nil
}

// All returns every overlay substitution sorted by key for deterministic
// application order.
func (s *Store) All(ctx context.Context) ([]correction.Substitution, error) {
	raw, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("lexicon: list entries: %w", err)
	}

	subs := make([]correction.Substitution, 0, len(raw))
	for wrong, val := range raw {
		e := decodeEntry(val)
		subs = append(subs, correction.Substitution{From: wrong, To: e.To, Type: e.Type})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].From < subs[j].From })
	return subs, nil
}

// Overlay returns base with the current custom entries layered on top. When
// the overlay is empty, base is returned unchanged.
func (s *Store) Overlay(ctx context.Context, base *correction.Lexicon) (*correction.Lexicon, error) {
	subs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return base.WithSubstitutions(subs), nil
}

// CachedResult looks up a previously cached result for (text, cfg). The
// second return is false on a miss or when caching is disabled.
func (s *Store) CachedResult(ctx context.Context, text string, cfg correction.Config) (*correction.Result, bool, error) {
	if s.cacheTTL <= 0 {
		return nil, false, nil
	}
	raw, err := s.client.Get(ctx, s.cacheKey(text, cfg)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lexicon: cache get: %w", err)
	}
	var res correction.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("lexicon: cache decode: %w", err)
	}
	return &res, true, nil
}

// CacheResult stores res for (text, cfg) with the configured TTL.
func (s *Store) CacheResult(ctx context.Context, text string, cfg correction.Config, res *correction.Result) error {
	if s.cacheTTL <= 0 {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("lexicon: cache encode: %w", err)
	}
	if err := s.client.Set(ctx, s.cacheKey(text, cfg), raw, s.cacheTTL).Err(); err != nil {
		return fmt.Errorf("lexicon: cache set: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable; used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// cacheKey derives a stable key from the text and every config field that
// influences the output.
func (s *Store) cacheKey(text string, cfg correction.Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t\x00%t\x00%s\x00%.3f",
		text, cfg.Level, cfg.UseRules, cfg.UseGenerative, cfg.LanguageHint, cfg.MinGenerativeConfidence)
	return s.cachePrefix + hex.EncodeToString(h.Sum(nil))
}
