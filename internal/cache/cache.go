// Package cache persists generated questionsets keyed by source
// fingerprint, with TTL expiry and LRU size capping.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/store"
)

const (
	// DefaultTTL is how long a cached questionset stays valid.
	DefaultTTL = 30 * 24 * time.Hour

	// DefaultMaxEntries caps the cache size; least recently accessed
	// entries are evicted beyond it.
	DefaultMaxEntries = 1000
)

// Cache is a persistent questionset cache. Read and write failures are
// absorbed: a broken cache degrades to a miss, never to a failed
// generation.
type Cache struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	now  func() time.Time
	logf func(format string, args ...any)
}

// Stats summarizes cache contents and session hit rates.
type Stats struct {
	Entries     int   `json:"entries"`
	Expired     int   `json:"expired"`
	MaxEntries  int   `json:"maxEntries"`
	TTLDays     int   `json:"ttlDays"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	TotalAccess int64 `json:"totalAccesses"`
	OldestUnix  int64 `json:"oldestCreatedAt,omitempty"`
	NewestUnix  int64 `json:"newestCreatedAt,omitempty"`
}

// New builds a cache over the store. Non-positive ttl or maxEntries
// fall back to the defaults.
func New(s *store.Store, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		db:         s.DB(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		logf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
}

// cachedBody is the questions column payload. Metadata is stored in its
// own column so expiry and inspection never need the full set.
type cachedBody struct {
	Analysis  string          `json:"analysis,omitempty"`
	Questions []quiz.Question `json:"questions"`
}

// Get returns the cached questionset for this text and options, or nil
// on a miss. Expired entries are deleted on read. Any storage error is
// logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, text string, opts quiz.Options) *quiz.Questionset {
	key := quiz.Fingerprint(text, opts)

	var (
		body      string
		meta      string
		createdAt int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT questions, metadata, created_at FROM cache_entries WHERE cache_key = $1", key,
	).Scan(&body, &meta, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return nil
	}
	if err != nil {
		c.logf("cache read failed: %v", err)
		c.misses.Add(1)
		return nil
	}

	now := c.now()
	if now.Sub(time.Unix(createdAt, 0)) > c.ttl {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_key = $1", key); err != nil {
			c.logf("cache expiry delete failed: %v", err)
		}
		c.misses.Add(1)
		return nil
	}

	var b cachedBody
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		c.logf("cache entry corrupt, dropping: %v", err)
		_, _ = c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_key = $1", key)
		c.misses.Add(1)
		return nil
	}
	var md quiz.Metadata
	if err := json.Unmarshal([]byte(meta), &md); err != nil {
		c.logf("cache metadata corrupt, dropping: %v", err)
		_, _ = c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_key = $1", key)
		c.misses.Add(1)
		return nil
	}

	if _, err := c.db.ExecContext(ctx,
		"UPDATE cache_entries SET accessed_at = $1, access_count = access_count + 1 WHERE cache_key = $2",
		now.Unix(), key,
	); err != nil {
		c.logf("cache access bump failed: %v", err)
	}

	c.hits.Add(1)
	md.Cached = true
	return &quiz.Questionset{Analysis: b.Analysis, Questions: b.Questions, Metadata: md}
}

// Set stores the questionset under this text and options, then evicts
// least recently accessed entries beyond the cap. Failures are logged
// and swallowed.
func (c *Cache) Set(ctx context.Context, text string, opts quiz.Options, qs *quiz.Questionset) {
	key := quiz.Fingerprint(text, opts)

	body, err := json.Marshal(cachedBody{Analysis: qs.Analysis, Questions: qs.Questions})
	if err != nil {
		c.logf("cache encode failed: %v", err)
		return
	}
	md := qs.Metadata
	md.Cached = false // stored copy is the authoritative non-cached result
	meta, err := json.Marshal(md)
	if err != nil {
		c.logf("cache metadata encode failed: %v", err)
		return
	}

	now := c.now().Unix()
	_, err = c.db.ExecContext(ctx, `
INSERT INTO cache_entries (cache_key, text_hash, options_hash, questions, metadata, created_at, accessed_at, access_count)
VALUES ($1, $2, $3, $4, $5, $6, $6, 0)
ON CONFLICT(cache_key) DO UPDATE SET
  questions = excluded.questions,
  metadata = excluded.metadata,
  created_at = excluded.created_at,
  accessed_at = excluded.accessed_at,
  access_count = 0`,
		key, quiz.HashText(text), quiz.HashOptions(opts), string(body), string(meta), now,
	)
	if err != nil {
		c.logf("cache write failed: %v", err)
		return
	}

	c.evict(ctx)
}

// evict removes the least recently accessed entries beyond maxEntries.
func (c *Cache) evict(ctx context.Context) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&count); err != nil {
		c.logf("cache count failed: %v", err)
		return
	}
	excess := count - c.maxEntries
	if excess <= 0 {
		return
	}
	_, err := c.db.ExecContext(ctx, `
DELETE FROM cache_entries WHERE cache_key IN (
  SELECT cache_key FROM cache_entries ORDER BY accessed_at ASC, cache_key ASC LIMIT $1
)`, excess)
	if err != nil {
		c.logf("cache eviction failed: %v", err)
	}
}

// Clear removes every cache entry and returns how many were deleted.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats reports entry counts and session hit/miss counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		MaxEntries: c.maxEntries,
		TTLDays:    int(c.ttl / (24 * time.Hour)),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}

	cutoff := c.now().Add(-c.ttl).Unix()
	err := c.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN created_at < $1 THEN 1 ELSE 0 END), 0),
       COALESCE(SUM(access_count), 0),
       COALESCE(MIN(created_at), 0),
       COALESCE(MAX(created_at), 0)
FROM cache_entries`, cutoff,
	).Scan(&st.Entries, &st.Expired, &st.TotalAccess, &st.OldestUnix, &st.NewestUnix)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}
