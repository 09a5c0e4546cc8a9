// Package cache provides an optional Redis-backed read-through cache for
// hot fingerprint-hash posting lookups. The store works standalone
// when no cache is configured; this package exists purely as an
// accelerator for hashes queried more than once in a session.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/waveprint/mixid/internal/logger"
)

// defaultTTL bounds how long a posting list stays cached; the fingerprint
// store is append-mostly during indexing runs so a short TTL is enough to
// avoid serving stale postings after a re-index.
const defaultTTL = 10 * time.Minute

// PostingCache wraps a redis.Client with the hash -> posting-list shape
// QueryFingerprints needs. A nil *PostingCache is valid and simply misses
// every lookup, so callers can construct one unconditionally and only
// attach it to the store when configured.
type PostingCache struct {
	client *redis.Client
}

// Posting mirrors storage.PostingRow without importing the storage
// package, keeping cache a leaf dependency.
type Posting struct {
	TrackID      uint
	Hash         int64
	TimeOffsetMs int32
}

// NewPostingCache dials host:port and pings it. An empty host defaults to
// "localhost" and an empty port to "6379"; the CLI passes REDIS_HOST,
// REDIS_PORT, and REDIS_PASSWORD.
func NewPostingCache(host, port, password string) (*PostingCache, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	logger.Log.Info("posting cache connected", zap.String("addr", addr))
	return &PostingCache{client: client}, nil
}

// Close releases the underlying connection pool.
func (c *PostingCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// LookupMany returns cached postings for the hashes that are present, plus
// the subset of hashes that missed and still need a database round-trip.
// A nil receiver misses everything, so QueryFingerprints can call this
// unconditionally once a *PostingCache exists.
func (c *PostingCache) LookupMany(ctx context.Context, hashes []int64) (hits []Posting, misses []int64) {
	if c == nil || c.client == nil {
		return nil, hashes
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.Get(ctx, postingKey(h))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		logger.Log.Warn("posting cache pipeline lookup failed", zap.Error(err))
		return nil, hashes
	}

	for i, cmd := range cmds {
		val, err := cmd.Result()
		if err != nil {
			misses = append(misses, hashes[i])
			continue
		}
		hits = append(hits, decodePostings(hashes[i], val)...)
	}
	return hits, misses
}

// StoreMany caches freshly-queried postings grouped by hash, each with its
// own TTL so the cache self-heals after a re-index.
func (c *PostingCache) StoreMany(ctx context.Context, postings []Posting) {
	if c == nil || c.client == nil || len(postings) == 0 {
		return
	}

	byHash := make(map[int64][]Posting)
	for _, p := range postings {
		byHash[p.Hash] = append(byHash[p.Hash], p)
	}

	pipe := c.client.Pipeline()
	for hash, group := range byHash {
		pipe.Set(ctx, postingKey(hash), encodePostings(group), defaultTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("posting cache store failed", zap.Error(err))
	}
}

func postingKey(hash int64) string {
	return "hash:" + strconv.FormatInt(hash, 10)
}

// encodePostings serializes a posting group as "trackID:offset,trackID:offset,..."
// — simple and sufficient for the small posting lists one hash maps to.
func encodePostings(postings []Posting) string {
	parts := make([]string, len(postings))
	for i, p := range postings {
		parts[i] = fmt.Sprintf("%d:%d", p.TrackID, p.TimeOffsetMs)
	}
	return strings.Join(parts, ",")
}

func decodePostings(hash int64, val string) []Posting {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]Posting, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			continue
		}
		trackID, err1 := strconv.ParseUint(fields[0], 10, 64)
		offset, err2 := strconv.ParseInt(fields[1], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Posting{TrackID: uint(trackID), Hash: hash, TimeOffsetMs: int32(offset)})
	}
	return out
}
