// Package coordinator orchestrates the Workflow lifecycle and provides
// the distributed cache/counter/lock substrate every other component
// relies on (C5): an in-process LRU fronting a durable KV, named TTL
// locks, a sliding-window rate limiter, tag/pattern cache invalidation,
// and a webhook demultiplexer.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/coreerrors"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/arbitragex/engine/pkg/redis"
	"go.uber.org/zap"
)

// Config tunes the coordinator's cache/lock/rate-limit behavior.
type Config struct {
	LRUMaxSize          int
	CacheValidityWindow time.Duration
	WorkflowStartLimit  int
	WorkflowStartWindow time.Duration
	WorkflowLockTTL     time.Duration
}

// DefaultConfig matches SPEC_FULL.md's §4.5 defaults.
func DefaultConfig() Config {
	return Config{
		LRUMaxSize:          1000,
		CacheValidityWindow: 5 * time.Second,
		WorkflowStartLimit:  5,
		WorkflowStartWindow: 60 * time.Second,
		WorkflowLockTTL:     60 * time.Second,
	}
}

// Coordinator is the Edge Coordinator: Workflow lifecycle plus the
// cache/lock/rate-limit/webhook substrate.
type Coordinator struct {
	cfg          Config
	kv           redis.Client
	lru          *lru
	clock        coreclock.Clock
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	webhookDedup *webhookDedup
}

// New builds a Coordinator over a durable KV client.
func New(cfg Config, kv redis.Client, clock coreclock.Clock, metrics *monitoring.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		cfg:          cfg,
		kv:           kv,
		lru:          newLRU(cfg.LRUMaxSize),
		clock:        clock,
		metrics:      metrics,
		logger:       logger,
		webhookDedup: newWebhookDedup(),
	}
	if metrics != nil {
		metrics.KVKeysEstimate.Set(0)
	}
	return c
}

func cacheEntryKey(key string) string { return "api_cache:" + key }

// cacheEnvelope is the JSON shape persisted to the durable KV; it carries
// tags alongside the raw value so a KV-only read (LRU miss) can still
// reconstruct tag membership for later invalidation, plus the inserted_at
// and ttl spec.md's CacheEntry<V> names so freshness survives the
// LRU<->KV round trip.
type cacheEnvelope struct {
	Value      json.RawMessage `json:"value"`
	Tags       []string        `json:"tags"`
	InsertedAt time.Time       `json:"inserted_at"`
	TTL        time.Duration   `json:"ttl"`
}

// remainingTTL reports how much of env's ttl is left relative to now, or
// zero/negative once it has expired.
func (env cacheEnvelope) remainingTTL(now time.Time) time.Duration {
	return env.InsertedAt.Add(env.TTL).Sub(now)
}

func (c *Coordinator) reportKVSize() {
	if c.metrics != nil {
		c.metrics.KVKeysEstimate.Set(float64(c.lru.Len()))
	}
}

// Get reads key, checking the LRU first and falling through to the
// durable KV on miss; a KV hit promotes the entry back into the LRU.
func (c *Coordinator) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	now := c.clock.Now()
	if raw, ok := c.lru.Get(key, now); ok {
		var env cacheEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "decode cached entry", err)
		}
		return env.Value, true, nil
	}

	raw, err := c.kv.Get(ctx, cacheEntryKey(key))
	if err != nil {
		return nil, false, nil
	}

	var env cacheEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false, coreerrors.Wrap(coreerrors.KindInternal, "decode kv entry", err)
	}
	remaining := env.remainingTTL(now)
	if remaining <= 0 {
		return nil, false, nil
	}
	c.lru.Set(key, []byte(raw), env.Tags, remaining, now)
	c.reportKVSize()
	return env.Value, true, nil
}

// Set write-through caches value under key with ttl and tags.
func (c *Coordinator) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration, tags []string) error {
	now := c.clock.Now()
	env := cacheEnvelope{Value: value, Tags: tags, InsertedAt: now, TTL: ttl}
	raw, err := json.Marshal(env)
	if err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, "encode cache entry", err)
	}

	if err := c.kv.Set(ctx, cacheEntryKey(key), raw, ttl); err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "write cache entry", err)
	}
	c.lru.Set(key, raw, tags, ttl, now)
	c.reportKVSize()
	return nil
}

// Delete removes key from both tiers.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	c.lru.Delete(key)
	if err := c.kv.Del(ctx, cacheEntryKey(key)); err != nil {
		return coreerrors.Wrap(coreerrors.KindKVUnavailable, "delete cache entry", err)
	}
	c.reportKVSize()
	return nil
}

// InvalidateByTag removes every local LRU entry whose tags intersect tags
// and deletes the same keys from the durable KV, so a later Get does not
// re-promote them. Entries not resident in the local LRU are not looked up
// (cross-replica invalidation is advisory) and expire by their own TTL.
// KV delete errors are ignored.
func (c *Coordinator) InvalidateByTag(tags []string) {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, key := range c.lru.InvalidateByTag(set) {
		_ = c.kv.Del(context.Background(), cacheEntryKey(key))
	}
	c.reportKVSize()
}

// InvalidateByPattern removes every locally-cached entry whose key
// satisfies matches (for example a compiled regex's MatchString).
func (c *Coordinator) InvalidateByPattern(matches func(key string) bool) {
	c.lru.InvalidateByPredicate(matches)
	c.reportKVSize()
}

// InvalidateAll clears the local LRU entirely.
func (c *Coordinator) InvalidateAll() {
	c.lru.All()
	c.reportKVSize()
}

// IncrementCounter atomically increments counter:<name>:<window> and
// returns the new count, setting the key's TTL to windowHours on first
// increment so the counter resets each window.
func (c *Coordinator) IncrementCounter(ctx context.Context, name string, windowHours int) (int64, error) {
	key := fmt.Sprintf("counter:%s:%dh", name, windowHours)
	count, err := c.kv.Incr(ctx, key)
	if err != nil {
		return 0, coreerrors.Wrap(coreerrors.KindKVUnavailable, "increment counter", err)
	}
	if count == 1 {
		_ = c.kv.Expire(ctx, key, time.Duration(windowHours)*time.Hour)
	}
	return count, nil
}
