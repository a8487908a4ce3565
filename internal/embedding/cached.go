package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/singleflight"
)

// CachedProvider wraps a Provider with the resilience envelope spec.md §4.2
// requires: content-addressed caching, retry with exponential backoff,
// a circuit breaker, and request coalescing for concurrent identical
// uncached requests.
type CachedProvider struct {
	inner       Provider
	cache       Cache
	logger      *slog.Logger
	maxRetries  int
	breaker     *breaker
	group       singleflight.Group
	onRetry     func()
	onCacheHit  func()
	onCacheMiss func()
}

// CachedProviderOption configures a CachedProvider.
type CachedProviderOption func(*CachedProvider)

// WithMaxRetries overrides the default retry count (spec default: 3).
func WithMaxRetries(n int) CachedProviderOption {
	return func(c *CachedProvider) { c.maxRetries = n }
}

// WithCircuitThreshold overrides the consecutive-failure threshold that
// opens the circuit (spec default: 10).
func WithCircuitThreshold(threshold int, cooldown time.Duration) CachedProviderOption {
	return func(c *CachedProvider) { c.breaker = newBreaker(threshold, cooldown) }
}

// WithRetryHook registers a callback invoked once per retry attempt, for
// metrics wiring.
func WithRetryHook(fn func()) CachedProviderOption {
	return func(c *CachedProvider) { c.onRetry = fn }
}

// WithCacheHooks registers callbacks invoked on cache hit/miss, for metrics
// wiring.
func WithCacheHooks(hit, miss func()) CachedProviderOption {
	return func(c *CachedProvider) {
		c.onCacheHit = hit
		c.onCacheMiss = miss
	}
}

// NewCachedProvider constructs the resilience-wrapped provider. Construct
// once at the entry point and share the instance across every consolidation
// agent — the breaker and singleflight group are process-wide state
// (spec.md §9, §5).
func NewCachedProvider(inner Provider, cache Cache, logger *slog.Logger, opts ...CachedProviderOption) *CachedProvider {
	c := &CachedProvider{
		inner:      inner,
		cache:      cache,
		logger:     logger,
		maxRetries: 3,
		breaker:    newBreaker(10, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dimensions delegates to the wrapped provider.
func (c *CachedProvider) Dimensions() int { return c.inner.Dimensions() }

// IsOpen reports whether the circuit breaker is currently open.
func (c *CachedProvider) IsOpen() bool { return c.breaker.isOpen() }

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector if present; otherwise calls the wrapped
// provider through retry, circuit breaker, and singleflight coalescing.
func (c *CachedProvider) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	hash := hashText(text)

	if c.cache != nil {
		if vec, ok, err := c.cache.Get(ctx, hash); err == nil && ok {
			if c.onCacheHit != nil {
				c.onCacheHit()
			}
			return vec, nil
		}
	}
	if c.onCacheMiss != nil {
		c.onCacheMiss()
	}

	if !c.breaker.allow() {
		return pgvector.Vector{}, ErrUnavailable
	}

	result, err, _ := c.group.Do(hash, func() (any, error) {
		return c.embedWithRetry(ctx, text)
	})
	if err != nil {
		c.breaker.recordFailure()
		if c.breaker.isOpen() {
			c.logger.Warn("embedding: circuit opened", "consecutive_failures", c.breaker.threshold)
		}
		return pgvector.Vector{}, ErrUnavailable
	}
	c.breaker.recordSuccess()

	vec := result.(pgvector.Vector)
	if c.cache != nil {
		if err := c.cache.Put(ctx, hash, vec); err != nil {
			c.logger.Debug("embedding: cache write failed", "error", err)
		}
	}
	return vec, nil
}

// embedWithRetry retries transient upstream failures with exponential
// backoff: sleep 2^attempt seconds before attempt attempt+1, matching
// spec.md §4.2 exactly.
func (c *CachedProvider) embedWithRetry(ctx context.Context, text string) (pgvector.Vector, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	bounded := backoff.WithMaxRetries(b, uint64(c.maxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	var vec pgvector.Vector
	attempt := 0
	operation := func() error {
		v, err := c.inner.Embed(ctx, text)
		if err != nil {
			attempt++
			if attempt > 1 && c.onRetry != nil {
				c.onRetry()
			}
			return err
		}
		vec = v
		return nil
	}

	if err := backoff.Retry(operation, withCtx); err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding: upstream failed after retries: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds each text independently through the same cache/retry/
// breaker path. The underlying provider's native batch support is bypassed
// here because individual texts may already be cached; callers needing raw
// batch throughput against a cold cache should call the inner Provider
// directly.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vecs := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// IsUnavailable reports whether err signals the provider is in a degraded
// state (circuit open or retries exhausted) per spec.md §4.2.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
