// Package limits rate-limits editor events and caps connections on the
// dev server. Sessions throttle property-change storms through a token
// bucket; the generate endpoint sits behind a sliding window.
package limits

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned by Wait when the context expires
// before a token frees up.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

const (
	cleanupInterval = time.Minute
	idleAfter       = 10 * time.Minute
)

// RateLimiter limits the rate of operations per key.
type RateLimiter interface {
	// Allow returns true if one operation is allowed now.
	Allow(key string) bool

	// AllowN returns true if n operations are allowed now.
	AllowN(key string, n int) bool

	// Wait blocks until an operation is allowed or ctx is done.
	Wait(ctx context.Context, key string) error
}

// TokenBucket is a token bucket rate limiter. Each key gets its own
// bucket of capacity burst refilled at rate tokens per second, so short
// input bursts pass while sustained floods are rejected.
type TokenBucket struct {
	rate    float64
	burst   int
	buckets sync.Map // key -> *bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
}

// NewTokenBucket creates a rate limiter allowing rate operations per
// second with bursts up to burst.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	tb := &TokenBucket{
		rate:  rate,
		burst: burst,
		stop:  make(chan struct{}),
	}
	go tb.cleanupLoop()
	return tb
}

// Allow checks if one operation is allowed for the key.
func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN checks if n operations are allowed for the key.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	b := tb.getBucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastFill).Seconds() * tb.rate
	if b.tokens > float64(tb.burst) {
		b.tokens = float64(tb.burst)
	}
	b.lastFill = now

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until one operation is allowed or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context, key string) error {
	for {
		if tb.Allow(key) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrRateLimitExceeded, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Forget drops the bucket for a key, as when its session closes.
func (tb *TokenBucket) Forget(key string) {
	tb.buckets.Delete(key)
}

// Close stops the cleanup goroutine. Idempotent.
func (tb *TokenBucket) Close() {
	tb.once.Do(func() {
		close(tb.stop)
	})
}

func (tb *TokenBucket) getBucket(key string) *bucket {
	if b, ok := tb.buckets.Load(key); ok {
		return b.(*bucket)
	}
	actual, _ := tb.buckets.LoadOrStore(key, &bucket{
		tokens:   float64(tb.burst),
		lastFill: time.Now(),
	})
	return actual.(*bucket)
}

func (tb *TokenBucket) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tb.stop:
			return
		case <-ticker.C:
			now := time.Now()
			tb.buckets.Range(func(key, value any) bool {
				b := value.(*bucket)
				b.mu.Lock()
				idle := now.Sub(b.lastFill) > idleAfter
				b.mu.Unlock()
				if idle {
					tb.buckets.Delete(key)
				}
				return true
			})
		}
	}
}

// SlidingWindow is a sliding window rate limiter: at most limit
// operations per key within the trailing window. Suits expensive,
// low-volume operations like component generation.
type SlidingWindow struct {
	limit   int
	window  time.Duration
	windows sync.Map // key -> *windowState
}

type windowState struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewSlidingWindow creates a limiter allowing limit operations per
// window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
	}
}

// Allow checks if one operation is allowed for the key.
func (sw *SlidingWindow) Allow(key string) bool {
	return sw.AllowN(key, 1)
}

// AllowN checks if n operations are allowed for the key.
func (sw *SlidingWindow) AllowN(key string, n int) bool {
	ws := sw.getWindow(key)

	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-sw.window)

	valid := ws.timestamps[:0]
	for _, ts := range ws.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	ws.timestamps = valid

	if len(ws.timestamps)+n > sw.limit {
		return false
	}
	for i := 0; i < n; i++ {
		ws.timestamps = append(ws.timestamps, now)
	}
	return true
}

// Wait blocks until one operation is allowed or ctx is done.
func (sw *SlidingWindow) Wait(ctx context.Context, key string) error {
	for {
		if sw.Allow(key) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(ErrRateLimitExceeded, ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (sw *SlidingWindow) getWindow(key string) *windowState {
	if ws, ok := sw.windows.Load(key); ok {
		return ws.(*windowState)
	}
	actual, _ := sw.windows.LoadOrStore(key, &windowState{})
	return actual.(*windowState)
}

// Middleware returns HTTP middleware that rejects requests over the
// limit with 429.
func Middleware(limiter RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyFunc(r)) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys requests by client IP.
func IPKeyFunc(r *http.Request) string {
	return ClientIP(r)
}

// PathKeyFunc keys requests by URL path.
func PathKeyFunc(r *http.Request) string {
	return r.URL.Path
}
