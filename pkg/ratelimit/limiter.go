// Package ratelimit enforces fixed window quotas keyed by integration and
// tenant. A rejected call never consumes quota.
package ratelimit

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"
)

// Policy is a fixed window quota. A zero policy means unlimited.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision reports the outcome of one quota check.
type Decision struct {
	Allowed   bool
	Limit     int
	Count     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a tenant's call to an integration may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Check(ctx context.Context, integration, tenant string) Decision
}

type policies struct {
	def       Policy
	overrides map[string]Policy
}

func (p policies) policyFor(integration string) Policy {
	if o, ok := p.overrides[integration]; ok {
		return o
	}
	return p.def
}

// MemoryLimiter keeps window counters in process memory. Buckets are
// created on first use and swept once their window is long past.
type MemoryLimiter struct {
	policies
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	closeOnce sync.Once
	stop      chan struct{}
}

type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

const sweepInterval = time.Minute

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns a limiter applying def to every integration not
// named in overrides. Close releases the background sweeper.
func NewMemoryLimiter(def Policy, overrides map[string]Policy) *MemoryLimiter {
	l := &MemoryLimiter{
		policies: policies{def: def, overrides: maps.Clone(overrides)},
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		stop:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *MemoryLimiter) Close() {
	l.closeOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) Check(_ context.Context, integration, tenant string) Decision {
	policy := l.policyFor(integration)
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true, Limit: policy.Limit}
	}

	key := bucketKey(integration, tenant)
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	now := l.now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= policy.Window {
		b.windowStart = now
		b.count = 0
	}
	resetAt := b.windowStart.Add(policy.Window)
	if b.count >= policy.Limit {
		return Decision{Allowed: false, Limit: policy.Limit, Count: b.count, ResetAt: resetAt}
	}
	b.count++
	return Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Count:     b.count,
		Remaining: policy.Limit - b.count,
		ResetAt:   resetAt,
	}
}

func bucketKey(integration, tenant string) string {
	return integration + "\x00" + tenant
}

func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

// evictStale drops buckets idle for at least two windows. The margin keeps
// a bucket alive while a concurrent Check may still hold it.
func (l *MemoryLimiter) evictStale() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		integration, _, _ := strings.Cut(key, "\x00")
		window := l.policyFor(integration).Window
		b.mu.Lock()
		stale := !b.windowStart.IsZero() && now.Sub(b.windowStart) >= 2*window
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
		}
	}
}
