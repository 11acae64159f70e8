package counter

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

type windowEntry struct {
	member string
	at     int64
}

type bucket struct {
	tokens float64
	ts     int64
}

type kvEntry struct {
	value   string
	expires time.Time
}

// Memory is a single-process CounterStore for tests and Redis-less runs.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]windowEntry
	buckets map[string]*bucket
	kv      map[string]kvEntry
}

var _ interfaces.CounterStore = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		windows: map[string][]windowEntry{},
		buckets: map[string]*bucket{},
		kv:      map[string]kvEntry{},
	}
}

func (x *Memory) RecordInWindow(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	entries := x.windows[key]
	replaced := false
	for i := range entries {
		if entries[i].member == member {
			entries[i].at = at.UnixMilli()
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, windowEntry{member: member, at: at.UnixMilli()})
	}

	cutoff := at.Add(-window).UnixMilli()
	kept := entries[:0]
	for _, e := range entries {
		if e.at >= cutoff {
			kept = append(kept, e)
		}
	}
	x.windows[key] = kept
	return int64(len(kept)), nil
}

func (x *Memory) RangeWindow(ctx context.Context, key string, since time.Time) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var matched []windowEntry
	for _, e := range x.windows[key] {
		if e.at >= since.UnixMilli() {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].at < matched[j].at })

	out := make([]string, len(matched))
	for i, e := range matched {
		out[i] = e.member
	}
	return out, nil
}

func (x *Memory) TakeTokens(ctx context.Context, key string, n, capacity, refill int, interval time.Duration) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	now := clock.Now(ctx).UnixMilli()
	b, ok := x.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(capacity), ts: now}
		x.buckets[key] = b
	}

	if now > b.ts {
		elapsed := float64(now - b.ts)
		b.tokens = math.Min(float64(capacity), b.tokens+elapsed*float64(refill)/float64(interval.Milliseconds()))
		b.ts = now
	}

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true, nil
	}
	return false, nil
}

func (x *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.lookup(ctx, key); ok {
		return false, nil
	}
	x.kv[key] = kvEntry{value: value, expires: expiry(ctx, ttl)}
	return true, nil
}

func (x *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	v, ok := x.lookup(ctx, key)
	return v, ok, nil
}

func (x *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.kv[key] = kvEntry{value: value, expires: expiry(ctx, ttl)}
	return nil
}

// lookup must be called with mu held.
func (x *Memory) lookup(ctx context.Context, key string) (string, bool) {
	e, ok := x.kv[key]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !clock.Now(ctx).Before(e.expires) {
		delete(x.kv, key)
		return "", false
	}
	return e.value, true
}

func expiry(ctx context.Context, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return clock.Now(ctx).Add(ttl)
}
