package counter_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/m-mizutani/gt"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/bastion/pkg/adapter/counter"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

// testClock is shared by the store under test and the test body.
type testClock struct {
	mu  sync.Mutex
	now time.Time
	mr  *miniredis.Miniredis
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	if c.mr != nil {
		c.mr.FastForward(d)
	}
}

type storeFactory func(t *testing.T) (interfaces.CounterStore, *testClock)

func newMemory(t *testing.T) (interfaces.CounterStore, *testClock) {
	return counter.NewMemory(), &testClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
}

func newRedis(t *testing.T) (interfaces.CounterStore, *testClock) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return counter.NewRedis(client), &testClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), mr: mr}
}

func TestCounterStores(t *testing.T) {
	factories := map[string]storeFactory{
		"memory": newMemory,
		"redis":  newRedis,
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Run("window prunes old entries", func(t *testing.T) {
				testWindow(t, factory)
			})
			t.Run("range window", func(t *testing.T) {
				testRangeWindow(t, factory)
			})
			t.Run("token bucket", func(t *testing.T) {
				testTakeTokens(t, factory)
			})
			t.Run("set nx with ttl", func(t *testing.T) {
				testSetNX(t, factory)
			})
			t.Run("get and set", func(t *testing.T) {
				testGetSet(t, factory)
			})
		})
	}
}

func testWindow(t *testing.T, factory storeFactory) {
	store, clk := factory(t)
	ctx := context.Background()
	base := clk.Now()

	for i := range 9 {
		n, err := store.RecordInWindow(ctx, "w", fmt.Sprintf("u%d", i), base.Add(time.Duration(i)*time.Second), 10*time.Second)
		gt.NoError(t, err)
		gt.Equal(t, n, int64(i+1))
	}

	// 15s later only the entries from 5s onward remain, plus the new one
	n, err := store.RecordInWindow(ctx, "w", "late", base.Add(15*time.Second), 10*time.Second)
	gt.NoError(t, err)
	gt.Equal(t, n, int64(5))

	// other keys are independent
	n, err = store.RecordInWindow(ctx, "other", "u0", base, 10*time.Second)
	gt.NoError(t, err)
	gt.Equal(t, n, int64(1))
}

func testRangeWindow(t *testing.T, factory storeFactory) {
	store, clk := factory(t)
	ctx := context.Background()
	base := clk.Now()

	for i, m := range []string{"a", "b", "c"} {
		_, err := store.RecordInWindow(ctx, "r", m, base.Add(time.Duration(i)*30*time.Second), time.Hour)
		gt.NoError(t, err)
	}

	members, err := store.RangeWindow(ctx, "r", base.Add(30*time.Second))
	gt.NoError(t, err)
	gt.A(t, members).Length(2)
	gt.Equal(t, members[0], "b")
	gt.Equal(t, members[1], "c")
}

func testTakeTokens(t *testing.T, factory storeFactory) {
	store, clk := factory(t)
	ctx := clock.With(context.Background(), clk.Now)

	for range 3 {
		ok, err := store.TakeTokens(ctx, "b", 1, 3, 1, time.Second)
		gt.NoError(t, err)
		gt.True(t, ok)
	}
	ok, err := store.TakeTokens(ctx, "b", 1, 3, 1, time.Second)
	gt.NoError(t, err)
	gt.False(t, ok)

	clk.Advance(time.Second)
	ok, err = store.TakeTokens(ctx, "b", 1, 3, 1, time.Second)
	gt.NoError(t, err)
	gt.True(t, ok)

	// refill never exceeds capacity
	clk.Advance(time.Minute)
	ok, err = store.TakeTokens(ctx, "b", 3, 3, 1, time.Second)
	gt.NoError(t, err)
	gt.True(t, ok)
	ok, err = store.TakeTokens(ctx, "b", 1, 3, 1, time.Second)
	gt.NoError(t, err)
	gt.False(t, ok)
}

func testSetNX(t *testing.T, factory storeFactory) {
	store, clk := factory(t)
	ctx := clock.With(context.Background(), clk.Now)

	ok, err := store.SetNX(ctx, "flag", "1", time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)

	ok, err = store.SetNX(ctx, "flag", "2", time.Minute)
	gt.NoError(t, err)
	gt.False(t, ok)

	clk.Advance(2 * time.Minute)
	ok, err = store.SetNX(ctx, "flag", "3", time.Minute)
	gt.NoError(t, err)
	gt.True(t, ok)
}

func testGetSet(t *testing.T, factory storeFactory) {
	store, clk := factory(t)
	ctx := clock.With(context.Background(), clk.Now)

	_, found, err := store.Get(ctx, "k")
	gt.NoError(t, err)
	gt.False(t, found)

	gt.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	v, found, err := store.Get(ctx, "k")
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, v, "v")

	clk.Advance(2 * time.Minute)
	_, found, err = store.Get(ctx, "k")
	gt.NoError(t, err)
	gt.False(t, found)
}

func TestDialInvalidURL(t *testing.T) {
	_, err := counter.Dial(context.Background(), "not-a-valid-url")
	gt.Error(t, err)
}
