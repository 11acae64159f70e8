package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

func TestClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := clock.Fixed(context.Background(), now)
	gt.Equal(t, clock.Now(ctx), now)
	gt.Equal(t, clock.Since(ctx, now.Add(-time.Minute)), time.Minute)
}

func TestClockDefault(t *testing.T) {
	before := time.Now()
	got := clock.Now(context.Background())
	gt.False(t, got.Before(before))
}
