package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = eris.New("collaborator down")

func failing(context.Context) (int, error) { return 0, errBoom }
func succeeding(context.Context) (int, error) { return 7, nil }

// clockedBreaker returns a breaker whose clock the test controls.
func clockedBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker("test", threshold, cooldown)
	now := time.Now()
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := clockedBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.Equal(t, BreakerClosed, b.State())
		_, err := Guard(ctx, b, failing)
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, BreakerOpen, b.State())

	_, err := Guard(ctx, b, succeeding)
	require.ErrorIs(t, err, ErrBreakerOpen)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b, _ := clockedBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		_, _ = Guard(ctx, b, failing)
	}
	_, err := Guard(ctx, b, succeeding)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _ = Guard(ctx, b, failing)
	}
	assert.Equal(t, BreakerClosed, b.State(), "count restarts after a success")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("probe success closes", func(t *testing.T) {
		t.Parallel()
		b, now := clockedBreaker(1, time.Minute)
		_, _ = Guard(ctx, b, failing)
		require.Equal(t, BreakerOpen, b.State())

		*now = now.Add(2 * time.Minute)
		require.Equal(t, BreakerHalfOpen, b.State())

		got, err := Guard(ctx, b, succeeding)
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, BreakerClosed, b.State())
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		t.Parallel()
		b, now := clockedBreaker(1, time.Minute)
		_, _ = Guard(ctx, b, failing)

		*now = now.Add(2 * time.Minute)
		_, err := Guard(ctx, b, failing)
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, BreakerOpen, b.State())

		// Still rejecting before the next cooldown elapses.
		_, err = Guard(ctx, b, succeeding)
		require.ErrorIs(t, err, ErrBreakerOpen)
	})
}

func TestGuardPassesThroughValue(t *testing.T) {
	t.Parallel()
	b := NewBreaker("test", 5, time.Minute)

	got, err := Guard(context.Background(), b, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
