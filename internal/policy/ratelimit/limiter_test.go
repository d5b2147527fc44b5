package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterSpacesSameDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: 100 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://boatus.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://BOATUS.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterSerializesConcurrentCallers(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: 50 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(ctx, "https://example.com/page"))
		}()
	}
	wg.Wait()
	// three calls at burst 1: first immediate, then two 50ms gaps
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiterDifferentDomainsIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: time.Second})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{Delay: time.Hour})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example/again"))
}

func TestLimiterZeroDelay(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://fast.example/"))
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.boatus.com", Domain("https://WWW.BoatUS.com/expert-advice/"))
	require.Equal(t, "unknown", Domain("::not a url"))
}
