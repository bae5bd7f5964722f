package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogstate-service/internal/analytics"
	"cogstate-service/internal/models"
)

func f(v float64) *float64 { return &v }

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func eyeTick(ms int, ear, attention float64) models.TickInput {
	ts := base.Add(time.Duration(ms) * time.Millisecond)
	return models.TickInput{
		Timestamp: ts,
		Eye:       &models.EyeMetricSample{Timestamp: ts, EAR: f(ear)},
		Attention: &models.AttentionReading{Score: f(attention)},
	}
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)

	info := r.Start()
	require.NotEmpty(t, info.SessionID)
	assert.Equal(t, 1, r.Count())

	latest, err := r.Latest(info.SessionID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	snap, err := r.Tick(info.SessionID, eyeTick(0, 0.3, 70))
	require.NoError(t, err)
	assert.InDelta(t, 70, *snap.Attention, 1e-9)

	latest, err = r.Latest(info.SessionID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, snap.Timestamp, latest.Timestamp)

	got, stats, err := r.Info(info.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TickCount)
	assert.Equal(t, 1, stats.EyeSamples)

	require.NoError(t, r.End(info.SessionID))
	assert.Equal(t, 0, r.Count())
	assert.True(t, errors.Is(r.End(info.SessionID), ErrSessionNotFound))

	_, err = r.Tick(info.SessionID, eyeTick(3000, 0.3, 70))
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	a := r.Start().SessionID
	b := r.Start().SessionID
	require.NotEqual(t, a, b)

	for i, s := range []float64{50, 50, 50, 60, 60, 60} {
		_, err := r.Tick(a, eyeTick(i*3000, 0.3, s))
		require.NoError(t, err)
	}
	snapB, err := r.Tick(b, eyeTick(0, 0.3, 60))
	require.NoError(t, err)

	latestA, err := r.Latest(a)
	require.NoError(t, err)
	assert.Equal(t, models.TrendRising, latestA.AttentionTrend)
	assert.Equal(t, models.TrendStable, snapB.AttentionTrend)

	// b's clock is independent of a's, so an earlier timestamp is fine there.
	_, stats, err := r.Info(b)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EyeSamples)
}

func TestRegistry_OutOfOrderDoesNotAdvanceSession(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	id := r.Start().SessionID

	_, err := r.Tick(id, eyeTick(3000, 0.3, 70))
	require.NoError(t, err)
	_, err = r.Tick(id, eyeTick(0, 0.3, 70))
	require.True(t, errors.Is(err, analytics.ErrOutOfOrderSample))

	info, stats, err := r.Info(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.TickCount)
	assert.Equal(t, int64(1), stats.RejectedSamples)
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = r.Start().SessionID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := r.Tick(id, eyeTick(i*100, 0.3, 60))
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		info, _, err := r.Info(id)
		require.NoError(t, err)
		assert.Equal(t, int64(50), info.TickCount)
	}
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	clock := base
	r.now = func() time.Time { return clock }

	stale := r.Start().SessionID
	clock = clock.Add(5 * time.Minute)
	fresh := r.Start().SessionID

	clock = clock.Add(6 * time.Minute)
	expired := r.Sweep(10 * time.Minute)

	assert.Equal(t, []string{stale}, expired)
	assert.Equal(t, 1, r.Count())
	_, err := r.Latest(fresh)
	assert.NoError(t, err)
}

func TestRegistry_StampsTicksWithoutTimestamp(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	clock := base.Add(42 * time.Second)
	r.now = func() time.Time { return clock }
	id := r.Start().SessionID

	snap, err := r.Tick(id, models.TickInput{Attention: &models.AttentionReading{Score: f(55)}})
	require.NoError(t, err)
	assert.Equal(t, clock, snap.Timestamp)

	clock = clock.Add(time.Second)
	snap, err = r.Tick(id, models.TickInput{})
	require.NoError(t, err)
	assert.Equal(t, clock, snap.Timestamp)

	// An eye sample still supplies the tick time.
	in := eyeTick(1000, 0.3, 60)
	in.Timestamp = time.Time{}
	snap, err = r.Tick(id, in)
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Second), snap.Timestamp)
}

func TestRegistry_Exists(t *testing.T) {
	r := NewRegistry(analytics.DefaultEngineConfig(), nil)
	id := r.Start().SessionID

	assert.True(t, r.Exists(id))
	assert.False(t, r.Exists("missing"))

	require.NoError(t, r.End(id))
	assert.False(t, r.Exists(id))
}
