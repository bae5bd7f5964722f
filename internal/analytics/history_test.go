package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogstate-service/internal/models"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func f(v float64) *float64 {
	return &v
}

func eye(ms int, ear float64) models.EyeMetricSample {
	return models.EyeMetricSample{Timestamp: at(ms), EAR: f(ear)}
}

func historyOf(t *testing.T, samples ...models.EyeMetricSample) *EyeMetricHistory {
	t.Helper()
	h := NewEyeMetricHistory(DefaultEngineConfig().Window)
	for _, s := range samples {
		require.NoError(t, h.Append(s))
	}
	return h
}

func TestEyeMetricHistory_PrunesToWindow(t *testing.T) {
	h := NewEyeMetricHistory(60 * time.Second)

	for sec := 0; sec < 120; sec++ {
		require.NoError(t, h.Append(eye(sec*1000, 0.3)))

		latest := at(sec * 1000)
		for _, s := range h.RecentWindow(60 * time.Second) {
			assert.False(t, s.Timestamp.Before(latest.Add(-60*time.Second)),
				"sample at %s older than window of %s", s.Timestamp, latest)
		}
	}

	// 59s..119s inclusive
	assert.Equal(t, 61, h.Len())
	assert.Equal(t, at(59000), h.Samples()[0].Timestamp)
}

func TestEyeMetricHistory_RejectsOutOfOrder(t *testing.T) {
	h := historyOf(t, eye(0, 0.3), eye(1000, 0.3))

	err := h.Append(eye(500, 0.1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfOrderSample))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, at(1000), h.Samples()[1].Timestamp)
}

func TestEyeMetricHistory_AcceptsEqualTimestamps(t *testing.T) {
	h := historyOf(t, eye(0, 0.3))
	require.NoError(t, h.Append(eye(0, 0.25)))
	assert.Equal(t, 2, h.Len())
}

func TestEyeMetricHistory_RecentWindow(t *testing.T) {
	h := historyOf(t, eye(0, 0.3), eye(2000, 0.3), eye(6000, 0.3), eye(9000, 0.3), eye(11000, 0.3))

	recent := h.RecentWindow(5 * time.Second)
	require.Len(t, recent, 3)
	assert.Equal(t, at(6000), recent[0].Timestamp)
	assert.Equal(t, at(11000), recent[2].Timestamp)

	recent[0].Timestamp = at(0)
	assert.Equal(t, at(6000), h.RecentWindow(5*time.Second)[0].Timestamp, "window must be a copy")
}

func TestEyeMetricHistory_EmptyAndValidCount(t *testing.T) {
	h := NewEyeMetricHistory(time.Minute)
	assert.Nil(t, h.RecentWindow(time.Minute))
	assert.Equal(t, 0, h.ValidEARCount())

	require.NoError(t, h.Append(models.EyeMetricSample{Timestamp: at(0)}))
	require.NoError(t, h.Append(eye(100, 0.3)))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.ValidEARCount())
}
