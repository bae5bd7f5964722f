package analytics

import (
	"errors"
	"fmt"
	"time"

	"cogstate-service/internal/models"
)

// ErrOutOfOrderSample is returned when a sample precedes the last stored one.
var ErrOutOfOrderSample = errors.New("out-of-order sample")

// EyeMetricHistory is a time-ordered buffer of eye-geometry samples pruned to
// a trailing window on every append.
type EyeMetricHistory struct {
	window  time.Duration
	samples []models.EyeMetricSample
}

func NewEyeMetricHistory(window time.Duration) *EyeMetricHistory {
	return &EyeMetricHistory{
		window:  window,
		samples: make([]models.EyeMetricSample, 0, 64),
	}
}

// Append stores sample and drops everything older than the window relative to
// its timestamp. The buffer is left untouched when the sample is out of order.
func (h *EyeMetricHistory) Append(sample models.EyeMetricSample) error {
	if n := len(h.samples); n > 0 {
		last := h.samples[n-1].Timestamp
		if sample.Timestamp.Before(last) {
			return fmt.Errorf("%w: %s precedes %s", ErrOutOfOrderSample,
				sample.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
		}
	}

	h.samples = append(h.samples, sample)
	h.prune(sample.Timestamp)
	return nil
}

func (h *EyeMetricHistory) prune(now time.Time) {
	cutoff := now.Add(-h.window)
	drop := 0
	for drop < len(h.samples) && h.samples[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop == 0 {
		return
	}
	// Compact in place so the backing array does not grow without bound.
	n := copy(h.samples, h.samples[drop:])
	h.samples = h.samples[:n]
}

// RecentWindow returns the samples within [now-d, now], where now is the
// timestamp of the latest sample.
func (h *EyeMetricHistory) RecentWindow(d time.Duration) []models.EyeMetricSample {
	if len(h.samples) == 0 {
		return nil
	}
	cutoff := h.samples[len(h.samples)-1].Timestamp.Add(-d)
	start := len(h.samples)
	for start > 0 && !h.samples[start-1].Timestamp.Before(cutoff) {
		start--
	}
	out := make([]models.EyeMetricSample, len(h.samples)-start)
	copy(out, h.samples[start:])
	return out
}

// Samples returns a copy of the retained samples.
func (h *EyeMetricHistory) Samples() []models.EyeMetricSample {
	out := make([]models.EyeMetricSample, len(h.samples))
	copy(out, h.samples)
	return out
}

func (h *EyeMetricHistory) Len() int {
	return len(h.samples)
}

func (h *EyeMetricHistory) Window() time.Duration {
	return h.window
}

// ValidEARCount counts retained samples carrying an EAR value.
func (h *EyeMetricHistory) ValidEARCount() int {
	n := 0
	for _, s := range h.samples {
		if s.EAR != nil {
			n++
		}
	}
	return n
}
