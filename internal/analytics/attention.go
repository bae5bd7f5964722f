package analytics

import "cogstate-service/internal/models"

// AttentionHistory is a fixed-capacity ring of the most recent attention
// scores. It is bounded by count, not by time.
type AttentionHistory struct {
	buf   []models.AttentionSample
	head  int
	count int
}

func NewAttentionHistory(capacity int) *AttentionHistory {
	if capacity <= 0 {
		capacity = DefaultEngineConfig().AttentionCapacity
	}
	return &AttentionHistory{buf: make([]models.AttentionSample, capacity)}
}

// Add stores a sample, overwriting the oldest once the ring is full.
func (h *AttentionHistory) Add(sample models.AttentionSample) {
	h.buf[h.head] = sample
	h.head = (h.head + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Samples returns the retained samples oldest first.
func (h *AttentionHistory) Samples() []models.AttentionSample {
	out := make([]models.AttentionSample, 0, h.count)
	start := (h.head - h.count + len(h.buf)) % len(h.buf)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

// Scores returns the retained scores oldest first.
func (h *AttentionHistory) Scores() []float64 {
	samples := h.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Score
	}
	return out
}

func (h *AttentionHistory) Len() int {
	return h.count
}

// DetectTrend compares the mean of the last three scores with the mean of the
// three before them. Fewer than six scores yield TrendStable.
func DetectTrend(scores []float64) models.Trend {
	if len(scores) < MinTrendSamples {
		return models.TrendStable
	}
	n := len(scores)
	recent := mean(scores[n-trendSubWindow:])
	previous := mean(scores[n-2*trendSubWindow : n-trendSubWindow])

	switch diff := recent - previous; {
	case diff > trendBand:
		return models.TrendRising
	case diff < -trendBand:
		return models.TrendFalling
	default:
		return models.TrendStable
	}
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
