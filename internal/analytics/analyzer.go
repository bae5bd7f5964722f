package analytics

import (
	"time"

	"cogstate-service/internal/models"
)

// Stats summarizes what an Analyzer has processed.
type Stats struct {
	TotalTicks       int64 `json:"total_ticks"`
	RejectedSamples  int64 `json:"rejected_samples"`
	EyeSamples       int   `json:"eye_samples"`
	AttentionSamples int   `json:"attention_samples"`
	WindowSeconds    int   `json:"window_seconds"`
}

// Analyzer is the cognitive-state engine for a single session. It owns that
// session's eye history and per-metric score histories and is not safe for
// concurrent use; the host serializes ticks per session.
type Analyzer struct {
	eyes      *EyeMetricHistory
	attention *AttentionHistory

	// Engagement, cognitive load and emotional stability on the 0-100 scale,
	// kept only for their trends.
	engagement *AttentionHistory
	load       *AttentionHistory
	stability  *AttentionHistory

	fatigue  *FatigueEstimator
	insights *InsightEngine
	stats    Stats
}

func NewAnalyzer(cfg EngineConfig) *Analyzer {
	cfg = cfg.withDefaults()
	return &Analyzer{
		eyes:       NewEyeMetricHistory(cfg.Window),
		attention:  NewAttentionHistory(cfg.AttentionCapacity),
		engagement: NewAttentionHistory(cfg.AttentionCapacity),
		load:       NewAttentionHistory(cfg.AttentionCapacity),
		stability:  NewAttentionHistory(cfg.AttentionCapacity),
		fatigue:    NewFatigueEstimator(cfg.Window, cfg.YawnWindow),
		insights:   NewInsightEngine(),
		stats: Stats{
			WindowSeconds: int(cfg.Window.Seconds()),
		},
	}
}

// Analyze runs one full tick: append and prune, segment, estimate fatigue,
// detect the attention trend, fuse, and derive insights. An out-of-order eye
// sample fails the tick with ErrOutOfOrderSample before any state changes.
func (a *Analyzer) Analyze(in models.TickInput) (models.CognitiveStateSnapshot, error) {
	if in.Timestamp.IsZero() && in.Eye != nil {
		in.Timestamp = in.Eye.Timestamp
	}

	if in.Eye != nil {
		if err := a.eyes.Append(*in.Eye); err != nil {
			a.stats.RejectedSamples++
			return models.CognitiveStateSnapshot{}, err
		}
	}
	if in.Attention != nil {
		addScore(a.attention, in.Timestamp, in.Attention.Score, 1)
		addScore(a.engagement, in.Timestamp, in.Attention.EngagementLevel, 100)
		addScore(a.load, in.Timestamp, in.Attention.CognitiveLoadLevel, 100)
	}
	if in.Emotion != nil {
		addScore(a.stability, in.Timestamp, in.Emotion.EmotionalStabilityRaw, 100)
	}

	a.stats.TotalTicks++
	a.stats.EyeSamples = a.eyes.Len()
	a.stats.AttentionSamples = a.attention.Len()

	return a.Assess(in), nil
}

// Assess fuses the current histories with the tick's readings without
// mutating anything. Identical inputs produce identical snapshots.
func (a *Analyzer) Assess(in models.TickInput) models.CognitiveStateSnapshot {
	snap := Fuse(FuseInput{
		Timestamp: in.Timestamp,
		Fatigue:   a.fatigue.Estimate(a.eyes),
		Trends: MetricTrends{
			Attention:      DetectTrend(a.attention.Scores()),
			Engagement:     DetectTrend(a.engagement.Scores()),
			CognitiveLoad:  DetectTrend(a.load.Scores()),
			EmotionalState: DetectTrend(a.stability.Scores()),
		},
		Attention: in.Attention,
		Emotion:   in.Emotion,
	})
	snap.Insights = a.insights.Evaluate(&snap)
	return snap
}

func addScore(h *AttentionHistory, ts time.Time, v *float64, scale float64) {
	if v == nil {
		return
	}
	h.Add(models.AttentionSample{Timestamp: ts, Score: *v * scale})
}

func (a *Analyzer) Stats() Stats {
	return a.stats
}
