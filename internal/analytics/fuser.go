package analytics

import (
	"sort"
	"time"

	"cogstate-service/internal/models"
)

const (
	defaultMood           = "neutral"
	confusedEmotion       = "confused"
	defaultFocusFactor    = 0.5
	distractionPenalty    = 0.2
	baseLearningReadiness = 50.0
)

// MetricTrends holds the trend of each tracked metric's recent history.
// An empty trend reads as stable.
type MetricTrends struct {
	Attention      models.Trend
	Engagement     models.Trend
	CognitiveLoad  models.Trend
	EmotionalState models.Trend
}

// FuseInput is everything the fuser needs for one cycle. Attention and Emotion
// are nil when their upstream source produced nothing this tick.
type FuseInput struct {
	Timestamp time.Time
	Fatigue   models.FatigueAssessment
	Trends    MetricTrends
	Attention *models.AttentionReading
	Emotion   *models.EmotionReading
}

// Fuse combines fatigue, attention and emotion readings into a snapshot.
// It is a pure function of its input. Absent attention-derived fields stay
// nil; confusion, fatigue and emotional stability fall back to zero.
func Fuse(in FuseInput) models.CognitiveStateSnapshot {
	att := in.Attention
	if att == nil {
		att = &models.AttentionReading{}
	}
	emo := in.Emotion

	snap := models.CognitiveStateSnapshot{
		Timestamp:         in.Timestamp,
		Attention:         copyFloat(att.Score),
		Engagement:        scaled(att.EngagementLevel),
		CognitiveLoad:     scaled(att.CognitiveLoadLevel),
		Mood:              defaultMood,
		AttentionTrend:    trendOrStable(in.Trends.Attention),
		FatigueAssessment: in.Fatigue,
		Insights:          []models.Insight{},
	}

	confusion := 0.0
	stability := 0.0
	if emo != nil {
		if p, ok := emo.Probabilities[confusedEmotion]; ok {
			confusion = p * 100
		}
		if emo.EmotionalStabilityRaw != nil {
			stability = *emo.EmotionalStabilityRaw * 100
		}
		if mood, ok := dominantEmotion(emo.Probabilities); ok {
			snap.Mood = mood
		}
	}
	snap.Confusion = &confusion
	snap.EmotionalStability = &stability

	fatigue := 0.0
	if in.Fatigue.FatigueScore != nil {
		fatigue = float64(*in.Fatigue.FatigueScore)
	}
	snap.Fatigue = &fatigue

	focus := focusQuality(att)
	snap.FocusQuality = &focus
	snap.FocusQualityLabel = QualityLabel(snap.FocusQuality)

	readiness := learningReadiness(snap.Attention, snap.Engagement, fatigue, confusion, stability)
	snap.LearningReadiness = &readiness
	snap.LearningReadinessLabel = QualityLabel(snap.LearningReadiness)

	snap.Confidences = models.Confidences{
		Emotion:   valueOr(emoConfidence(emo), 0),
		Attention: valueOr(att.GazeConfidence, 0),
		Fatigue:   in.Fatigue.Confidence,
	}

	var reportedStability *float64
	if emo != nil && emo.EmotionalStabilityRaw != nil {
		reportedStability = snap.EmotionalStability
	}
	snap.Metrics = models.MetricSummaries{
		Attention:      metricSummary(snap.Attention, in.Trends.Attention),
		Engagement:     metricSummary(snap.Engagement, in.Trends.Engagement),
		CognitiveLoad:  metricSummary(snap.CognitiveLoad, in.Trends.CognitiveLoad),
		EmotionalState: metricSummary(reportedStability, in.Trends.EmotionalState),
	}

	return snap
}

func metricSummary(v *float64, trend models.Trend) models.MetricSummary {
	return models.MetricSummary{Label: QualityLabel(v), Trend: trendOrStable(trend)}
}

func trendOrStable(t models.Trend) models.Trend {
	if t == "" {
		return models.TrendStable
	}
	return t
}

// focusQuality averages gaze fixation stability, focus-map stability and a
// distraction factor, each defaulting to 0.5 when absent.
func focusQuality(att *models.AttentionReading) float64 {
	gaze := valueOr(att.GazeFixationStability, defaultFocusFactor)
	focusMap := valueOr(att.FocusStability, defaultFocusFactor)
	distraction := defaultFocusFactor
	if att.DistractionCount != nil {
		distraction = 1 - distractionPenalty*float64(*att.DistractionCount)
	}
	return clampFloat(100*(gaze+focusMap+distraction)/3, 0, 100)
}

// learningReadiness treats nil contributors as zero for this formula only.
func learningReadiness(attention, engagement *float64, fatigue, confusion, stability float64) float64 {
	v := baseLearningReadiness +
		0.3*valueOr(attention, 0) +
		0.25*valueOr(engagement, 0) -
		0.2*fatigue -
		0.15*confusion +
		0.1*stability
	return clampFloat(v, 0, 100)
}

// dominantEmotion picks the highest-probability key. Ties resolve to the
// lexicographically smallest key so repeated fusion is deterministic.
func dominantEmotion(probs map[string]float64) (string, bool) {
	if len(probs) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(probs))
	for k := range probs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return best, true
}

// QualityLabel maps a 0-100 value onto the dashboard quality bands.
func QualityLabel(v *float64) *string {
	if v == nil {
		return nil
	}
	var label string
	switch r := *v / 100; {
	case r >= 0.9:
		label = "Excellent"
	case r >= 0.8:
		label = "Very Good"
	case r >= 0.7:
		label = "Good"
	case r >= 0.6:
		label = "Fair"
	case r >= 0.4:
		label = "Poor"
	default:
		label = "Very Low"
	}
	return &label
}

func emoConfidence(emo *models.EmotionReading) *float64 {
	if emo == nil {
		return nil
	}
	return emo.Confidence
}

func scaled(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * 100
	return &out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
