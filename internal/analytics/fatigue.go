package analytics

import (
	"time"

	"cogstate-service/internal/models"
)

var (
	highFatigueRecommendations = []string{
		"Take a 10-15 minute break",
		"Do some light stretching",
		"Hydrate with water",
		"Consider switching to easier material",
	}
	severeFatigueRecommendations = []string{
		"Take an immediate 15-20 minute break",
		"Consider ending the study session",
		"Get some fresh air or light exercise",
		"Ensure adequate sleep tonight",
	}
)

const (
	recommendationScore = 60
	breakScore          = 70
)

// FatigueEstimator turns a pruned eye history into a FatigueAssessment using
// a fixed additive rule ladder.
type FatigueEstimator struct {
	window     time.Duration
	yawnWindow time.Duration
}

func NewFatigueEstimator(window, yawnWindow time.Duration) *FatigueEstimator {
	return &FatigueEstimator{window: window, yawnWindow: yawnWindow}
}

// Estimate scores the history. With fewer than MinEARSamples EAR values the
// score and level are nil and confidence is 0.
func (f *FatigueEstimator) Estimate(history *EyeMetricHistory) models.FatigueAssessment {
	assessment := models.FatigueAssessment{Recommendations: []string{}}

	valid := history.ValidEARCount()
	if valid < MinEARSamples {
		return assessment
	}

	seg := SegmentBlinks(history.Samples())

	blinkPerMin := float64(seg.BlinkCount) * (60 / f.window.Seconds())
	avgClosureMs := meanMillis(seg.ClosureDurations)
	microSleep := false
	for _, d := range seg.ClosureDurations {
		if IsMicroSleep(d) {
			microSleep = true
			break
		}
	}

	score := fatigueScore(blinkPerMin, avgClosureMs, microSleep)
	level := LevelForScore(score)

	assessment.FatigueScore = &score
	assessment.Level = &level
	assessment.Indicators = models.FatigueIndicators{
		EyeClosureDurationSec: avgClosureMs / 1000,
		BlinkFrequencyPerMin:  blinkPerMin,
		MicroSleep:            microSleep,
		YawnDetected:          detectYawn(history.RecentWindow(f.yawnWindow)),
	}
	assessment.Recommendations = recommendationsFor(score)
	assessment.BreakSuggested = score > breakScore
	assessment.Confidence = 0.6
	if valid >= HighConfidenceEARSamples {
		assessment.Confidence = 0.8
	}

	return assessment
}

func fatigueScore(blinkPerMin, avgClosureMs float64, microSleep bool) int {
	score := 0
	if blinkPerMin > 25 {
		score += 30
	}
	if blinkPerMin > 35 {
		score += 20
	}
	if avgClosureMs > 300 {
		score += 20
	}
	if avgClosureMs > 600 {
		score += 20
	}
	if microSleep {
		score += 20
	}
	return clampInt(score, 0, 100)
}

// detectYawn returns nil when no MAR value is present in the window.
func detectYawn(samples []models.EyeMetricSample) *bool {
	seen := false
	yawn := false
	for _, s := range samples {
		if s.MAR == nil {
			continue
		}
		seen = true
		if *s.MAR > MARYawnThreshold {
			yawn = true
		}
	}
	if !seen {
		return nil
	}
	return &yawn
}

// LevelForScore buckets a fatigue score at 20/40/60/80.
func LevelForScore(score int) models.FatigueLevel {
	switch {
	case score >= 80:
		return models.FatigueSevere
	case score >= 60:
		return models.FatigueHigh
	case score >= 40:
		return models.FatigueModerate
	case score >= 20:
		return models.FatigueLow
	default:
		return models.FatigueMinimal
	}
}

func recommendationsFor(score int) []string {
	if score <= recommendationScore {
		return []string{}
	}
	src := highFatigueRecommendations
	if score >= 80 {
		src = severeFatigueRecommendations
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

func meanMillis(ds []time.Duration) float64 {
	if len(ds) == 0 {
		return 0
	}
	var sum float64
	for _, d := range ds {
		sum += float64(d) / float64(time.Millisecond)
	}
	return sum / float64(len(ds))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
