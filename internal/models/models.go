package models

import "time"

type EyeMetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	EAR       *float64  `json:"ear"`
	MAR       *float64  `json:"mar"`
}

type AttentionSample struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// AttentionReading is the already-resolved output of the upstream attention model.
// Any field may be absent.
type AttentionReading struct {
	Score                 *float64 `json:"score"`
	GazeConfidence        *float64 `json:"gaze_confidence"`
	GazeFixationStability *float64 `json:"gaze_fixation_stability"`
	FocusStability        *float64 `json:"focus_stability"`
	DistractionCount      *int     `json:"distraction_count"`
	CognitiveLoadLevel    *float64 `json:"cognitive_load_level"`
	EngagementLevel       *float64 `json:"engagement_level"`
}

// EmotionReading is the already-resolved output of the upstream emotion model.
type EmotionReading struct {
	Probabilities         map[string]float64 `json:"probabilities"`
	Confidence            *float64           `json:"confidence"`
	EmotionalStabilityRaw *float64           `json:"emotional_stability_raw"`
}

type TickInput struct {
	Timestamp time.Time         `json:"timestamp"`
	Eye       *EyeMetricSample  `json:"eye,omitempty"`
	Attention *AttentionReading `json:"attention,omitempty"`
	Emotion   *EmotionReading   `json:"emotion,omitempty"`
}

type FatigueIndicators struct {
	EyeClosureDurationSec float64 `json:"eye_closure_duration_sec"`
	BlinkFrequencyPerMin  float64 `json:"blink_frequency_per_min"`
	MicroSleep            bool    `json:"micro_sleep"`
	YawnDetected          *bool   `json:"yawn_detected"`
}

type FatigueLevel string

const (
	FatigueMinimal  FatigueLevel = "minimal"
	FatigueLow      FatigueLevel = "low"
	FatigueModerate FatigueLevel = "moderate"
	FatigueHigh     FatigueLevel = "high"
	FatigueSevere   FatigueLevel = "severe"
)

type FatigueAssessment struct {
	FatigueScore    *int              `json:"fatigue_score"`
	Level           *FatigueLevel     `json:"level"`
	Indicators      FatigueIndicators `json:"indicators"`
	Recommendations []string          `json:"recommendations"`
	BreakSuggested  bool              `json:"break_suggested"`
	Confidence      float64           `json:"confidence"`
}

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

type InsightType string

const (
	InsightOptimalState         InsightType = "optimal_state"
	InsightFatigueWarning       InsightType = "fatigue_warning"
	InsightConfusionFocus       InsightType = "confusion_focus"
	InsightEmotionalInstability InsightType = "emotional_instability"
)

type Insight struct {
	Type       InsightType `json:"type"`
	Message    string      `json:"message"`
	Confidence float64     `json:"confidence"`
	Actionable bool        `json:"actionable"`
	Urgent     bool        `json:"urgent"`
}

type Confidences struct {
	Emotion   float64 `json:"emotion"`
	Attention float64 `json:"attention"`
	Fatigue   float64 `json:"fatigue"`
}

// MetricSummary is the dashboard view of one tracked metric. Label is nil when
// the metric had no reading this tick.
type MetricSummary struct {
	Label *string `json:"label"`
	Trend Trend   `json:"trend"`
}

type MetricSummaries struct {
	Attention      MetricSummary `json:"attention"`
	Engagement     MetricSummary `json:"engagement"`
	CognitiveLoad  MetricSummary `json:"cognitive_load"`
	EmotionalState MetricSummary `json:"emotional_state"`
}

type CognitiveStateSnapshot struct {
	Timestamp              time.Time         `json:"timestamp"`
	Attention              *float64          `json:"attention"`
	Engagement             *float64          `json:"engagement"`
	Confusion              *float64          `json:"confusion"`
	Fatigue                *float64          `json:"fatigue"`
	Mood                   string            `json:"mood"`
	CognitiveLoad          *float64          `json:"cognitive_load"`
	EmotionalStability     *float64          `json:"emotional_stability"`
	FocusQuality           *float64          `json:"focus_quality"`
	FocusQualityLabel      *string           `json:"focus_quality_label"`
	LearningReadiness      *float64          `json:"learning_readiness"`
	LearningReadinessLabel *string           `json:"learning_readiness_label"`
	AttentionTrend         Trend             `json:"attention_trend"`
	Metrics                MetricSummaries   `json:"metrics"`
	FatigueAssessment      FatigueAssessment `json:"fatigue_assessment"`
	Confidences            Confidences       `json:"confidences"`
	Insights               []Insight         `json:"insights"`
}

type FatigueTrendSummary struct {
	SessionID          string                   `json:"session_id"`
	TotalMeasurements  int                      `json:"total_measurements"`
	ScoredMeasurements int                      `json:"scored_measurements"`
	AverageFatigue     *float64                 `json:"average_fatigue"`
	LevelDistribution  map[FatigueLevel]float64 `json:"level_distribution"`
	BreakSuggestions   int                      `json:"break_suggestions"`
}

type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	TickCount    int64     `json:"tick_count"`
}
