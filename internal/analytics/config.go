package analytics

import "time"

// Fixed heuristic breakpoints. These are empirically chosen and are not
// exposed as configuration.
const (
	EARThreshold     = 0.21
	MARYawnThreshold = 0.7

	MinBlinkDuration      = 80 * time.Millisecond
	MaxBlinkDuration      = 800 * time.Millisecond
	MicroSleepMinDuration = 1500 * time.Millisecond

	// MinEARSamples is the evidence floor below which no fatigue score is produced.
	MinEARSamples = 3

	// HighConfidenceEARSamples lifts assessment confidence from 0.6 to 0.8.
	HighConfidenceEARSamples = 10

	// MinTrendSamples is the attention history length needed for a trend.
	MinTrendSamples = 6
	trendSubWindow  = 3
	trendBand       = 2.0
)

// EngineConfig holds the tunable windows of a session engine.
type EngineConfig struct {
	Window            time.Duration // eye history retention
	YawnWindow        time.Duration // MAR sub-window for yawn detection
	AttentionCapacity int           // attention samples kept for trend detection
}

// DefaultEngineConfig returns the standard 60 s eye window, 5 s yawn window
// and a 10-sample attention ring.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Window:            60 * time.Second,
		YawnWindow:        5 * time.Second,
		AttentionCapacity: 10,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.YawnWindow <= 0 {
		c.YawnWindow = def.YawnWindow
	}
	if c.AttentionCapacity <= 0 {
		c.AttentionCapacity = def.AttentionCapacity
	}
	return c
}
