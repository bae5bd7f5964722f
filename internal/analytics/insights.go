package analytics

import "cogstate-service/internal/models"

// Rule inspects a snapshot and returns an insight, or nil when it does not fire.
type Rule interface {
	Name() string
	Evaluate(snap *models.CognitiveStateSnapshot) *models.Insight
}

// thresholdRule fires a fixed insight when its condition holds.
type thresholdRule struct {
	name    string
	when    func(snap *models.CognitiveStateSnapshot) bool
	insight models.Insight
}

func (r thresholdRule) Name() string {
	return r.name
}

func (r thresholdRule) Evaluate(snap *models.CognitiveStateSnapshot) *models.Insight {
	if !r.when(snap) {
		return nil
	}
	insight := r.insight
	return &insight
}

// DefaultRules returns the standard rule set in presentation order.
func DefaultRules() []Rule {
	return []Rule{
		thresholdRule{
			name: "optimal_state",
			when: func(s *models.CognitiveStateSnapshot) bool {
				return gt(s.Attention, 80) && lt(s.Confusion, 20)
			},
			insight: models.Insight{
				Type:       models.InsightOptimalState,
				Message:    "You're in an optimal learning state. This is a great time to tackle challenging material.",
				Confidence: 0.85,
				Actionable: true,
			},
		},
		thresholdRule{
			name: "fatigue_warning",
			when: func(s *models.CognitiveStateSnapshot) bool {
				return gt(s.Fatigue, 70)
			},
			insight: models.Insight{
				Type:       models.InsightFatigueWarning,
				Message:    "High fatigue detected. Consider taking a short break to recharge.",
				Confidence: 0.9,
				Actionable: true,
				Urgent:     true,
			},
		},
		thresholdRule{
			name: "confusion_focus",
			when: func(s *models.CognitiveStateSnapshot) bool {
				return gt(s.Confusion, 60) && gt(s.Attention, 60)
			},
			insight: models.Insight{
				Type:       models.InsightConfusionFocus,
				Message:    "You seem focused but confused. Try reviewing the fundamentals or asking for an explanation.",
				Confidence: 0.75,
				Actionable: true,
			},
		},
		thresholdRule{
			name: "emotional_instability",
			when: func(s *models.CognitiveStateSnapshot) bool {
				return lt(s.EmotionalStability, 40)
			},
			insight: models.Insight{
				Type:       models.InsightEmotionalInstability,
				Message:    "Your emotional state appears unsettled. A few deep breaths may help you refocus.",
				Confidence: 0.7,
				Actionable: true,
			},
		},
	}
}

// InsightEngine applies independent rules in order. Rules never suppress or
// modify one another.
type InsightEngine struct {
	rules []Rule
}

func NewInsightEngine(rules ...Rule) *InsightEngine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &InsightEngine{rules: rules}
}

// Evaluate returns a fresh insight list for snap. It never returns nil.
func (e *InsightEngine) Evaluate(snap *models.CognitiveStateSnapshot) []models.Insight {
	out := make([]models.Insight, 0, len(e.rules))
	for _, r := range e.rules {
		if insight := r.Evaluate(snap); insight != nil {
			out = append(out, *insight)
		}
	}
	return out
}

// gt and lt treat a nil field as not satisfying the comparison.
func gt(v *float64, threshold float64) bool {
	return v != nil && *v > threshold
}

func lt(v *float64, threshold float64) bool {
	return v != nil && *v < threshold
}
