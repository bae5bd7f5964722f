package analytics

import "cogstate-service/internal/models"

// SummarizeFatigue aggregates fatigue over a series of snapshots. Snapshots
// without a fatigue score count toward the total but not the average or the
// level distribution.
func SummarizeFatigue(sessionID string, snaps []models.CognitiveStateSnapshot) models.FatigueTrendSummary {
	summary := models.FatigueTrendSummary{
		SessionID:         sessionID,
		TotalMeasurements: len(snaps),
		LevelDistribution: map[models.FatigueLevel]float64{},
	}

	var sum float64
	counts := map[models.FatigueLevel]int{}
	for _, s := range snaps {
		fa := s.FatigueAssessment
		if fa.BreakSuggested {
			summary.BreakSuggestions++
		}
		if fa.FatigueScore == nil {
			continue
		}
		summary.ScoredMeasurements++
		sum += float64(*fa.FatigueScore)
		counts[LevelForScore(*fa.FatigueScore)]++
	}

	if summary.ScoredMeasurements == 0 {
		return summary
	}
	avg := sum / float64(summary.ScoredMeasurements)
	summary.AverageFatigue = &avg
	for level, n := range counts {
		summary.LevelDistribution[level] = float64(n) / float64(summary.ScoredMeasurements) * 100
	}
	return summary
}
