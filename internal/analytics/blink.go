package analytics

import (
	"time"

	"cogstate-service/internal/models"
)

// Segmentation is the result of scanning an eye history for closures.
type Segmentation struct {
	BlinkCount       int             `json:"blink_count"`
	ClosureDurations []time.Duration `json:"closure_durations"`
}

// IsBlink reports whether a closure lasted between 80 and 800 ms inclusive.
func IsBlink(d time.Duration) bool {
	return d >= MinBlinkDuration && d <= MaxBlinkDuration
}

// IsMicroSleep reports whether a closure lasted longer than 1500 ms.
func IsMicroSleep(d time.Duration) bool {
	return d > MicroSleepMinDuration
}

// SegmentBlinks finds maximal runs of EAR below EARThreshold. Samples without
// an EAR are skipped and never end an open closure. A closure spans from its
// first closed sample to its last closed sample; one still open when the scan
// ends is closed at the last closed observation, so trailing samples without an
// EAR do not lengthen it.
func SegmentBlinks(samples []models.EyeMetricSample) Segmentation {
	seg := Segmentation{ClosureDurations: []time.Duration{}}

	var (
		closed     bool
		start      time.Time
		lastClosed time.Time
	)
	record := func() {
		d := lastClosed.Sub(start)
		seg.ClosureDurations = append(seg.ClosureDurations, d)
		if IsBlink(d) {
			seg.BlinkCount++
		}
	}

	for _, s := range samples {
		if s.EAR == nil {
			continue
		}
		if *s.EAR < EARThreshold {
			if !closed {
				closed = true
				start = s.Timestamp
			}
			lastClosed = s.Timestamp
			continue
		}
		if closed {
			record()
			closed = false
		}
	}
	if closed {
		record()
	}

	return seg
}
