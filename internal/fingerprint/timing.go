package fingerprint

import (
	"math"
	"slices"
	"time"

	"github.com/jmerrifield20/sundew/internal/event"
)

// Timing scores how machine-regular the spacing between events is. It needs
// at least two inter-event intervals; anything less scores 0.
func Timing(events []event.Event) float64 {
	if len(events) < 3 {
		return 0
	}
	ts := make([]time.Time, len(events))
	for i, e := range events {
		ts[i] = e.Timestamp
	}
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })

	deltas := make([]float64, len(ts)-1)
	var sum float64
	for i := 1; i < len(ts); i++ {
		d := float64(ts[i].Sub(ts[i-1])) / float64(time.Millisecond)
		deltas[i-1] = d
		sum += d
	}
	mean := sum / float64(len(deltas))
	if mean == 0 {
		return 1
	}

	var sq float64
	for _, d := range deltas {
		sq += (d - mean) * (d - mean)
	}
	cv := math.Sqrt(sq/float64(len(deltas)-1)) / mean

	switch {
	case cv < 0.05:
		return 1.0
	case cv < 0.15:
		return 0.8
	case cv < 0.3:
		return 0.5
	case cv < 0.5:
		return 0.3
	default:
		return 0.1
	}
}
