// Package fingerprint computes the behavioural signals used to tell humans,
// scanners and AI agents apart.
//
// Every scorer is a pure function over a session's full event history. None
// of them keeps state between calls, so re-scoring the same snapshot always
// yields the same result.
package fingerprint

import (
	"github.com/jmerrifield20/sundew/internal/event"
)

// Signal names, as used in config keys, storage and the API.
const (
	SignalTiming          = "timing"
	SignalPathEnumeration = "path_enumeration"
	SignalHeaderAnomaly   = "header_anomaly"
	SignalPromptLeakage   = "prompt_leakage"
	SignalProtocolNative  = "protocol_native"
)

// Signals lists every signal name in canonical order.
var Signals = []string{
	SignalTiming,
	SignalPathEnumeration,
	SignalHeaderAnomaly,
	SignalPromptLeakage,
	SignalProtocolNative,
}

// Scores holds the five signal values, each in [0, 1].
type Scores struct {
	Timing          float64 `json:"timing"`
	PathEnumeration float64 `json:"path_enumeration"`
	HeaderAnomaly   float64 `json:"header_anomaly"`
	PromptLeakage   float64 `json:"prompt_leakage"`
	ProtocolNative  float64 `json:"protocol_native"`
}

// Get returns the score for a signal name, or 0 for an unknown name.
func (s Scores) Get(signal string) float64 {
	switch signal {
	case SignalTiming:
		return s.Timing
	case SignalPathEnumeration:
		return s.PathEnumeration
	case SignalHeaderAnomaly:
		return s.HeaderAnomaly
	case SignalPromptLeakage:
		return s.PromptLeakage
	case SignalProtocolNative:
		return s.ProtocolNative
	}
	return 0
}

// Score runs all five scorers over events.
func Score(events []event.Event) Scores {
	return Scores{
		Timing:          Timing(events),
		PathEnumeration: PathEnumeration(events),
		HeaderAnomaly:   HeaderAnomaly(events),
		PromptLeakage:   PromptLeakage(events),
		ProtocolNative:  ProtocolNative(events),
	}
}

// ProtocolNative is 1 when any event arrived over the protocol transport.
func ProtocolNative(events []event.Event) float64 {
	for _, e := range events {
		if e.IsProtocol() {
			return 1
		}
	}
	return 0
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// fromPoints converts hundredths to a clamped score. Scorers accumulate in
// integer points so that sums such as 0.7+0.2 stay exact.
func fromPoints(p int) float64 {
	if p > 100 {
		p = 100
	}
	return clamp(float64(p) / 100)
}
