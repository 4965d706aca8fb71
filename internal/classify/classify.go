// Package classify combines signal scores into a composite score and a
// discrete visitor label.
package classify

import (
	"errors"
	"fmt"
	"math"

	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/fingerprint"
)

// Label is the classification assigned to a session.
type Label string

const (
	Human      Label = "human"
	Automated  Label = "automated"
	AIAssisted Label = "ai_assisted"
	AIAgent    Label = "ai_agent"
)

// Weights is the per-signal contribution to the composite score.
type Weights struct {
	Timing          float64 `json:"timing" mapstructure:"timing"`
	PathEnumeration float64 `json:"path_enumeration" mapstructure:"path_enumeration"`
	HeaderAnomaly   float64 `json:"header_anomaly" mapstructure:"header_anomaly"`
	PromptLeakage   float64 `json:"prompt_leakage" mapstructure:"prompt_leakage"`
	ProtocolNative  float64 `json:"protocol_native" mapstructure:"protocol_native"`
}

func (w Weights) get(signal string) float64 {
	return fingerprint.Scores(w).Get(signal)
}

// Boundaries are the lower-inclusive composite thresholds of the labels
// above human.
type Boundaries struct {
	Automated  float64 `json:"automated"`
	AIAssisted float64 `json:"ai_assisted"`
	AIAgent    float64 `json:"ai_agent"`
}

// Config parameterises a Classifier.
type Config struct {
	Weights    Weights    `json:"weights"`
	Boundaries Boundaries `json:"boundaries"`
}

// DefaultConfig weighs every signal equally and uses 0.3/0.6/0.8.
func DefaultConfig() Config {
	return Config{
		Weights:    Weights{1, 1, 1, 1, 1},
		Boundaries: Boundaries{Automated: 0.3, AIAssisted: 0.6, AIAgent: 0.8},
	}
}

// Validate rejects weight vectors and boundaries that would make labels
// ambiguous.
func (c Config) Validate() error {
	var sum float64
	for _, s := range fingerprint.Signals {
		w := c.Weights.get(s)
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("classify: weight for %s must be a finite non-negative number, got %v", s, w)
		}
		sum += w
	}
	if sum <= 0 {
		return errors.New("classify: weights must not all be zero")
	}
	b := c.Boundaries
	if !(b.Automated > 0 && b.Automated < b.AIAssisted && b.AIAssisted < b.AIAgent && b.AIAgent <= 1) {
		return fmt.Errorf("classify: boundaries must satisfy 0 < %v < %v < %v <= 1", b.Automated, b.AIAssisted, b.AIAgent)
	}
	return nil
}

// Result is one classification.
type Result struct {
	Label     Label              `json:"label"`
	Composite float64            `json:"composite"`
	Scores    fingerprint.Scores `json:"scores"`
	// Dominant names the highest-scoring signal, or "none" when all are 0.
	Dominant string `json:"dominant"`
	// Forced is set when protocol-native use decided the label.
	Forced bool `json:"forced,omitempty"`
}

// Classifier is immutable and safe for concurrent use.
type Classifier struct {
	cfg   Config
	total float64
}

// New validates cfg and returns a Classifier.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var total float64
	for _, s := range fingerprint.Signals {
		total += cfg.Weights.get(s)
	}
	return &Classifier{cfg: cfg, total: total}, nil
}

// Config returns the configuration the classifier was built with.
func (c *Classifier) Config() Config { return c.cfg }

// Composite is the weighted mean of the scores, rounded to nine decimal
// places so that boundary comparisons are stable.
func (c *Classifier) Composite(s fingerprint.Scores) float64 {
	var sum float64
	for _, name := range fingerprint.Signals {
		sum += c.cfg.Weights.get(name) * clamp(s.Get(name))
	}
	v := math.Round(sum/c.total*1e9) / 1e9
	return clamp(v)
}

// LabelFor maps a composite score to a label.
func (c *Classifier) LabelFor(composite float64) Label {
	b := c.cfg.Boundaries
	switch {
	case composite >= b.AIAgent:
		return AIAgent
	case composite >= b.AIAssisted:
		return AIAssisted
	case composite >= b.Automated:
		return Automated
	default:
		return Human
	}
}

// Classify labels a score vector. Protocol-native use forces AIAgent
// whatever the composite.
func (c *Classifier) Classify(s fingerprint.Scores) Result {
	r := Result{
		Composite: c.Composite(s),
		Scores:    s,
		Dominant:  dominant(s),
	}
	if s.ProtocolNative >= 1 {
		r.Label = AIAgent
		r.Forced = true
		return r
	}
	r.Label = c.LabelFor(r.Composite)
	return r
}

// Evaluate scores events and classifies the result.
func (c *Classifier) Evaluate(events []event.Event) Result {
	return c.Classify(fingerprint.Score(events))
}

func dominant(s fingerprint.Scores) string {
	best, name := 0.0, "none"
	for _, sig := range fingerprint.Signals {
		if v := s.Get(sig); v > best {
			best, name = v, sig
		}
	}
	return name
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
