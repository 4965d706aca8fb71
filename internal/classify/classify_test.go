package classify

import (
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/fingerprint"
)

func mustNew(t *testing.T, cfg Config) *Classifier {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLabelFor_boundariesAreLowerInclusive(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	cases := []struct {
		composite float64
		want      Label
	}{
		{0, Human},
		{0.2999999, Human},
		{0.3, Automated},
		{0.5999999, Automated},
		{0.6, AIAssisted},
		{0.7999999, AIAssisted},
		{0.8, AIAgent},
		{1, AIAgent},
	}
	for _, tc := range cases {
		if got := c.LabelFor(tc.composite); got != tc.want {
			t.Errorf("LabelFor(%v) = %s, want %s", tc.composite, got, tc.want)
		}
	}
}

func TestComposite_exactBoundaries(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	// 1.5 / 5 == 0.3, 3.0 / 5 == 0.6, 4.0 / 5 == 0.8
	cases := []struct {
		s    fingerprint.Scores
		want Label
	}{
		{fingerprint.Scores{PathEnumeration: 0.9, HeaderAnomaly: 0.6}, Automated},
		{fingerprint.Scores{Timing: 1, PathEnumeration: 1, HeaderAnomaly: 1}, AIAssisted},
		{fingerprint.Scores{Timing: 1, PathEnumeration: 1, HeaderAnomaly: 1, PromptLeakage: 1}, AIAgent},
		{fingerprint.Scores{Timing: 0.7, PathEnumeration: 0.2, HeaderAnomaly: 0.6}, Automated},
	}
	for _, tc := range cases {
		r := c.Classify(tc.s)
		if r.Label != tc.want {
			t.Errorf("Classify(%+v) = %s (composite %v), want %s", tc.s, r.Label, r.Composite, tc.want)
		}
	}
}

func TestComposite_monotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	weights := []Weights{
		{1, 1, 1, 1, 1},
		{0.5, 2, 1, 3, 0},
		{0, 0, 1, 0, 0},
	}
	for _, w := range weights {
		c := mustNew(t, Config{Weights: w, Boundaries: DefaultConfig().Boundaries})
		for i := 0; i < 2000; i++ {
			s := fingerprint.Scores{r.Float64(), r.Float64(), r.Float64(), r.Float64(), r.Float64()}
			base := c.Composite(s)
			for _, sig := range fingerprint.Signals {
				raised := s
				bump := r.Float64() * (1 - s.Get(sig))
				switch sig {
				case fingerprint.SignalTiming:
					raised.Timing += bump
				case fingerprint.SignalPathEnumeration:
					raised.PathEnumeration += bump
				case fingerprint.SignalHeaderAnomaly:
					raised.HeaderAnomaly += bump
				case fingerprint.SignalPromptLeakage:
					raised.PromptLeakage += bump
				case fingerprint.SignalProtocolNative:
					raised.ProtocolNative += bump
				}
				if got := c.Composite(raised); got < base {
					t.Fatalf("raising %s lowered composite: %v -> %v (weights %+v)", sig, base, got, w)
				}
			}
		}
	}
}

func TestClassify_protocolNativeForcesAgent(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	r := c.Classify(fingerprint.Scores{ProtocolNative: 1})
	if r.Label != AIAgent || !r.Forced {
		t.Fatalf("expected forced ai_agent, got %+v", r)
	}
	if r.Composite != 0.2 {
		t.Errorf("composite should still be reported, got %v", r.Composite)
	}
	if r.Dominant != fingerprint.SignalProtocolNative {
		t.Errorf("expected protocol_native dominant, got %s", r.Dominant)
	}
}

func TestClassify_idempotent(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	s := fingerprint.Scores{Timing: 0.5, PathEnumeration: 0.3, HeaderAnomaly: 0.65, PromptLeakage: 0.7}
	if c.Classify(s) != c.Classify(s) {
		t.Fatal("classification should be idempotent")
	}
}

func TestDominant(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	if d := c.Classify(fingerprint.Scores{}).Dominant; d != "none" {
		t.Fatalf("expected none, got %s", d)
	}
	if d := c.Classify(fingerprint.Scores{HeaderAnomaly: 0.4, PromptLeakage: 0.9}).Dominant; d != fingerprint.SignalPromptLeakage {
		t.Fatalf("expected prompt_leakage, got %s", d)
	}
}

func TestConfig_Validate(t *testing.T) {
	bad := []Config{
		{Weights: Weights{}, Boundaries: DefaultConfig().Boundaries},
		{Weights: Weights{Timing: -1, PathEnumeration: 2}, Boundaries: DefaultConfig().Boundaries},
		{Weights: DefaultConfig().Weights, Boundaries: Boundaries{0.6, 0.3, 0.8}},
		{Weights: DefaultConfig().Weights, Boundaries: Boundaries{0, 0.3, 0.8}},
		{Weights: DefaultConfig().Weights, Boundaries: Boundaries{0.3, 0.6, 1.2}},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: expected error for %+v", i, cfg)
		}
	}
}

func TestEvaluate_discoveryProbeIsAutomated(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := http.Header{"User-Agent": {"curl/8.4.0"}}
	evs := []event.Event{
		{Key: "203.0.113.9|ab", Timestamp: now, Method: "GET", Path: "/.well-known/ai-plugin.json", Headers: h},
		{Key: "203.0.113.9|ab", Timestamp: now.Add(300 * time.Millisecond), Method: "GET", Path: "/openapi.json", Headers: h},
	}
	r := c.Evaluate(evs)
	if r.Scores.ProtocolNative != 0 {
		t.Fatalf("expected protocol_native 0, got %v", r.Scores.ProtocolNative)
	}
	if r.Scores.PathEnumeration < 0.8 {
		t.Fatalf("expected high path enumeration, got %v", r.Scores.PathEnumeration)
	}
	if r.Label != Automated {
		t.Fatalf("expected automated, got %s (composite %v, scores %+v)", r.Label, r.Composite, r.Scores)
	}
}

func TestEvaluate_protocolInitializeIsAgent(t *testing.T) {
	c := mustNew(t, DefaultConfig())
	evs := []event.Event{{
		Key:       "10.0.0.5|cd",
		Timestamp: time.Now(),
		Method:    "POST",
		Path:      "initialize",
		Transport: event.TransportProtocol,
	}}
	r := c.Evaluate(evs)
	if r.Scores.ProtocolNative != 1 || r.Label != AIAgent {
		t.Fatalf("expected forced ai_agent, got %+v", r)
	}
}
