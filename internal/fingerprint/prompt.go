package fingerprint

import (
	"regexp"

	"github.com/jmerrifield20/sundew/internal/event"
)

// promptPatterns are phrasings and markup that LLM-driven clients leak into
// request bodies.
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)as an ai\b`),
	regexp.MustCompile(`(?i)as a language model\b`),
	regexp.MustCompile(`(?i)i'?m an ai\b`),
	regexp.MustCompile(`(?i)i'?m a language model\b`),
	regexp.MustCompile(`(?i)\bi (?:cannot|can't) (?:help|assist|provide|comply)`),
	regexp.MustCompile(`(?i)</?(?:system|user|assistant|human|tool_use|tool_result)\b`),
	regexp.MustCompile(`(?i)</?(?:function_call|observation|thought|thinking|scratchpad)\b`),
	regexp.MustCompile(`(?i)\bfunction_call\s*\(`),
	regexp.MustCompile(`(?i)\btool_call\b`),
	regexp.MustCompile("(?i)```(?:json|xml|yaml)\\s*\\{"),
	regexp.MustCompile(`(?i)<\|(?:im_start|im_end|system|user|assistant)\|>`),
	regexp.MustCompile(`(?i)\b(?:step \d+|let me|i will now|first,? i)\b.*\b(?:api|endpoint|request)\b`),
	regexp.MustCompile(`(?i)chain.?of.?thought|tool.?use`),
}

// PromptLeakage counts the distinct patterns matched across all request
// bodies. One match is already strong evidence.
func PromptLeakage(events []event.Event) float64 {
	matched := make([]bool, len(promptPatterns))
	n := 0
	for _, e := range events {
		if e.Body == "" {
			continue
		}
		for i, re := range promptPatterns {
			if !matched[i] && re.MatchString(e.Body) {
				matched[i] = true
				n++
			}
		}
	}
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 0.7
	case n <= 3:
		return 0.9
	default:
		return 1.0
	}
}
