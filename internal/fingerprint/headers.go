package fingerprint

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/jmerrifield20/sundew/internal/event"
)

// Finding is one header rule that fired for a request.
type Finding struct {
	Rule        string `json:"rule"`
	Description string `json:"description"`
	// Points is the rule's contribution in hundredths of a score.
	Points int `json:"points"`
}

// headerRule inspects one request's headers.
type headerRule func(h http.Header) []Finding

var headerRules = []headerRule{
	ruleUserAgent,
	ruleReferer,
	ruleAccept,
	ruleBrowserHeaders,
	ruleAgentHeaders,
}

// HeaderFindings returns every header rule that fires for h.
func HeaderFindings(h http.Header) []Finding {
	var findings []Finding
	for _, r := range headerRules {
		findings = append(findings, r(h)...)
	}
	return findings
}

// HeaderAnomaly averages the per-request header score over the events that
// carried a header set. Each request's score is capped at 1.
func HeaderAnomaly(events []event.Event) float64 {
	var total float64
	n := 0
	for _, e := range events {
		if e.Headers == nil {
			continue
		}
		points := 0
		for _, f := range HeaderFindings(e.Headers) {
			points += f.Points
		}
		total += fromPoints(points)
		n++
	}
	if n == 0 {
		return 0
	}
	return clamp(total / float64(n))
}

// ── Rules ─────────────────────────────────────────────────────────────────────

var botAgents = []*regexp.Regexp{
	regexp.MustCompile(`(?i)python-requests`),
	regexp.MustCompile(`(?i)python-httpx`),
	regexp.MustCompile(`(?i)node-fetch`),
	regexp.MustCompile(`(?i)axios`),
	regexp.MustCompile(`(?i)httpie`),
	regexp.MustCompile(`(?i)curl`),
	regexp.MustCompile(`(?i)wget`),
	regexp.MustCompile(`(?i)go-http-client`),
	regexp.MustCompile(`(?i)java/`),
	regexp.MustCompile(`(?i)openai`),
	regexp.MustCompile(`(?i)anthropic`),
	regexp.MustCompile(`(?i)langchain`),
	regexp.MustCompile(`(?i)llama`),
	regexp.MustCompile(`(?i)mcp-client`),
	regexp.MustCompile(`(?i)bot|crawler|spider|scraper`),
}

var browserAgents = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Mozilla/5\.0.*Chrome/`),
	regexp.MustCompile(`(?i)Mozilla/5\.0.*Firefox/`),
	regexp.MustCompile(`(?i)Mozilla/5\.0.*Safari/`),
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func ruleUserAgent(h http.Header) []Finding {
	ua := h.Get("User-Agent")
	switch {
	case ua == "":
		return []Finding{{Rule: "missing_user_agent", Description: "No User-Agent header", Points: 30}}
	case matchesAny(botAgents, ua):
		return []Finding{{Rule: "bot_user_agent", Description: "User-Agent names an HTTP library or bot: " + ua, Points: 30}}
	case !matchesAny(browserAgents, ua):
		return []Finding{{Rule: "non_browser_user_agent", Description: "User-Agent is not a browser: " + ua, Points: 20}}
	}
	return nil
}

func ruleReferer(h http.Header) []Finding {
	if _, ok := h["Referer"]; !ok {
		return []Finding{{Rule: "missing_referer", Description: "No Referer header", Points: 10}}
	}
	return nil
}

func ruleAccept(h http.Header) []Finding {
	accept := strings.TrimSpace(h.Get("Accept"))
	switch accept {
	case "application/json":
		return []Finding{{Rule: "json_accept", Description: "Accept is application/json only", Points: 10}}
	case "*/*":
		return []Finding{{Rule: "wildcard_accept", Description: "Accept is */*", Points: 5}}
	case "":
		return []Finding{{Rule: "missing_accept", Description: "No Accept header", Points: 15}}
	}
	return nil
}

func ruleBrowserHeaders(h http.Header) []Finding {
	var findings []Finding
	if _, ok := h["Accept-Language"]; !ok {
		findings = append(findings, Finding{Rule: "missing_accept_language", Description: "No Accept-Language header", Points: 10})
	}
	if _, ok := h["Accept-Encoding"]; !ok {
		findings = append(findings, Finding{Rule: "missing_accept_encoding", Description: "No Accept-Encoding header", Points: 5})
	}
	return findings
}

func ruleAgentHeaders(h http.Header) []Finding {
	for _, k := range []string{"X-Mcp-Version", "X-Openai-Api-Key", "Mcp-Session-Id", "Mcp-Protocol-Version"} {
		if _, ok := h[k]; ok {
			return []Finding{{Rule: "agent_header", Description: "AI client header present: " + k, Points: 30}}
		}
	}
	return nil
}
