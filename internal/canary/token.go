package canary

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Kind labels the shape of a canary value.
type Kind string

const (
	KindAPIKey     Kind = "api_key"
	KindConnString Kind = "connection_string"
	KindDomain     Kind = "domain"
	KindIP         Kind = "ip"
)

// Token is a labeled fake credential planted in served content.
type Token struct {
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Generate derives a 16-hex-character canary filler tied to a persona seed,
// its company name and a salt. The same inputs always yield the same value.
func Generate(seed int64, company, salt string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", seed, company, salt)))
	return hex.EncodeToString(sum[:])[:16]
}

// ViolationError lists every canary value that failed validation.
type ViolationError struct {
	Violations []Token
}

func (e *ViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s %q (%s)", v.Kind, v.Value, v.Label))
	}
	return fmt.Sprintf("%d canary value(s) are not verifiably fake: %s",
		len(e.Violations), strings.Join(parts, "; "))
}

// Validate checks every token and returns a *ViolationError naming all
// failures, or nil when every token is verifiably fake.
func Validate(tokens []Token) error {
	var bad []Token
	for _, t := range tokens {
		if !IsVerifiablyFake(t.Value) {
			bad = append(bad, t)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &ViolationError{Violations: bad}
}

var (
	// secretPattern matches API-key-like strings, fake or not.
	secretPattern = regexp.MustCompile(`\b(?:sk|whsec)[-_][A-Za-z0-9_-]{6,}|\bsundew-fake-jwt-[A-Za-z0-9-]+`)
	// connPattern matches URLs with a database or broker scheme.
	connPattern = regexp.MustCompile(`\b(?:postgres|postgresql|mysql|redis|rediss|mongodb|mongodb\+srv|amqp|amqps)://[^\s"'<>]+`)
	// urlHostPattern captures hosts of http(s) URLs.
	urlHostPattern = regexp.MustCompile(`\bhttps?://([A-Za-z0-9.-]+)`)
	// emailHostPattern captures the domain part of e-mail addresses.
	emailHostPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)
	// ipPattern matches dotted quads not preceded by a version-like '/' or '.'.
	ipPattern = regexp.MustCompile(`(?:^|[^/.\w])(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
)

// schemaHosts are namespace identifiers that appear in well-formed documents
// (sitemaps, XML, JSON Schema). They are never dereferenced or planted.
var schemaHosts = map[string]bool{
	"www.sitemaps.org": true,
	"www.w3.org":       true,
	"json-schema.org":  true,
}

// Extract returns canary-shaped candidates found in text, classified by Kind.
// Version strings such as "nginx/1.24.0.1" are not reported as addresses.
func Extract(text string) []Token {
	var out []Token
	seen := make(map[string]bool)
	add := func(kind Kind, value string) {
		value = strings.TrimRight(value, ".,;:)")
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		out = append(out, Token{Label: "extracted", Kind: kind, Value: value})
	}

	for _, m := range secretPattern.FindAllString(text, -1) {
		add(KindAPIKey, m)
	}
	for _, m := range connPattern.FindAllString(text, -1) {
		add(KindConnString, m)
	}
	for _, m := range urlHostPattern.FindAllStringSubmatch(text, -1) {
		if !schemaHosts[strings.ToLower(m[1])] {
			add(KindDomain, m[1])
		}
	}
	for _, m := range emailHostPattern.FindAllStringSubmatch(text, -1) {
		add(KindDomain, m[1])
	}
	for _, m := range ipPattern.FindAllStringSubmatch(text, -1) {
		add(KindIP, m[1])
	}
	return out
}
