package persona

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
	"strconv"
	"strings"
)

// seedStream is the fixed second word of the PCG state so that a seed fully
// determines the generator.
const seedStream = 0x73756e646577 // "sundew"

// Derive returns the persona for seed. The result depends on nothing but
// seed: every call with the same value yields an identical Persona.
func Derive(seed int64) Persona {
	r := mrand.New(mrand.NewPCG(uint64(seed), seedStream))

	industry := pickWeighted(r, industries)
	company := pick(r, companyPrefixes) + pick(r, companySuffixes)
	theme := pick(r, dataThemes[industry])
	prefix := pickWeighted(r, endpointPrefixes)
	toolPrefix := pick(r, mcpToolPrefixes[industry])
	framework := pickWeighted(r, frameworks)

	minMS := 20 + r.IntN(101)
	maxMS := minMS + 40 + r.IntN(221)

	return Persona{
		Seed:           seed,
		CompanyName:    company,
		Industry:       industry,
		APIStyle:       pickWeighted(r, apiStyles),
		Framework:      framework,
		ErrorStyle:     pickWeighted(r, errorStyles),
		AuthScheme:     pickWeighted(r, authSchemes),
		DataTheme:      theme,
		ServerHeader:   pickWeighted(r, serverHeaders),
		EndpointPrefix: prefix,
		LatencyMinMS:   minMS,
		LatencyMaxMS:   maxMS,
		ExtraHeaders:   extraHeaders(r, framework),
		MCPServerName:  pick(r, mcpServerNames),
		MCPToolPrefix:  toolPrefix,
	}
}

func extraHeaders(r *mrand.Rand, framework string) map[string]string {
	h := make(map[string]string)
	if r.Float64() < 0.6 {
		h["X-Request-Id"] = "{{request_id}}"
	}
	if r.Float64() < 0.4 {
		h["X-RateLimit-Limit"] = pick(r, rateLimits)
	}
	if v, ok := poweredBy[framework]; ok && r.Float64() < 0.5 {
		h["X-Powered-By"] = v
	}
	if r.Float64() < 0.5 {
		h["X-Response-Time"] = "{{response_time_ms}}ms"
	}
	return h
}

// ResolveSeed parses a configured seed. "auto" or an empty string draws a
// fresh non-negative seed from the operating system's CSPRNG.
func ResolveSeed(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("drawing persona seed: %w", err)
		}
		return int64(binary.BigEndian.Uint64(b[:]) >> 1), nil
	}
	seed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid persona seed %q: %w", s, err)
	}
	return seed, nil
}
