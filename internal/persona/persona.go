// Package persona derives the fake service identity a deployment presents and
// serves the pre-rendered response artifacts that go with it.
//
// A Persona is a pure function of its seed. It is derived once at startup,
// never mutated and shared read-only by every request handler; the same is
// true of the artifact Cache it is paired with inside an Engine.
package persona

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmerrifield20/sundew/internal/canary"
)

// ErrNoArtifact is returned when an artifact source yields nothing to serve.
var ErrNoArtifact = errors.New("no artifact")

// Persona is the complete identity of one deployment.
type Persona struct {
	Seed           int64             `json:"seed" yaml:"seed"`
	CompanyName    string            `json:"company_name" yaml:"company_name"`
	Industry       string            `json:"industry" yaml:"industry"`
	APIStyle       string            `json:"api_style" yaml:"api_style"`
	Framework      string            `json:"framework" yaml:"framework"`
	ErrorStyle     string            `json:"error_style" yaml:"error_style"`
	AuthScheme     string            `json:"auth_scheme" yaml:"auth_scheme"`
	DataTheme      string            `json:"data_theme" yaml:"data_theme"`
	ServerHeader   string            `json:"server_header" yaml:"server_header"`
	EndpointPrefix string            `json:"endpoint_prefix" yaml:"endpoint_prefix"`
	LatencyMinMS   int               `json:"latency_min_ms" yaml:"latency_min_ms"`
	LatencyMaxMS   int               `json:"latency_max_ms" yaml:"latency_max_ms"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers,omitempty"`
	MCPServerName  string            `json:"mcp_server_name" yaml:"mcp_server_name"`
	MCPToolPrefix  string            `json:"mcp_tool_prefix" yaml:"mcp_tool_prefix"`
}

// Validate checks the fields a hand-edited persona file could get wrong.
func (p Persona) Validate() error {
	switch {
	case p.CompanyName == "":
		return errors.New("persona: company_name is required")
	case p.Industry == "":
		return errors.New("persona: industry is required")
	case p.DataTheme == "":
		return errors.New("persona: data_theme is required")
	case !strings.HasPrefix(p.EndpointPrefix, "/"):
		return fmt.Errorf("persona: endpoint_prefix %q must start with /", p.EndpointPrefix)
	case p.LatencyMinMS < 0 || p.LatencyMaxMS < p.LatencyMinMS:
		return fmt.Errorf("persona: invalid latency bounds [%d, %d]", p.LatencyMinMS, p.LatencyMaxMS)
	}
	return nil
}

// Slug is the lowercase alphanumeric form of the company name.
func (p Persona) Slug() string {
	var b strings.Builder
	for _, r := range strings.ToLower(p.CompanyName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "service"
	}
	return b.String()
}

// Domain is the reserved-TLD host the persona pretends to live on.
func (p Persona) Domain() string {
	return p.Slug() + ".example.com"
}

// BaseURL is the public URL advertised in discovery documents.
func (p Persona) BaseURL() string {
	return "https://api." + p.Domain()
}

// Endpoint joins the persona's endpoint prefix with a resource path.
func (p Persona) Endpoint(resource string) string {
	return strings.TrimRight(p.EndpointPrefix, "/") + "/" + strings.TrimLeft(resource, "/")
}

// Canary returns the deterministic filler for the named canary slot.
func (p Persona) Canary(salt string) string {
	return canary.Generate(p.Seed, p.CompanyName, salt)
}

// InternalIP returns a stable RFC 1918 address for the named internal host.
func (p Persona) InternalIP(salt string) string {
	h := p.Canary("host:" + salt)
	n, _ := strconv.ParseUint(h[:2], 16, 8)
	return fmt.Sprintf("10.0.1.%d", 2+n%250)
}

// CanaryTokens lists every fake credential this persona plants in its
// artifacts. Each value must be verifiably fake.
func (p Persona) CanaryTokens() []canary.Token {
	return []canary.Token{
		{Label: "domain", Kind: canary.KindDomain, Value: p.Domain()},
		{Label: "api_key", Kind: canary.KindAPIKey, Value: "sk-sundew-FAKE-" + p.Canary("api_key")},
		{Label: "admin_key", Kind: canary.KindAPIKey, Value: "sk-sundew-FAKE-" + p.Canary("admin_key")},
		{Label: "webhook_secret", Kind: canary.KindAPIKey, Value: "whsec-sundew-FAKE-" + p.Canary("webhook")},
		{Label: "jwt_secret", Kind: canary.KindAPIKey, Value: "sundew-fake-jwt-" + p.Canary("jwt")},
		{Label: "database_url", Kind: canary.KindConnString, Value: p.DatabaseURL()},
		{Label: "redis_url", Kind: canary.KindConnString, Value: p.RedisURL()},
		{Label: "db_host", Kind: canary.KindIP, Value: p.InternalIP("db")},
		{Label: "cache_host", Kind: canary.KindIP, Value: p.InternalIP("cache")},
	}
}

// DatabaseURL is the fake primary database connection string.
func (p Persona) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s_svc:%s@%s:5432/%s_prod",
		p.Slug(), p.Canary("db"), p.InternalIP("db"), p.Industry)
}

// RedisURL is the fake cache connection string.
func (p Persona) RedisURL() string {
	return fmt.Sprintf("redis://:%s@%s:6379/0", p.Canary("redis"), p.InternalIP("cache"))
}
