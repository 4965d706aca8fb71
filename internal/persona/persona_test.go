package persona

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jmerrifield20/sundew/internal/canary"
)

func TestDerive_deterministic(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, -7, 1 << 40, -1 << 62} {
		a, b := Derive(seed), Derive(seed)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("seed %d: derive not deterministic:\n%+v\n%+v", seed, a, b)
		}
		if a.Seed != seed {
			t.Errorf("expected seed %d, got %d", seed, a.Seed)
		}
	}
}

func TestDerive_distinctSeedsDiffer(t *testing.T) {
	seen := make(map[string]int64)
	collisions := 0
	for seed := int64(0); seed < 200; seed++ {
		p := Derive(seed)
		p.Seed = 0
		k := fmt.Sprintf("%+v", p)
		if _, ok := seen[k]; ok {
			collisions++
		}
		seen[k] = seed
	}
	if collisions > 0 {
		t.Fatalf("expected distinct personas for distinct seeds, got %d collisions", collisions)
	}
}

func TestDerive_internallyConsistent(t *testing.T) {
	for seed := int64(0); seed < 500; seed++ {
		p := Derive(seed)
		if err := p.Validate(); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		themes := dataThemes[p.Industry]
		if !contains(themes, p.DataTheme) {
			t.Fatalf("seed %d: theme %q not in industry %q", seed, p.DataTheme, p.Industry)
		}
		if !contains(mcpToolPrefixes[p.Industry], p.MCPToolPrefix) {
			t.Fatalf("seed %d: tool prefix %q not in industry %q", seed, p.MCPToolPrefix, p.Industry)
		}
		if p.LatencyMinMS < 20 || p.LatencyMinMS > 120 {
			t.Fatalf("seed %d: latency min %d out of range", seed, p.LatencyMinMS)
		}
		if p.LatencyMaxMS < p.LatencyMinMS+40 || p.LatencyMaxMS > p.LatencyMinMS+260 {
			t.Fatalf("seed %d: latency max %d out of range", seed, p.LatencyMaxMS)
		}
		if v, ok := p.ExtraHeaders["X-Powered-By"]; ok && poweredBy[p.Framework] != v {
			t.Fatalf("seed %d: X-Powered-By %q contradicts framework %q", seed, v, p.Framework)
		}
	}
}

func TestCanaryTokens_allFake(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		p := Derive(seed)
		if err := canary.Validate(p.CanaryTokens()); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestResolveSeed(t *testing.T) {
	s, err := ResolveSeed("1234")
	if err != nil || s != 1234 {
		t.Fatalf("expected 1234, got %d (%v)", s, err)
	}
	for _, in := range []string{"auto", "", "AUTO"} {
		s, err := ResolveSeed(in)
		if err != nil {
			t.Fatalf("ResolveSeed(%q): %v", in, err)
		}
		if s < 0 {
			t.Errorf("expected non-negative seed, got %d", s)
		}
	}
	if _, err := ResolveSeed("banana"); err == nil {
		t.Error("expected error for non-numeric seed")
	}
}

func TestCache_lookup(t *testing.T) {
	c := NewCache([]Artifact{
		{Path: "/api/v1/users", Method: "GET", StatusCode: 200, Body: "list"},
		{Path: "/api/v1/users/{id}", Method: "GET", StatusCode: 200, Body: "one"},
		{Path: "/api/v1/users/me", Method: "get", StatusCode: 200, Body: "me"},
		{Path: "/api/v1/users", Method: "POST", StatusCode: 201, Body: "created"},
	})

	cases := []struct {
		path, method, want string
		ok                 bool
	}{
		{"/api/v1/users", "GET", "list", true},
		{"/api/v1/users/", "GET", "list", true},
		{"/api/v1/users", "POST", "created", true},
		{"/api/v1/users/42", "GET", "one", true},
		{"/api/v1/users/me", "GET", "me", true},
		{"/api/v1/users/42/keys", "GET", "", false},
		{"/api/v1/users", "DELETE", "", false},
		{"/nope", "GET", "", false},
	}
	for _, tc := range cases {
		a, ok := c.Lookup(tc.path, tc.method)
		if ok != tc.ok || a.Body != tc.want {
			t.Errorf("Lookup(%s %s) = (%q, %v), want (%q, %v)", tc.method, tc.path, a.Body, ok, tc.want, tc.ok)
		}
	}
	if c.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", c.Len())
	}
}

func TestCache_nilMissesUniformly(t *testing.T) {
	var c *Cache
	if _, ok := c.Lookup("/", "GET"); ok {
		t.Fatal("nil cache should miss")
	}
	e := NewEngine(Derive(1), nil, nil)
	if _, ok := e.GetResponse("/openapi.json", "GET"); ok {
		t.Fatal("engine without cache should miss")
	}
}

func TestCache_immutable(t *testing.T) {
	src := []Artifact{{Path: "/x", Method: "GET", Headers: map[string]string{"A": "1"}}}
	c := NewCache(src)
	src[0].Headers["A"] = "2"

	a, _ := c.Lookup("/x", "GET")
	if a.Headers["A"] != "1" {
		t.Fatalf("cache changed after source mutation: %q", a.Headers["A"])
	}
	a.Headers["A"] = "3"
	b, _ := c.Lookup("/x", "GET")
	if b.Headers["A"] != "1" {
		t.Fatalf("cache changed after result mutation: %q", b.Headers["A"])
	}
}

func TestEngine_notFoundByErrorStyle(t *testing.T) {
	for style, ct := range map[string]string{
		"rfc7807":     "application/problem+json",
		"simple_json": "application/json",
		"html":        "text/html; charset=utf-8",
		"xml":         "application/xml",
	} {
		p := Derive(3)
		p.ErrorStyle = style
		a := NewEngine(p, nil, nil).NotFound()
		if a.StatusCode != 404 {
			t.Errorf("%s: expected 404, got %d", style, a.StatusCode)
		}
		if a.ContentType != ct {
			t.Errorf("%s: expected %s, got %s", style, ct, a.ContentType)
		}
		if a.Body == "" {
			t.Errorf("%s: empty body", style)
		}
	}
}

func TestLatencySampler_bounds(t *testing.T) {
	p := Persona{LatencyMinMS: 50, LatencyMaxMS: 150}
	for _, d := range []Distribution{Uniform, Triangular} {
		s := NewLatencySampler(p, d, rand.NewPCG(1, 2))
		for i := 0; i < 1000; i++ {
			v := s.Sample()
			if v < 50*time.Millisecond || v > 150*time.Millisecond {
				t.Fatalf("%s: sample %v out of bounds", d, v)
			}
		}
	}

	fixed := NewLatencySampler(Persona{LatencyMinMS: 80, LatencyMaxMS: 80}, Uniform, nil)
	if got := fixed.Sample(); got != 80*time.Millisecond {
		t.Errorf("expected 80ms, got %v", got)
	}
}

func TestParseDistribution(t *testing.T) {
	if d, err := ParseDistribution("Triangular"); err != nil || d != Triangular {
		t.Fatalf("got %q, %v", d, err)
	}
	if d, _ := ParseDistribution(""); d != Uniform {
		t.Fatalf("expected uniform default, got %q", d)
	}
	if _, err := ParseDistribution("pareto"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveLoad_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	p := Derive(99)
	if err := Save(p, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(p, got) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", p, got)
	}
}

func TestLoad_rejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	p := Derive(5)
	p.LatencyMaxMS = p.LatencyMinMS - 1
	if err := Save(p, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || errors.Is(err, ErrNoArtifact) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
