package pack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/canary"
	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/pkg/mcpmanifest"
)

func TestBuild_deterministic(t *testing.T) {
	p := persona.Derive(7)
	if !reflect.DeepEqual(Build(p), Build(p)) {
		t.Fatal("Build should be deterministic for a persona")
	}
}

func TestBuild_everyCanaryIsFake(t *testing.T) {
	for seed := int64(0); seed < 150; seed++ {
		p := persona.Derive(seed)
		var tokens []canary.Token
		for _, a := range Build(p) {
			tokens = append(tokens, canary.Extract(a.Body)...)
			for _, v := range a.Headers {
				tokens = append(tokens, canary.Extract(v)...)
			}
		}
		if len(tokens) == 0 {
			t.Fatalf("seed %d: expected canaries in the pack", seed)
		}
		if err := canary.Validate(tokens); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestBuild_jsonBodiesAreValid(t *testing.T) {
	for seed := int64(0); seed < 30; seed++ {
		for _, a := range Build(persona.Derive(seed)) {
			if a.ContentType == "application/json" && !json.Valid([]byte(a.Body)) {
				t.Fatalf("seed %d: %s %s has invalid JSON", seed, a.Method, a.Path)
			}
		}
	}
}

func TestBuild_coversDiscoveryAndProtocol(t *testing.T) {
	p := persona.Derive(11)
	c := persona.NewCache(Build(p))

	for _, path := range DiscoveryPaths {
		if _, ok := c.Lookup(path, "GET"); !ok {
			t.Errorf("missing discovery artifact %s", path)
		}
	}
	for _, path := range []string{"/health", "/.env", p.Endpoint(p.DataTheme), p.Endpoint(p.DataTheme + "/abc123")} {
		if _, ok := c.Lookup(path, "GET"); !ok {
			t.Errorf("missing artifact GET %s", path)
		}
	}

	if _, ok := c.Lookup("initialize", MethodRPC); !ok {
		t.Fatal("missing initialize artifact")
	}
	list, ok := c.Lookup("tools/list", MethodRPC)
	if !ok {
		t.Fatal("missing tools/list artifact")
	}
	var res mcpmanifest.ToolsListResult
	if err := json.Unmarshal([]byte(list.Body), &res); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	if len(res.Tools) == 0 {
		t.Fatal("expected tools")
	}
	for _, tool := range res.Tools {
		if !strings.HasPrefix(tool.Name, p.MCPToolPrefix) {
			t.Errorf("tool %q missing prefix %q", tool.Name, p.MCPToolPrefix)
		}
		if _, ok := c.Lookup(tool.Name, MethodTool); !ok {
			t.Errorf("no result artifact for tool %q", tool.Name)
		}
	}
}

func TestSingular(t *testing.T) {
	cases := map[string]string{
		"payments":     "payment",
		"repositories": "repository",
		"warehouses":   "warehouse",
		"inventory":    "inventory",
	}
	for in, want := range cases {
		if got := singular(in); got != want {
			t.Errorf("singular(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFile_roundTrip(t *testing.T) {
	p := persona.Derive(21)
	path := filepath.Join(t.TempDir(), "templates.json")
	want := []persona.Artifact{{Path: "/custom", Method: "GET", StatusCode: 200, ContentType: "text/plain", Body: "hello"}}
	if err := WriteFile(path, p, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadFile(path, p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if _, err := LoadFile(path, persona.Derive(22)); err == nil {
		t.Fatal("expected error for cache of a different persona")
	}
}

func TestMaterialize_fallsBack(t *testing.T) {
	p := persona.Derive(5)
	dir := t.TempDir()
	logger := zap.NewNop()

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.json")
	if err := WriteFile(empty, p, nil); err != nil {
		t.Fatal(err)
	}

	for _, file := range []string{"", filepath.Join(dir, "missing.json"), corrupt, empty} {
		c, src := Materialize(p, file, logger)
		if src != SourceBuiltin {
			t.Errorf("%q: expected builtin source, got %s", file, src)
		}
		if _, ok := c.Lookup("/openapi.json", "GET"); !ok {
			t.Errorf("%q: builtin pack should serve /openapi.json", file)
		}
	}

	good := filepath.Join(dir, "good.json")
	if err := WriteFile(good, p, []persona.Artifact{{Path: "/x", Method: "GET", StatusCode: 200}}); err != nil {
		t.Fatal(err)
	}
	c, src := Materialize(p, good, logger)
	if src != SourceFile || c.Len() != 1 {
		t.Fatalf("expected file source with 1 artifact, got %s with %d", src, c.Len())
	}
}
