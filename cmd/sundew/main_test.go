package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/sundew/internal/monitor"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "sundew ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCanaryCheck(t *testing.T) {
	out, err := run(t, "canary", "check", "sk-sundew-FAKE-0a1b2c", "10.0.1.5")
	if err != nil {
		t.Fatalf("expected fake values to pass: %v\n%s", err, out)
	}
	if strings.Contains(out, "REAL?") {
		t.Fatalf("unexpected failure in %q", out)
	}

	out, err = run(t, "canary", "check", "8.8.8.8")
	if err == nil {
		t.Fatalf("expected public address to fail:\n%s", out)
	}
	if !strings.Contains(out, "REAL?") {
		t.Fatalf("expected REAL? marker in %q", out)
	}
}

func TestToken(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sundew.yaml")
	secret := "cli-test-secret-0123456789"
	if err := os.WriteFile(cfgPath, []byte("monitor:\n  jwt_secret: "+secret+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Cleanup(func() { cfgFile = "" })

	out, err := run(t, "--config", cfgPath, "token", "--subject", "alice", "--close")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	issuer, err := monitor.NewTokenIssuer(secret, tokenIssuerName, 0)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	claims, err := issuer.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice" || !claims.HasScope(monitor.ScopeClose) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
