package config

import (
	"strings"
	"testing"
)

func TestDumpRendersYAML(t *testing.T) {
	var c Config
	c.Cluster.Seeds = []string{"127.0.0.1:3000"}
	c.Pool.MaxConnections = 8

	b, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "127.0.0.1:3000") {
		t.Fatalf("expected seed in rendered config:\n%s", out)
	}
	if !strings.Contains(out, "maxconnections: 8") {
		t.Fatalf("expected pool limit in rendered config:\n%s", out)
	}
}

func TestEnvOrDefault(t *testing.T) {
	if got := envOrDefault("ASPIKE_TEST_UNSET_VAR", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("ASPIKE_TEST_SET_VAR", "v")
	if got := envOrDefault("ASPIKE_TEST_SET_VAR", "fallback"); got != "v" {
		t.Fatalf("expected env value, got %q", got)
	}
}
