package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port == 0 {
		t.Error("expected a default server port")
	}
	if cfg.Jobs.Workers <= 0 {
		t.Error("expected a positive default worker count")
	}
	if cfg.Jobs.MaxDegradedImages != 0 {
		t.Error("degraded-image limit should default off")
	}
	if cfg.Images.MaxEdge != 2000 {
		t.Errorf("expected max edge 2000, got %d", cfg.Images.MaxEdge)
	}
	if cfg.Ghostwriter.Backend != "mock" {
		t.Errorf("expected mock backend default, got %s", cfg.Ghostwriter.Backend)
	}
	if cfg.Ghostwriter.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected API key placeholder")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestGhostwriterAPIKey(t *testing.T) {
	os.Setenv("TEST_PRODUCER_KEY", "gw-key-123")
	defer os.Unsetenv("TEST_PRODUCER_KEY")

	cfg := &Config{
		Ghostwriter: GhostwriterCfg{APIKey: "${TEST_PRODUCER_KEY}"},
	}
	if got := cfg.GhostwriterAPIKey(); got != "gw-key-123" {
		t.Errorf("expected gw-key-123, got %s", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "# Bindery configuration") {
		t.Error("expected config header comment")
	}
	for _, key := range []string{"server:", "jobs:", "images:", "ghostwriter:"} {
		if !strings.Contains(content, key) {
			t.Errorf("expected %q section in written config", key)
		}
	}
}
