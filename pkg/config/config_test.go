package config

import (
	"os"
	"testing"
	"time"
)

type testConfig struct {
	Name    string        `yaml:"name" env:"BRIEF_NAME"`
	Cap     int           `yaml:"cap" env:"BRIEF_CAP"`
	Pause   time.Duration `yaml:"pause" env:"BRIEF_PAUSE"`
	Models  []string      `yaml:"models" env:"BRIEF_MODELS"`
	Enabled bool          `yaml:"enabled" env:"BRIEF_ENABLED"`
	LLM     struct {
		APIKey string `yaml:"api_key" env:"BRIEF_API_KEY"`
	} `yaml:"llm"`
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
name: briefbot
cap: 25
pause: 2s
models:
  - gemini-2.0-flash
  - gemini-1.5-flash
enabled: true
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "briefbot" {
		t.Fatalf("expected 'briefbot', got '%s'", cfg.Name)
	}
	if cfg.Cap != 25 {
		t.Fatalf("expected 25, got %d", cfg.Cap)
	}
	if cfg.Pause != 2*time.Second {
		t.Fatalf("expected 2s, got %s", cfg.Pause)
	}
	if len(cfg.Models) != 2 || cfg.Models[0] != "gemini-2.0-flash" {
		t.Fatalf("unexpected models: %v", cfg.Models)
	}
	if !cfg.Enabled {
		t.Fatal("expected enabled to be true")
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeTemp(t, `
name: default
cap: 10
`)

	t.Setenv("BRIEF_NAME", "from-env")
	t.Setenv("BRIEF_CAP", "40")
	t.Setenv("BRIEF_PAUSE", "500ms")
	t.Setenv("BRIEF_MODELS", "model-a, model-b,model-c")
	t.Setenv("BRIEF_API_KEY", "sk-test")

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.Name != "from-env" {
		t.Fatalf("expected 'from-env', got '%s'", cfg.Name)
	}
	if cfg.Cap != 40 {
		t.Fatalf("expected 40, got %d", cfg.Cap)
	}
	if cfg.Pause != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", cfg.Pause)
	}
	if len(cfg.Models) != 3 || cfg.Models[1] != "model-b" {
		t.Fatalf("unexpected models: %v", cfg.Models)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("nested env override not applied: %q", cfg.LLM.APIKey)
	}
}

func TestExpandEnvInFile(t *testing.T) {
	t.Setenv("BRIEF_SECRET", "expanded-key")
	path := writeTemp(t, `
llm:
  api_key: ${BRIEF_SECRET}
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "expanded-key" {
		t.Fatalf("expected expansion, got %q", cfg.LLM.APIKey)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg := testConfig{Name: "compiled-default", Cap: 25}
	if err := LoadOrDefault("/nonexistent/config.yaml", &cfg); err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Name != "compiled-default" || cfg.Cap != 25 {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}
