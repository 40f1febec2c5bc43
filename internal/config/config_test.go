package config

import (
	"os"
	"testing"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
  system_prompt: Be brief.
server:
  host: 127.0.0.1
  port: "8080"
history:
  backend: sqlite
  dsn: "file:test.db"
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(body); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()
	return tmp.Name()
}

// TestLoad_File verifies that Load unmarshals every section of the YAML file.
func TestLoad_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.LLM.APIKey != "dummy" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.SystemPrompt != "Be brief." {
		t.Fatalf("unexpected system prompt: %q", cfg.LLM.SystemPrompt)
	}
	if cfg.Server.Port != "8080" || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.History.Backend != "sqlite" || cfg.History.DSN != "file:test.db" {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.Log.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// TestLoad_Defaults verifies defaults apply when the file omits keys.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  api_key: k\n"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != DefaultModel {
		t.Fatalf("expected default model, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.SystemPrompt != DefaultSystemPrompt {
		t.Fatalf("expected default prompt, got %q", cfg.LLM.SystemPrompt)
	}
	if cfg.History.Backend != "memory" {
		t.Fatalf("expected memory backend, got %s", cfg.History.Backend)
	}
	if cfg.Server.Port != "8000" {
		t.Fatalf("expected default port, got %s", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "llm:\n  api_key: from-file\n"))
	t.Setenv("LLM_API_KEY", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("env did not override file: %s", cfg.LLM.APIKey)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{History: HistoryConfig{Backend: "memory"}}
	if err := cfg.Validate(); err != ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{APIKey: "k"}, History: HistoryConfig{Backend: "redis"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
