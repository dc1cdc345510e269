package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderGroq || cfg.SelectedModel() != "llama-3.3-70b-versatile" {
		t.Fatalf("provider/model = %s/%s", cfg.Provider, cfg.SelectedModel())
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.RetryDelay != time.Second {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.Params.MaxTokens != 2048 || cfg.Timeout != time.Minute {
		t.Fatalf("params = %+v timeout = %s", cfg.Params, cfg.Timeout)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "groq without key",
			cfg:     DefaultConfig(),
			wantErr: "APAI_GROQ_API_KEY",
		},
		{
			name: "groq with key",
			cfg:  func() Config { c := DefaultConfig(); c.Groq.APIKey = "gsk"; return c }(),
		},
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: "APAI_ANTHROPIC_API_KEY",
		},
		{
			name: "anthropic with key",
			cfg:  Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test", Model: "claude-haiku"}},
		},
		{
			name: "openai with key",
			cfg:  Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}},
		},
		{
			name:    "key but no model",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: "no model",
		},
		{
			name: "mock needs no key",
			cfg:  Config{Provider: "mock"},
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: "unknown LLM provider",
		},
		{
			name:    "negative retries",
			cfg:     Config{Provider: "mock", Retry: RetryConfig{MaxRetries: -1}},
			wantErr: "max retries",
		},
		{
			name:    "self fallback",
			cfg:     Config{Provider: "mock", Fallbacks: map[string]string{"a": "a"}},
			wantErr: "maps a model to itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("APAI_LLM_PROVIDER", "openrouter")
	t.Setenv("APAI_OPENROUTER_API_KEY", "sk-or")
	t.Setenv("APAI_OPENROUTER_MODEL", "meta-llama/llama-3-8b")
	t.Setenv("APAI_LLM_MAX_RETRIES", "1")
	t.Setenv("APAI_LLM_RETRY_DELAY", "100ms")
	t.Setenv("APAI_LLM_TIMEOUT", "5s")
	t.Setenv("APAI_LLM_FALLBACKS", "big=small, huge = big")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	req := cfg.Request("hi")
	if req.Model != "meta-llama/llama-3-8b" || req.Endpoint.Provider != ProviderOpenRouter || req.Endpoint.APIKey != "sk-or" {
		t.Fatalf("request = %+v", req)
	}
	if req.Retry.MaxRetries != 1 || req.Retry.RetryDelay != 100*time.Millisecond {
		t.Fatalf("retry = %+v", req.Retry)
	}
	if req.Retry.HonorRetryAfter {
		t.Fatal("provider wait hints must be ignored unless enabled")
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %s", cfg.Timeout)
	}
	if cfg.Fallbacks["big"] != "small" || cfg.Fallbacks["huge"] != "big" {
		t.Fatalf("fallbacks = %v", cfg.Fallbacks)
	}
}

func TestConfigFromEnv_BadValues(t *testing.T) {
	for name, value := range map[string]string{
		"APAI_LLM_MAX_RETRIES":       "many",
		"APAI_LLM_RETRY_DELAY":       "10",
		"APAI_LLM_FALLBACKS":         "nope",
		"APAI_LLM_HONOR_RETRY_AFTER": "sometimes",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := ConfigFromEnv(); err == nil || !strings.Contains(err.Error(), name) {
				t.Fatalf("ConfigFromEnv() = %v, want error naming %s", err, name)
			}
		})
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "gsk-from-env")
	path := writeConfigFile(t, "apai.yaml", `
provider: groq
temperature: 0.2
max_tokens: 512
timeout: 45s
groq:
  api_key: "${TEST_GROQ_KEY}"
  model: llama3-70b-8192
retry:
  max_retries: 2
  retry_delay: 250ms
  exponential: true
  max_delay: 2s
fallbacks:
  llama3-70b-8192: llama3-8b-8192
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Groq.APIKey != "gsk-from-env" {
		t.Fatalf("api key = %q, want expanded env var", cfg.Groq.APIKey)
	}
	if cfg.SelectedModel() != "llama3-70b-8192" || cfg.Params.MaxTokens != 512 || cfg.Params.Temperature != 0.2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 45*time.Second {
		t.Fatalf("timeout = %s", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries != 2 || cfg.Retry.RetryDelay != 250*time.Millisecond || !cfg.Retry.Exponential {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.Retry.Multiplier != 2 {
		t.Fatalf("multiplier = %v, want default 2", cfg.Retry.Multiplier)
	}
	if cfg.Retry.Policy().Backoff == nil {
		t.Fatal("exponential retry must produce a backoff factory")
	}
	if cfg.Fallbacks["llama3-70b-8192"] != "llama3-8b-8192" {
		t.Fatalf("fallbacks = %v", cfg.Fallbacks)
	}
}

func TestLoadConfig_TOMLThenEnv(t *testing.T) {
	path := writeConfigFile(t, "apai.toml", `
provider = "anthropic"

[anthropic]
api_key = "sk-file"
model = "claude-sonnet"

[retry]
max_retries = 0
max_wait = "5s"
honor_retry_after = true
`)
	t.Setenv("APAI_ANTHROPIC_MODEL", "claude-haiku")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != ProviderAnthropic || cfg.Anthropic.APIKey != "sk-file" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SelectedModel() != "claude-haiku" {
		t.Fatalf("model = %q, env must override the file", cfg.SelectedModel())
	}
	if cfg.Retry.MaxRetries != 0 || cfg.Retry.MaxWait != 5*time.Second {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if p := cfg.Retry.Policy(); !p.HonorRetryAfter || p.MaxWait != 5*time.Second {
		t.Fatalf("policy = %+v, want honored hints capped at 5s", p)
	}
	if cfg.Retry.Policy().Backoff != nil {
		t.Fatal("constant retry must not set a backoff factory")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name, file, content, wantErr string
	}{
		{"unknown yaml field", "c.yaml", "provder: groq\n", "provder"},
		{"unknown toml field", "c.toml", "provder = \"groq\"\n", "strict mode"},
		{"bad duration", "c.yaml", "timeout: soon\n", "invalid duration"},
		{"unsupported extension", "c.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("LoadConfig() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != ProviderGroq {
		t.Fatalf("provider = %q, want default", cfg.Provider)
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"GROQ_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("expected no provider without keys")
	}

	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != ProviderOpenAI || cfg.Endpoint().APIKey != "sk-openai" {
		t.Fatalf("discovered %+v, %v; want openai first", cfg.Provider, ok)
	}

	t.Setenv("GROQ_API_KEY", "gsk")
	if cfg, _ := DiscoverConfig(); cfg.Provider != ProviderGroq {
		t.Fatalf("provider = %q, groq has priority", cfg.Provider)
	}
}
