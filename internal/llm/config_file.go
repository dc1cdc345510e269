package llm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a string ("1.5s") in config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type fileEndpoint struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

type fileRetry struct {
	MaxRetries      *int      `yaml:"max_retries" toml:"max_retries"`
	RetryDelay      *Duration `yaml:"retry_delay" toml:"retry_delay"`
	HonorRetryAfter *bool     `yaml:"honor_retry_after" toml:"honor_retry_after"`
	MaxWait         *Duration `yaml:"max_wait" toml:"max_wait"`
	Exponential     *bool     `yaml:"exponential" toml:"exponential"`
	Multiplier      float64   `yaml:"multiplier" toml:"multiplier"`
	MaxDelay        *Duration `yaml:"max_delay" toml:"max_delay"`
}

type fileConfig struct {
	Provider    string            `yaml:"provider" toml:"provider"`
	Model       string            `yaml:"model" toml:"model"`
	Temperature *float64          `yaml:"temperature" toml:"temperature"`
	MaxTokens   *int              `yaml:"max_tokens" toml:"max_tokens"`
	Timeout     *Duration         `yaml:"timeout" toml:"timeout"`
	Groq        fileEndpoint      `yaml:"groq" toml:"groq"`
	OpenAI      fileEndpoint      `yaml:"openai" toml:"openai"`
	Anthropic   fileEndpoint      `yaml:"anthropic" toml:"anthropic"`
	Gemini      fileEndpoint      `yaml:"gemini" toml:"gemini"`
	OpenRouter  fileEndpoint      `yaml:"openrouter" toml:"openrouter"`
	Retry       fileRetry         `yaml:"retry" toml:"retry"`
	Fallbacks   map[string]string `yaml:"fallbacks" toml:"fallbacks"`
}

// LoadConfig builds a Config from defaults, then the file at path (YAML or
// TOML by extension, skipped when path is empty), then APAI_* variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		fc, err := decodeConfigFile(path, data)
		if err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		fc.apply(&cfg)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeConfigFile(path string, data []byte) (*fileConfig, error) {
	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return &fc, nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.Provider != "" {
		cfg.Provider = strings.ToLower(fc.Provider)
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.Temperature != nil {
		cfg.Params.Temperature = *fc.Temperature
	}
	if fc.MaxTokens != nil {
		cfg.Params.MaxTokens = *fc.MaxTokens
	}
	if fc.Timeout != nil {
		cfg.Timeout = time.Duration(*fc.Timeout)
	}

	fc.Groq.apply(&cfg.Groq.APIKey, &cfg.Groq.Model, &cfg.Groq.BaseURL)
	fc.OpenAI.apply(&cfg.OpenAI.APIKey, &cfg.OpenAI.Model, &cfg.OpenAI.BaseURL)
	fc.Anthropic.apply(&cfg.Anthropic.APIKey, &cfg.Anthropic.Model, &cfg.Anthropic.BaseURL)
	fc.Gemini.apply(&cfg.Gemini.APIKey, &cfg.Gemini.Model, &cfg.Gemini.BaseURL)
	fc.OpenRouter.apply(&cfg.OpenRouter.APIKey, &cfg.OpenRouter.Model, &cfg.OpenRouter.BaseURL)

	r := fc.Retry
	if r.MaxRetries != nil {
		cfg.Retry.MaxRetries = *r.MaxRetries
	}
	if r.RetryDelay != nil {
		cfg.Retry.RetryDelay = time.Duration(*r.RetryDelay)
	}
	if r.HonorRetryAfter != nil {
		cfg.Retry.HonorRetryAfter = *r.HonorRetryAfter
	}
	if r.MaxWait != nil {
		cfg.Retry.MaxWait = time.Duration(*r.MaxWait)
	}
	if r.Exponential != nil {
		cfg.Retry.Exponential = *r.Exponential
	}
	if r.Multiplier != 0 {
		cfg.Retry.Multiplier = r.Multiplier
	}
	if r.MaxDelay != nil {
		cfg.Retry.MaxDelay = time.Duration(*r.MaxDelay)
	}

	if len(fc.Fallbacks) > 0 {
		if cfg.Fallbacks == nil {
			cfg.Fallbacks = make(map[string]string, len(fc.Fallbacks))
		}
		for k, v := range fc.Fallbacks {
			cfg.Fallbacks[k] = v
		}
	}
}

func (e fileEndpoint) apply(key, model, baseURL *string) {
	if e.APIKey != "" {
		*key = os.ExpandEnv(e.APIKey)
	}
	if e.Model != "" {
		*model = e.Model
	}
	if e.BaseURL != "" {
		*baseURL = e.BaseURL
	}
}
