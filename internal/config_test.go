package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/thinkink/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Fatalf("err = %v, want token is empty", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown backend":        func(c *Config) { c.Store.Backend = "s3" },
		"file backend no path":   func(c *Config) { c.Store.Path = "" },
		"empty key":              func(c *Config) { c.Store.Key = "" },
		"zero upload limit":      func(c *Config) { c.Attachments.MaxUploadBytes = 0 },
		"unknown engine":         func(c *Config) { c.OCR.Engine = "magic" },
		"openai provider no key": func(c *Config) { c.Assistant.Provider = ProviderOpenAI; c.Assistant.Model = "m" },
		"anthropic no model":     func(c *Config) { c.Assistant.Provider = ProviderAnthropic; c.Assistant.APIKey = "k" },
		"vision ocr no key":      func(c *Config) { c.OCR.Engine = OCREngineOpenAI; c.OCR.Model = "gpt-4o" },
		"empty fallback title":   func(c *Config) { c.Ingest.FallbackTitle = "" },
		"bad port":               func(c *Config) { c.App.HTTP.Port = 70000 },
		"negative session ttl":   func(c *Config) { c.Assistant.SessionIdleTTL = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("THINKINK_TEST_API_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
store:
  backend: memory
  key: notes_test
assistant:
  provider: openai
  api_key: ${THINKINK_TEST_API_KEY}
  model: gpt-4o-mini
  title_timeout: 5s
  session_idle_ttl: 10m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Store.Backend != StoreBackendMemory || cfg.Store.Key != "notes_test" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Assistant.APIKey != "sk-from-env" || cfg.Assistant.TitleTimeout != 5*time.Second ||
		cfg.Assistant.SessionIdleTTL != 10*time.Minute {
		t.Errorf("assistant = %+v", cfg.Assistant)
	}
	// Unset sections keep their defaults.
	if cfg.OCR.Engine != OCREngineTesseract || cfg.Ingest.PlaceholderTitle != "New Note" {
		t.Errorf("defaults lost: ocr=%+v ingest=%+v", cfg.OCR, cfg.Ingest)
	}
}
