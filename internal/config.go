package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

// OCR engines.
const (
	OCREngineTesseract = "tesseract"
	OCREngineOpenAI    = "openai"
)

// Assistant providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Auth        AuthConfig        `yaml:"auth"`
	OCR         OCRConfig         `yaml:"ocr"`
	Assistant   AssistantConfig   `yaml:"assistant"`
	Ingest      IngestConfig      `yaml:"ingest"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Store, &c.SQLite, &c.Attachments, &c.Auth, &c.OCR, &c.Assistant, &c.Ingest,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.OCR.Engine == OCREngineOpenAI && c.Assistant.APIKey == "" {
		return fmt.Errorf("ocr: engine %q needs assistant.api_key", OCREngineOpenAI)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects where the note collection is persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the directory holding <key>.json for the file backend.
	Path string `yaml:"path"`
	Key  string `yaml:"key"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(StoreBackendFile, StoreBackendSQLite, StoreBackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend == StoreBackendFile, validation.Required)),
		validation.Field(&c.Key, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration. The same database keeps
// the search index and, with the sqlite store backend, the notes.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AttachmentsConfig holds where uploaded page images are kept.
type AttachmentsConfig struct {
	Path           string `yaml:"path"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Validate validates the attachments configuration.
func (c *AttachmentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// OCRConfig configures the text recognizer.
type OCRConfig struct {
	Engine   string        `yaml:"engine"`
	Binary   string        `yaml:"binary"`
	Language string        `yaml:"language"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate validates the OCR configuration.
func (c *OCRConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.Required, validation.In(OCREngineTesseract, OCREngineOpenAI)),
		validation.Field(&c.Model, validation.When(c.Engine == OCREngineOpenAI, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AssistantConfig configures the language model behind titles and chat.
type AssistantConfig struct {
	Provider     string        `yaml:"provider"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	TitleTimeout time.Duration `yaml:"title_timeout"`

	// SessionIdleTTL discards chat sessions unused for this long; 0 never does.
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	needsKey := c.Provider == ProviderOpenAI || c.Provider == ProviderAnthropic
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderNone, ProviderOpenAI, ProviderAnthropic)),
		validation.Field(&c.APIKey, validation.When(needsKey, validation.Required)),
		validation.Field(&c.Model, validation.When(needsKey, validation.Required)),
		validation.Field(&c.TitleTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.SessionIdleTTL, validation.Min(time.Duration(0))),
	)
}

// IngestConfig holds the titles used before and instead of enrichment.
type IngestConfig struct {
	PlaceholderTitle string `yaml:"placeholder_title"`
	FallbackTitle    string `yaml:"fallback_title"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PlaceholderTitle, validation.Required),
		validation.Field(&c.FallbackTitle, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
			Path:    "./data",
			Key:     "thinkink_notes",
		},
		SQLite: SQLiteConfig{
			Path: "./thinkink.db",
		},
		Attachments: AttachmentsConfig{
			Path:           "./data/attachments",
			MaxUploadBytes: 10 << 20,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		OCR: OCRConfig{
			Engine:   OCREngineTesseract,
			Binary:   "tesseract",
			Language: "eng",
			Timeout:  2 * time.Minute,
		},
		Assistant: AssistantConfig{
			Provider:       ProviderNone,
			TitleTimeout:   30 * time.Second,
			SessionIdleTTL: 30 * time.Minute,
		},
		Ingest: IngestConfig{
			PlaceholderTitle: "New Note",
			FallbackTitle:    "Untitled Note",
		},
	}
}
