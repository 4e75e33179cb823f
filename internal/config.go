package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Markup MarkupConfig      `yaml:"markup"`
	Export ExportConfig      `yaml:"export"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Markup.Validate(); err != nil {
		return err
	}
	return c.Export.Validate()
}

// IndexOptions returns the extraction and sync options derived from the
// configuration.
func (c *Config) IndexOptions() index.Options {
	return index.Options{
		Parser: parser.Options{
			LinkFunction: c.Markup.LinkFunction,
			TagFunction:  c.Markup.TagFunction,
		},
		Workers: c.Vault.Workers,
	}
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

// VaultConfig describes the notes directory: which file extensions are
// notes, which slash-separated glob patterns are skipped, and how many
// notes are extracted concurrently during a sync.
type VaultConfig struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions"`
	Ignore     []string `yaml:"ignore"`
	Workers    int      `yaml:"workers"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.Ignore, validation.Each(validation.By(validGlob))),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
	)
}

// StorageOptions returns the storage.FS options for this vault.
func (c *VaultConfig) StorageOptions() []storage.Option {
	return []storage.Option{
		storage.WithExtensions(c.Extensions...),
		storage.WithIgnore(c.Ignore...),
	}
}

func validGlob(v any) error {
	pattern, _ := v.(string)
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// MarkupConfig names the markup functions whose first string argument is a
// link target or a tag.
type MarkupConfig struct {
	LinkFunction string `yaml:"link_function"`
	TagFunction  string `yaml:"tag_function"`
}

// Validate validates the markup configuration.
func (c *MarkupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LinkFunction, validation.Required),
		validation.Field(&c.TagFunction, validation.Required),
	)
}

// ExportConfig controls document export of markup notes.
//
// Command is the compiler invocation; the note path and the output path are
// appended to it. When Enabled is true the watcher re-exports markup notes
// as they change.
type ExportConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command []string `yaml:"command"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	if c.Enabled && len(c.Command) == 0 {
		return errors.New("export: enabled but command is empty")
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
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
		Vault: VaultConfig{
			Path:       "./vault",
			Extensions: slices.Clone(storage.DefaultExtensions),
			Ignore:     slices.Clone(storage.DefaultIgnore),
			Workers:    4,
		},
		SQLite: SQLiteConfig{
			Path: "./marginalia.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Markup: MarkupConfig{
			LinkFunction: "link",
			TagFunction:  "tag",
		},
		Export: ExportConfig{
			Command: slices.Clone(export.DefaultCommand),
		},
	}
}
