package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gobwas/glob"

	"github.com/starford/arkvault/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Root     RootConfig        `yaml:"root"`
	Identity IdentityConfig    `yaml:"identity"`
	Index    IndexConfig       `yaml:"index"`
	Storage  StorageConfig     `yaml:"storage"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Root.Validate(); err != nil {
		return err
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// HTTPConfig holds the status server configuration. The server only runs
// alongside the continuous monitor.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

// RootConfig holds the default directory for index and storage commands.
type RootConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the root configuration.
func (c *RootConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IdentityConfig holds the directory of the per-machine identity file.
type IdentityConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the identity configuration.
func (c *IdentityConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// IndexConfig holds directory index configuration.
type IndexConfig struct {
	// DBPath is the snapshot database. Empty means <root>/.ark/index.db.
	DBPath   string        `yaml:"db_path"`
	Ignore   []string      `yaml:"ignore"`
	Watch    bool          `yaml:"watch"`
	Interval time.Duration `yaml:"interval"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Ignore, validation.Each(validation.By(validGlob))),
		validation.Field(&c.Interval, validation.Min(time.Duration(0))),
	)
}

// DBFile returns the snapshot database path for root.
func (c *IndexConfig) DBFile(root string) string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(root, storage.ArkFolder, "index.db")
}

func validGlob(v any) error {
	s, _ := v.(string)
	if _, err := glob.Compile(s, '/'); err != nil {
		return errors.New("must be a valid glob pattern")
	}
	return nil
}

// StorageConfig holds named storage configuration.
type StorageConfig struct {
	// Retain is the number of generations kept per versioned file; 0 keeps all.
	Retain  int                      `yaml:"retain"`
	Aliases map[string]storage.Alias `yaml:"aliases"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Retain, validation.Min(0)),
	); err != nil {
		return err
	}
	for name, a := range c.Aliases {
		if err := validation.Validate(a.Path, validation.Required); err != nil {
			return fmt.Errorf("storage: alias %q: path: %w", name, err)
		}
	}
	return nil
}

// Resolver returns a resolver for root using the default aliases overlaid
// with the configured ones.
func (c *StorageConfig) Resolver(root string) storage.Resolver {
	aliases := storage.DefaultAliases()
	maps.Copy(aliases, c.Aliases)
	return storage.Resolver{Root: root, Aliases: aliases}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	identityDir := ".ark-identity"
	if dir, err := os.UserConfigDir(); err == nil {
		identityDir = filepath.Join(dir, "arkvault")
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Root: RootConfig{
			Path: ".",
		},
		Identity: IdentityConfig{
			Dir: identityDir,
		},
		Index: IndexConfig{
			Interval: time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
