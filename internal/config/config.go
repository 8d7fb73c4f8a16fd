// Package config handles the global arcsync configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoVault is returned when no vault path is configured or given.
var ErrNoVault = errors.New("no vault configured")

// DefaultConcurrency bounds in-flight documents per connection when unset.
const DefaultConcurrency = 8

// Config represents the global arcsync configuration.
type Config struct {
	// Vault is the path of the vault to sync.
	Vault string `toml:"vault"`

	// VaultName overrides the vault name used in note links. Defaults to the
	// vault directory's base name.
	VaultName string `toml:"vault_name"`

	// APIKey is an ArcGIS API key, used when no signed-in credential exists.
	APIKey string `toml:"api_key"`

	Auth     AuthConfig     `toml:"auth"`
	Geocoder GeocoderConfig `toml:"geocoder"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
	UI       UIConfig       `toml:"ui"`

	// FeatureServiceSync lists the connections synced by each pass, in order.
	FeatureServiceSync []FeatureServiceSync `toml:"feature_service_sync" validate:"dive"`
}

// AuthConfig holds the serialized ArcGIS credential.
type AuthConfig struct {
	// Credential is the JSON credential written by a sign-in flow.
	Credential string `toml:"credential"`
}

// GeocoderConfig selects the geocoding service.
type GeocoderConfig struct {
	URL     string  `toml:"url" validate:"omitempty,url"`
	MaxRate float64 `toml:"max_rate" validate:"gte=0"`
}

// SyncConfig tunes sync passes.
type SyncConfig struct {
	Concurrency int `toml:"concurrency" validate:"gte=0"`
	// History records each pass in the vault's history database. Defaults to true.
	History *bool `toml:"history"`
}

// LogConfig configures diagnostics on stderr.
type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `toml:"format" validate:"omitempty,oneof=console json"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an ANSI color code ("0" to "255") or hex color ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown.
	CodeTheme string `toml:"code_theme"`
}

// FeatureServiceSync binds one feature layer to the notes it receives.
type FeatureServiceSync struct {
	// SpatialReference must be unset or 4326: locations are geocoded and
	// cached as WGS84 longitude/latitude and the service projects them.
	FeatureServiceURL  string `toml:"feature_service_url" json:"feature_service_url" validate:"omitempty,url"`
	NoteIncludePattern string `toml:"note_include_pattern" json:"note_include_pattern,omitempty" validate:"omitempty,regexp"`
	TitleField         string `toml:"title_field" json:"title_field,omitempty"`
	FieldMap           string `toml:"field_map" json:"field_map,omitempty"`
	SpatialReference   int    `toml:"spatial_reference" json:"spatial_reference,omitempty" validate:"omitempty,oneof=4326"`
}

// GetVaultPath returns override when set, else the configured vault.
func (c *Config) GetVaultPath(override string) (string, error) {
	if p := strings.TrimSpace(override); p != "" {
		return expandHome(p), nil
	}
	if p := strings.TrimSpace(c.Vault); p != "" {
		return expandHome(p), nil
	}
	return "", ErrNoVault
}

// HistoryEnabled reports whether passes are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.Sync.History == nil || *c.Sync.History
}

// Concurrency returns the per-connection document limit.
func (c *Config) Concurrency() int {
	if c.Sync.Concurrency > 0 {
		return c.Sync.Concurrency
	}
	return DefaultConcurrency
}

// HasConnections reports whether any feature service connection is configured.
func (c *Config) HasConnections() bool {
	return len(c.FeatureServiceSync) > 0
}

// ConnectionIndex returns the index of the connection with the given URL, or -1.
func (c *Config) ConnectionIndex(serviceURL string) int {
	want := strings.TrimRight(strings.TrimSpace(serviceURL), "/")
	for i, fs := range c.FeatureServiceSync {
		if strings.TrimRight(strings.TrimSpace(fs.FeatureServiceURL), "/") == want {
			return i
		}
	}
	return -1
}

// LoadFrom loads the configuration from a specific path. A missing file
// yields an empty config.
func LoadFrom(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath resolves the effective config path from an optional override.
func ResolveConfigPath(explicitConfigPath string) string {
	if strings.TrimSpace(explicitConfigPath) != "" {
		return expandHome(explicitConfigPath)
	}
	if env := strings.TrimSpace(os.Getenv("ARCSYNC_CONFIG")); env != "" {
		return expandHome(env)
	}
	return DefaultPath()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/arcsync/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "arcsync", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "arcsync", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
