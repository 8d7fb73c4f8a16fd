package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/atomicfile"
)

type persistedConfig struct {
	Vault              *string                       `toml:"vault,omitempty"`
	VaultName          *string                       `toml:"vault_name,omitempty"`
	APIKey             *string                       `toml:"api_key,omitempty"`
	Auth               *persistedAuth                `toml:"auth,omitempty"`
	Geocoder           *persistedGeocoder            `toml:"geocoder,omitempty"`
	Sync               *persistedSync                `toml:"sync,omitempty"`
	Log                *persistedLog                 `toml:"log,omitempty"`
	UI                 *persistedUISettings          `toml:"ui,omitempty"`
	FeatureServiceSync []persistedFeatureServiceSync `toml:"feature_service_sync,omitempty"`
}

type persistedAuth struct {
	Credential *string `toml:"credential,omitempty"`
}

type persistedGeocoder struct {
	URL     *string  `toml:"url,omitempty"`
	MaxRate *float64 `toml:"max_rate,omitempty"`
}

type persistedSync struct {
	Concurrency *int  `toml:"concurrency,omitempty"`
	History     *bool `toml:"history,omitempty"`
}

type persistedLog struct {
	Level  *string `toml:"level,omitempty"`
	Format *string `toml:"format,omitempty"`
}

type persistedUISettings struct {
	Accent    *string `toml:"accent,omitempty"`
	CodeTheme *string `toml:"code_theme,omitempty"`
}

type persistedFeatureServiceSync struct {
	FeatureServiceURL  string  `toml:"feature_service_url"`
	NoteIncludePattern *string `toml:"note_include_pattern,omitempty"`
	TitleField         *string `toml:"title_field,omitempty"`
	FieldMap           *string `toml:"field_map,omitempty"`
	SpatialReference   *int    `toml:"spatial_reference,omitempty"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func positivePtr[T int | float64](value T) *T {
	if value <= 0 {
		return nil
	}
	return &value
}

func persisted(cfg *Config) persistedConfig {
	out := persistedConfig{
		Vault:     nonEmptyPtr(cfg.Vault),
		VaultName: nonEmptyPtr(cfg.VaultName),
		APIKey:    nonEmptyPtr(cfg.APIKey),
	}

	if cred := nonEmptyPtr(cfg.Auth.Credential); cred != nil {
		out.Auth = &persistedAuth{Credential: cred}
	}
	if g := (persistedGeocoder{URL: nonEmptyPtr(cfg.Geocoder.URL), MaxRate: positivePtr(cfg.Geocoder.MaxRate)}); g.URL != nil || g.MaxRate != nil {
		out.Geocoder = &g
	}
	if s := (persistedSync{Concurrency: positivePtr(cfg.Sync.Concurrency), History: cfg.Sync.History}); s.Concurrency != nil || s.History != nil {
		out.Sync = &s
	}
	if l := (persistedLog{Level: nonEmptyPtr(cfg.Log.Level), Format: nonEmptyPtr(cfg.Log.Format)}); l.Level != nil || l.Format != nil {
		out.Log = &l
	}
	if u := (persistedUISettings{Accent: nonEmptyPtr(cfg.UI.Accent), CodeTheme: nonEmptyPtr(cfg.UI.CodeTheme)}); u.Accent != nil || u.CodeTheme != nil {
		out.UI = &u
	}

	for _, fs := range cfg.FeatureServiceSync {
		out.FeatureServiceSync = append(out.FeatureServiceSync, persistedFeatureServiceSync{
			FeatureServiceURL:  strings.TrimSpace(fs.FeatureServiceURL),
			NoteIncludePattern: nonEmptyPtr(fs.NoteIncludePattern),
			TitleField:         nonEmptyPtr(fs.TitleField),
			FieldMap:           nonEmptyPtr(fs.FieldMap),
			SpatialReference:   positivePtr(fs.SpatialReference),
		})
	}
	return out
}

// SaveTo writes the config to path atomically. Unset values are omitted.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := persisted(cfg)
	err := atomicfile.Replace(path, 0o600, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(out)
	})
	if err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
