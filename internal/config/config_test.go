package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `
vault = "/notes/field"
vault_name = "Field Notes"
api_key = "AAPK123"

[geocoder]
max_rate = 5

[sync]
concurrency = 4
history = false

[log]
level = "debug"

[[feature_service_sync]]
feature_service_url = "https://services.arcgis.com/abc/arcgis/rest/services/Places/FeatureServer/0"
note_include_pattern = "^trip"
field_map = "category:OBS_CAT,owner:OWNER_FLD"
spatial_reference = 4326

[[feature_service_sync]]
feature_service_url = "https://services.arcgis.com/abc/arcgis/rest/services/Other/FeatureServer/0"
title_field = "NAME"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.VaultName != "Field Notes" || cfg.APIKey != "AAPK123" {
		t.Errorf("top-level fields = %+v", cfg)
	}
	if cfg.Concurrency() != 4 || cfg.HistoryEnabled() {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if len(cfg.FeatureServiceSync) != 2 {
		t.Fatalf("connections = %d, want 2", len(cfg.FeatureServiceSync))
	}
	first := cfg.FeatureServiceSync[0]
	if first.NoteIncludePattern != "^trip" || first.SpatialReference != 4326 || first.FieldMap == "" {
		t.Errorf("first connection = %+v", first)
	}
	if cfg.FeatureServiceSync[1].TitleField != "NAME" {
		t.Errorf("second connection = %+v", cfg.FeatureServiceSync[1])
	}
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Errorf("unexpected issues: %v", issues)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.HasConnections() || !cfg.HistoryEnabled() || cfg.Concurrency() != DefaultConcurrency {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadFromInvalidTOML(t *testing.T) {
	t.Parallel()

	if _, err := LoadFrom(writeConfig(t, "vault = [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestGetVaultPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{Vault: "/configured"}
	if p, _ := cfg.GetVaultPath("/flag"); p != "/flag" {
		t.Errorf("override = %q", p)
	}
	if p, _ := cfg.GetVaultPath(""); p != "/configured" {
		t.Errorf("configured = %q", p)
	}
	if _, err := (&Config{}).GetVaultPath(" "); !errors.Is(err, ErrNoVault) {
		t.Errorf("err = %v, want ErrNoVault", err)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		if p, _ := (&Config{Vault: "~/notes"}).GetVaultPath(""); p != filepath.Join(home, "notes") {
			t.Errorf("home expansion = %q", p)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Log: LogConfig{Format: "xml"},
		FeatureServiceSync: []FeatureServiceSync{
			{FeatureServiceURL: "https://example.com/FeatureServer/0"},
			{FeatureServiceURL: "not a url"},
			{FeatureServiceURL: "https://example.com/FeatureServer/1", NoteIncludePattern: "(["},
			{FeatureServiceURL: "", SpatialReference: -1},
			{FeatureServiceURL: "https://example.com/FeatureServer/2", SpatialReference: 3857},
			{FeatureServiceURL: "https://example.com/FeatureServer/3", SpatialReference: 4326},
		},
	}

	issues := cfg.Validate()
	byConnection := map[int][]string{}
	for _, i := range issues {
		byConnection[i.Connection] = append(byConnection[i.Connection], i.Field)
	}

	if len(byConnection[0]) != 0 {
		t.Errorf("valid connection reported: %v", byConnection[0])
	}
	if got := byConnection[1]; len(got) != 1 || !strings.HasSuffix(got[0], "feature_service_url") {
		t.Errorf("connection 1 issues = %v", got)
	}
	if got := byConnection[2]; len(got) != 1 || !strings.HasSuffix(got[0], "note_include_pattern") {
		t.Errorf("connection 2 issues = %v", got)
	}
	if got := byConnection[3]; len(got) != 1 || !strings.HasSuffix(got[0], "spatial_reference") {
		t.Errorf("connection 3 issues = %v", got)
	}
	if got := byConnection[4]; len(got) != 1 || !strings.HasSuffix(got[0], "spatial_reference") {
		t.Errorf("projected spatial reference should be rejected, issues = %v", got)
	}
	if got := byConnection[5]; len(got) != 0 {
		t.Errorf("WGS84 connection reported: %v", got)
	}

	fatal := FatalIssues(issues)
	if len(fatal) != 1 || fatal[0].Field != "log.format" {
		t.Errorf("fatal issues = %v", fatal)
	}
}

func TestConnectionIndex(t *testing.T) {
	t.Parallel()

	cfg := &Config{FeatureServiceSync: []FeatureServiceSync{
		{FeatureServiceURL: "https://a.example.com/FeatureServer/0"},
		{FeatureServiceURL: "https://b.example.com/FeatureServer/0/"},
	}}
	if i := cfg.ConnectionIndex("https://b.example.com/FeatureServer/0"); i != 1 {
		t.Errorf("ConnectionIndex = %d, want 1", i)
	}
	if i := cfg.ConnectionIndex("https://c.example.com"); i != -1 {
		t.Errorf("ConnectionIndex = %d, want -1", i)
	}
}
