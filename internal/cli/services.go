package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/arcgis"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/auth"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/config"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/featuresync"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
)

// serviceOptions are the request options shared by every ArcGIS handle.
func (a *app) serviceOptions() arcgis.Options {
	return arcgis.Options{
		HTTPClient: a.httpClient,
		Token:      auth.Token(a.cfg.Auth.Credential, a.cfg.APIKey, a.now()),
	}
}

func (a *app) newGeocoder() (*arcgis.Geocoder, error) {
	opts := a.serviceOptions()
	opts.MaxRate = a.cfg.Geocoder.MaxRate

	url := strings.TrimSpace(a.cfg.Geocoder.URL)
	if url == "" {
		url = arcgis.DefaultGeocodeURL
	}
	return arcgis.NewGeocoder(url, opts, arcgis.WithOutSR(model.WGS84))
}

func (a *app) dialer() featuresync.Dialer {
	opts := a.serviceOptions()
	return func(ctx context.Context, serviceURL string) (model.FeatureService, error) {
		layer, err := arcgis.Dial(serviceURL, opts)
		if err != nil {
			return nil, err
		}
		return layer, nil
	}
}

// connectionsFromConfig converts the settings list, marking entries with
// validation issues as invalid so the pass reports them instead of syncing.
func connectionsFromConfig(entries []config.FeatureServiceSync, issues []config.Issue) []featuresync.Connection {
	problems := make(map[int][]string)
	for _, issue := range issues {
		if issue.Connection >= 0 {
			problems[issue.Connection] = append(problems[issue.Connection], issue.String())
		}
	}

	conns := make([]featuresync.Connection, 0, len(entries))
	for i, e := range entries {
		c := featuresync.Connection{
			ServiceURL:     strings.TrimSpace(e.FeatureServiceURL),
			IncludePattern: e.NoteIncludePattern,
			TitleField:     strings.TrimSpace(e.TitleField),
			FieldMap:       e.FieldMap,
			WKID:           e.SpatialReference,
		}
		if msgs := problems[i]; len(msgs) > 0 {
			c.Invalid = fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		conns = append(conns, c)
	}
	return conns
}

// findConnection resolves a 1-based index or a service URL to a config index.
func findConnection(cfg *config.Config, ref string) (int, bool) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(cfg.FeatureServiceSync) {
			return n - 1, true
		}
		return -1, false
	}
	idx := cfg.ConnectionIndex(ref)
	return idx, idx >= 0
}
