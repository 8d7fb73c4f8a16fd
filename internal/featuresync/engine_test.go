package featuresync

import (
	"context"
	"errors"
	"testing"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/parser"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/testutil"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/vault"
)

const (
	layerA = "https://services.arcgis.com/x/FeatureServer/0"
	layerB = "https://services.arcgis.com/y/FeatureServer/0"
)

var googleplex = geo.Location{X: -122.084, Y: 37.422}

type harness struct {
	vault    *testutil.TestVault
	services map[string]*testutil.FeatureService
	geocoder *testutil.Geocoder
	dials    int
}

func newHarness(t *testing.T, v *testutil.TestVault) *harness {
	t.Helper()
	return &harness{
		vault: v.Build(),
		services: map[string]*testutil.FeatureService{
			layerA: testutil.NewFeatureService(),
			layerB: testutil.NewFeatureService(),
		},
		geocoder: testutil.NewGeocoder(map[string]geo.Location{
			"1600 Amphitheatre Parkway": googleplex,
			"380 New York St":           {X: -117.195, Y: 34.057},
		}),
	}
}

func (h *harness) dial(ctx context.Context, url string) (model.FeatureService, error) {
	h.dials++
	svc, ok := h.services[url]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return svc, nil
}

func (h *harness) run(t *testing.T, conns []Connection, opts Options) *Report {
	t.Helper()
	store, err := vault.Open(h.vault.Path, "Test Vault")
	if err != nil {
		t.Fatalf("vault.Open: %v", err)
	}
	sc := NewSyncContext(context.Background(), conns, h.dial)
	return NewEngine(store, h.geocoder, sc, opts).Run(context.Background())
}

func resultFor(t *testing.T, r *Report, path string) DocumentResult {
	t.Helper()
	for _, res := range r.Results {
		if res.Path == path {
			return res
		}
	}
	t.Fatalf("no result for %s in %+v", path, r.Results)
	return DocumentResult{}
}

func metadataOf(t *testing.T, v *testutil.TestVault, path string) map[string]any {
	t.Helper()
	md, err := parser.Metadata(v.ReadFile(path))
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return md
}

func TestRunCreateThenLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("Googleplex.md", "geo: 1600 Amphitheatre Parkway\n", "\n# Visit\n"))

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{})

	svc := h.services[layerA]
	if svc.AddCount() != 1 || svc.UpdateCount() != 0 {
		t.Fatalf("adds=%d updates=%d, want 1/0", svc.AddCount(), svc.UpdateCount())
	}
	res := resultFor(t, report, "Googleplex.md")
	if res.Status != StatusCreated || res.ObjectID != 1 {
		t.Errorf("result = %+v", res)
	}

	md := metadataOf(t, h.vault, "Googleplex.md")
	if md["OBJECTID"] != 1 {
		t.Errorf("OBJECTID = %#v", md["OBJECTID"])
	}
	if md["geoXYCached"] != "x:-122.084,y:37.422" {
		t.Errorf("geoXYCached = %#v", md["geoXYCached"])
	}
	h.vault.AssertFileContains("Googleplex.md", "---\n\n# Visit\n")

	f, _ := svc.Feature(1)
	if f.Attributes["TITLE"] != "Googleplex" {
		t.Errorf("TITLE = %v", f.Attributes["TITLE"])
	}
	if f.Attributes["OBSIDIAN_LINK"] != "obsidian://open?vault=Test%20Vault&file=Googleplex.md" {
		t.Errorf("OBSIDIAN_LINK = %v", f.Attributes["OBSIDIAN_LINK"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 1600 Amphitheatre Parkway\n", "body\n").
		WithNote("b.md", "geo: 380 New York St\n", "body\n"))
	conns := []Connection{{ServiceURL: layerA}}

	h.run(t, conns, Options{})
	afterFirst := h.vault.ReadFile("a.md")

	second := h.run(t, conns, Options{})

	svc := h.services[layerA]
	if svc.Len() != 2 {
		t.Errorf("features = %d, want 2", svc.Len())
	}
	if svc.AddCount() != 2 || svc.UpdateCount() != 2 {
		t.Errorf("adds=%d updates=%d, want 2/2", svc.AddCount(), svc.UpdateCount())
	}
	if c := second.Counts(); c.Updated != 2 || c.Created != 0 {
		t.Errorf("second pass counts = %+v", c)
	}
	h.vault.AssertFileUnchanged("a.md", afterFirst)
	if calls := h.geocoder.Calls(); len(calls) != 2 {
		t.Errorf("geocoder calls = %v, want one per note", calls)
	}
}

func TestRunCachePrecedence(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 1600 Amphitheatre Parkway\ngeoXYCached: x:1,y:2\n", ""))

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{})

	if calls := h.geocoder.Calls(); len(calls) != 0 {
		t.Errorf("geocoder called: %v", calls)
	}
	res := resultFor(t, report, "a.md")
	if res.Source != "cache" || res.Location == nil || *res.Location != (geo.Location{X: 1, Y: 2}) {
		t.Errorf("result = %+v", res)
	}
	f, _ := h.services[layerA].Feature(1)
	if f.Geometry == nil || f.Geometry.X != 1 || f.Geometry.Y != 2 {
		t.Errorf("geometry = %+v", f.Geometry)
	}
}

func TestRunUpdatePath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "OBJECTID: 5\ngeo: 380 New York St\ncategory: cafe\n", ""))
	h.services[layerA].Seed(5, map[string]any{"TITLE": "old"})

	report := h.run(t, []Connection{{ServiceURL: layerA, FieldMap: "category:OBS_CAT,owner:OWNER_FLD"}}, Options{})

	svc := h.services[layerA]
	if svc.AddCount() != 0 || svc.UpdateCount() != 1 {
		t.Fatalf("adds=%d updates=%d, want 0/1", svc.AddCount(), svc.UpdateCount())
	}
	if res := resultFor(t, report, "a.md"); res.Status != StatusUpdated || res.ObjectID != 5 {
		t.Errorf("result = %+v", res)
	}
	f, _ := svc.Feature(5)
	if f.Attributes["OBS_CAT"] != "cafe" {
		t.Errorf("OBS_CAT = %v", f.Attributes["OBS_CAT"])
	}
	if _, ok := f.Attributes["OWNER_FLD"]; ok {
		t.Error("OWNER_FLD should not be set when owner is absent")
	}
}

func TestRunIncludePattern(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", "").
		WithNote("b.md", "geo: 380 New York St\n", "").
		WithNote("notes/c.md", "geo: 380 New York St\n", "").
		WithNote("apple.txt", "geo: 380 New York St\n", ""))

	report := h.run(t, []Connection{{ServiceURL: layerA, IncludePattern: "^a"}}, Options{})

	if len(report.Results) != 1 || report.Results[0].Path != "a.md" {
		t.Fatalf("results = %+v, want only a.md", report.Results)
	}
	h.vault.AssertFileNotContains("b.md", "OBJECTID")
	h.vault.AssertFileNotContains("notes/c.md", "OBJECTID")
}

func TestRunPartialFailureIsolation(t *testing.T) {
	t.Parallel()

	v := testutil.NewTestVault(t)
	for _, name := range []string{"one", "two", "bad", "three", "four"} {
		v.WithNote(name+".md", "geo: 380 New York St\n", "text\n")
	}
	h := newHarness(t, v)
	h.services[layerA].RejectAdd = func(f model.Feature) bool { return f.Attributes["TITLE"] == "bad" }
	badBefore := "---\ngeo: 380 New York St\n---\ntext\n"

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{Concurrency: 2})

	c := report.Counts()
	if c.Created != 4 || c.Failed != 1 {
		t.Fatalf("counts = %+v, want 4 created 1 failed", c)
	}
	if !report.HasFailures() {
		t.Error("HasFailures() = false")
	}
	bad := resultFor(t, report, "bad.md")
	var editErr *model.EditError
	if !errors.As(bad.Err, &editErr) {
		t.Errorf("bad.md err = %v, want EditError", bad.Err)
	}
	h.vault.AssertFileUnchanged("bad.md", badBefore)
	for _, name := range []string{"one", "two", "three", "four"} {
		h.vault.AssertFileContains(name+".md", "OBJECTID:")
	}
}

func TestRunSkipsAndExclusions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("broken.md", "geo: 380 New York St\ngeoXYCached: x:abc,y:1\n", "").
		WithNote("nowhere.md", "geo: Atlantis\n", "").
		WithNote("multi.md", "geo:\n  - [1, 2]\n  - [3, 4]\n", "").
		WithNote("plain.md", "title: nothing here\n", "").
		WithFile("bare.md", "no frontmatter at all\n"))

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{})

	for _, path := range []string{"broken.md", "nowhere.md", "multi.md"} {
		if res := resultFor(t, report, path); res.Status != StatusSkipped || res.Reason == "" {
			t.Errorf("%s: result = %+v, want skipped with reason", path, res)
		}
	}
	if report.Excluded != 2 {
		t.Errorf("Excluded = %d, want 2", report.Excluded)
	}
	if calls := h.geocoder.Calls(); len(calls) != 1 || calls[0] != "Atlantis" {
		t.Errorf("geocoder calls = %v, malformed cache must not be geocoded", calls)
	}
	if h.services[layerA].AddCount() != 0 {
		t.Error("no features should be created")
	}
}

func TestRunGeocoderFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", ""))
	h.geocoder.Fail = errors.New("geocoder down")

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{})

	if res := resultFor(t, report, "a.md"); res.Status != StatusFailed {
		t.Errorf("result = %+v", res)
	}
}

func TestRunConnectionErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", ""))

	report := h.run(t, []Connection{
		{ServiceURL: ""},
		{ServiceURL: "https://unknown.example.com/FeatureServer/0"},
		{ServiceURL: layerA, IncludePattern: "("},
		{ServiceURL: layerA},
	}, Options{})

	if len(report.ConfigErrors) != 3 {
		t.Fatalf("config errors = %+v, want 3", report.ConfigErrors)
	}
	if !errors.Is(report.ConfigErrors[0], ErrNoServiceURL) {
		t.Errorf("first config error = %v", report.ConfigErrors[0])
	}
	if report.ConfigErrors[2].Index != 2 {
		t.Errorf("index = %d, want 2", report.ConfigErrors[2].Index)
	}
	if res := resultFor(t, report, "a.md"); res.Status != StatusCreated {
		t.Errorf("valid connection should still sync: %+v", res)
	}
}

func TestSyncContextSharesHandles(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t))
	sc := NewSyncContext(context.Background(), []Connection{
		{ServiceURL: layerA, IncludePattern: "^a"},
		{ServiceURL: layerA, IncludePattern: "^b"},
		{ServiceURL: layerB},
		{ServiceURL: ""},
	}, h.dial)

	if h.dials != 2 {
		t.Errorf("dials = %d, want 2", h.dials)
	}
	if len(sc.Handles) != 2 {
		t.Errorf("handles = %d, want 2", len(sc.Handles))
	}
}

func TestRunLastConnectionWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", ""))
	h.services[layerB].Seed(10, nil)

	h.run(t, []Connection{{ServiceURL: layerA}, {ServiceURL: layerB}}, Options{})

	if md := metadataOf(t, h.vault, "a.md"); md["OBJECTID"] != 11 {
		t.Errorf("OBJECTID = %#v, want the second connection's id 11", md["OBJECTID"])
	}
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()

	content := "---\ngeo: 380 New York St\n---\n"
	h := newHarness(t, testutil.NewTestVault(t).WithFile("a.md", content))

	report := h.run(t, []Connection{{ServiceURL: layerA}}, Options{DryRun: true})

	if !report.DryRun {
		t.Error("report should be marked dry run")
	}
	if res := resultFor(t, report, "a.md"); res.Status != StatusCreated {
		t.Errorf("result = %+v", res)
	}
	if n := len(h.services[layerA].Edits); n != 0 {
		t.Errorf("edits submitted in dry run: %d", n)
	}
	h.vault.AssertFileUnchanged("a.md", content)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", ""))
	store, err := vault.Open(h.vault.Path, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := NewSyncContext(context.Background(), []Connection{{ServiceURL: layerA}}, h.dial)
	report := NewEngine(store, h.geocoder, sc, Options{}).Run(ctx)

	if !report.Cancelled {
		t.Error("report should be marked cancelled")
	}
	if h.services[layerA].AddCount() != 0 {
		t.Error("no edits expected after cancellation")
	}
}

func TestRunInvalidConnectionIsInert(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("a.md", "geo: 380 New York St\n", ""))
	invalid := errors.New("spatial_reference: must be greater than or equal to 0")

	report := h.run(t, []Connection{
		{ServiceURL: layerA, Invalid: invalid},
		{ServiceURL: layerB},
	}, Options{})

	if h.dials != 1 {
		t.Errorf("dials = %d, want only the valid connection dialed", h.dials)
	}
	if len(report.ConfigErrors) != 1 || !errors.Is(report.ConfigErrors[0], invalid) {
		t.Fatalf("ConfigErrors = %+v", report.ConfigErrors)
	}
	if h.services[layerA].Len() != 0 || h.services[layerB].Len() != 1 {
		t.Errorf("features: A=%d B=%d, want 0 and 1", h.services[layerA].Len(), h.services[layerB].Len())
	}
}

type panickingGeocoder struct {
	geo.Geocoder
	address string
}

func (g panickingGeocoder) Geocode(ctx context.Context, singleLine string) ([]geo.Candidate, error) {
	if singleLine == g.address {
		panic("geocoder bug")
	}
	return g.Geocoder.Geocode(ctx, singleLine)
}

func TestRunGeocoderPanicStaysWithDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t, testutil.NewTestVault(t).
		WithNote("bad.md", "geo: boom\n", "").
		WithNote("good.md", "geo: 380 New York St\n", ""))
	store, err := vault.Open(h.vault.Path, "")
	if err != nil {
		t.Fatal(err)
	}

	sc := NewSyncContext(context.Background(), []Connection{{ServiceURL: layerA}, {ServiceURL: layerB}}, h.dial)
	geocoder := panickingGeocoder{Geocoder: h.geocoder, address: "boom"}
	report := NewEngine(store, geocoder, sc, Options{}).Run(context.Background())

	counts := report.Counts()
	if counts.Failed != 2 || counts.Created != 2 {
		t.Fatalf("counts = %+v, want 2 failed (bad.md per connection) and 2 created", counts)
	}
	bad := resultFor(t, report, "bad.md")
	if bad.Status != StatusFailed || bad.Error != "panic: geocoder bug" {
		t.Errorf("bad.md = %+v", bad)
	}
	h.vault.AssertFileContains("good.md", "OBJECTID:")
	if h.services[layerA].AddCount() != 1 || h.services[layerB].AddCount() != 1 {
		t.Errorf("adds = %d/%d, want 1 per connection",
			h.services[layerA].AddCount(), h.services[layerB].AddCount())
	}
}
