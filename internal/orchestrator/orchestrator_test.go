package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/applet-tools/cardmeter/internal/card"
	"github.com/applet-tools/cardmeter/internal/catalog"
	"github.com/applet-tools/cardmeter/internal/config"
	"github.com/applet-tools/cardmeter/internal/installer"
	"github.com/applet-tools/cardmeter/internal/model"
	"github.com/applet-tools/cardmeter/internal/report"
)

// fakeSource yields a fixed entry list and scripted fetch results.
type fakeSource struct {
	entries  []catalog.Entry
	listErr  error
	fetchErr map[model.DedupKey]error
	fetched  int

	// onFetch runs at the start of every Fetch, before any blocking.
	onFetch func()

	// fetchBlock, when set, makes Fetch wait until the channel closes or
	// the context ends.
	fetchBlock chan struct{}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) List(_ context.Context) ([]catalog.Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.entries, nil
}

func (s *fakeSource) Fetch(ctx context.Context, e catalog.Entry) (string, error) {
	s.fetched++
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.fetchBlock != nil {
		select {
		case <-s.fetchBlock:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := s.fetchErr[e.Ref.Key()]; err != nil {
		return "", err
	}
	return "/tmp/" + e.Ref.Name + ".cap", nil
}

// fakeSession scripts install and probe outcomes per package.
type fakeSession struct {
	installErr  map[model.DedupKey]error
	faultOn     map[model.DedupKey]bool
	measurement map[model.DedupKey]model.StorageMeasurement
	measureErr  map[model.DedupKey]error

	// outcomes scripts classified install results returned with a nil
	// error, consumed one per Install call for the key.
	outcomes map[model.DedupKey][]installer.Outcome

	installed  *model.PackageRef
	faulted    bool
	closed     bool
	installs   []model.PackageRef
	uninstalls []model.PackageRef
	measures   int
}

func (s *fakeSession) Install(_ context.Context, pkg model.PackageRef, _ string) (installer.Outcome, error) {
	s.installs = append(s.installs, pkg)
	if s.faultOn[pkg.Key()] {
		s.faulted = true
		return installer.Outcome{Status: installer.StatusTimeout}, errors.New("installer timed out")
	}
	if err := s.installErr[pkg.Key()]; err != nil {
		return installer.Outcome{Status: installer.StatusFailed}, err
	}
	if outs := s.outcomes[pkg.Key()]; len(outs) > 0 {
		out := outs[0]
		s.outcomes[pkg.Key()] = outs[1:]
		if out.Status == installer.StatusOK || out.Status == installer.StatusAlreadyInstalled {
			s.installed = &pkg
		}
		return out, nil
	}
	s.installed = &pkg
	return installer.Outcome{Status: installer.StatusOK}, nil
}

func (s *fakeSession) Measure(_ context.Context) (model.StorageMeasurement, error) {
	s.measures++
	if s.installed == nil {
		return model.StorageMeasurement{}, card.ErrNoInstalledPackage
	}
	key := s.installed.Key()
	if err := s.measureErr[key]; err != nil {
		return model.StorageMeasurement{}, err
	}
	return s.measurement[key], nil
}

func (s *fakeSession) Uninstall(_ context.Context, pkg model.PackageRef) error {
	s.uninstalls = append(s.uninstalls, pkg)
	if s.installed != nil && *s.installed == pkg {
		s.installed = nil
	}
	return nil
}

func (s *fakeSession) Faulted() bool { return s.faulted }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

// fakeRecorder is an in-memory measurement cache.
type fakeRecorder struct {
	records map[model.DedupKey]model.MeasurementRecord
	order   []model.DedupKey
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{records: make(map[model.DedupKey]model.MeasurementRecord)}
}

func (r *fakeRecorder) Has(_ context.Context, key model.DedupKey) (bool, error) {
	_, ok := r.records[key]
	return ok, nil
}

func (r *fakeRecorder) Record(_ context.Context, rec model.MeasurementRecord) error {
	key := rec.Package.Key()
	if _, ok := r.records[key]; ok {
		return nil
	}
	r.records[key] = rec
	r.order = append(r.order, key)
	return nil
}

func (r *fakeRecorder) All(_ context.Context) ([]model.MeasurementRecord, error) {
	recs := make([]model.MeasurementRecord, 0, len(r.order))
	for _, key := range r.order {
		recs = append(recs, r.records[key])
	}
	return recs, nil
}

// fakeCleaner records which recipes were removed.
type fakeCleaner struct {
	apps    []string
	memApp  string
	removed []string
}

func (c *fakeCleaner) ListCardApps(_ context.Context) ([]string, error) { return c.apps, nil }

func (c *fakeCleaner) UninstallRecipe(_ context.Context, recipe string) error {
	c.removed = append(c.removed, recipe)
	return nil
}

func (c *fakeCleaner) MemoryAppletRecipe() string { return c.memApp }

func entry(name, version, release string) catalog.Entry {
	return catalog.Entry{
		Ref:       model.PackageRef{Name: name, Version: version, Location: name},
		ReleaseID: release,
	}
}

func key(name, version string) model.DedupKey {
	return model.DedupKey{Name: name, Version: version}
}

// testOrchestrator wires an orchestrator around fakes with a real
// document store in a temp dir.
func testOrchestrator(t *testing.T, cfg *config.Config, source *fakeSource, session *fakeSession, db *fakeRecorder, opts ...Option) (*Orchestrator, *report.Store, *int) {
	t.Helper()

	store, err := report.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opens := 0
	opener := func() (Session, error) {
		opens++
		return session, nil
	}
	return New(cfg, source, opener, db, store, opts...), store, &opens
}

// TestRunMeasuresAll tests the full cycle for a cold cache.
func TestRunMeasuresAll(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("fido", "1.0", ""),
		entry("otp", "0.9", ""),
	}}
	session := &fakeSession{measurement: map[model.DedupKey]model.StorageMeasurement{
		key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		key("otp", "0.9"):  {PersistentBytes: 12000, TransientBytes: 500},
	}}
	db := newFakeRecorder()
	o, store, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Measured != 2 || stats.Cached != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 2 measured", stats)
	}
	if len(db.records) != 2 {
		t.Errorf("recorded %d measurements, want 2", len(db.records))
	}
	if len(session.uninstalls) != 2 {
		t.Errorf("uninstalls = %d, want 2", len(session.uninstalls))
	}

	data, err := os.ReadFile(store.AppPath())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc model.AggregateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := doc["fido"]["1.0"]; got.PersistentBytes != 41748 || got.TransientBytes != 2745 {
		t.Errorf("fido 1.0 = %+v", got)
	}
}

// TestRunWarmCache tests that a fully cached catalog touches neither
// the network artifacts nor the card.
func TestRunWarmCache(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("fido", "1.0", ""),
		entry("otp", "0.9", ""),
	}}
	session := &fakeSession{}
	db := newFakeRecorder()
	for _, e := range source.entries {
		if err := db.Record(context.Background(), model.MeasurementRecord{
			Package:     e.Ref,
			Measurement: model.StorageMeasurement{PersistentBytes: 1},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	o, store, opens := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Cached != 2 || stats.Measured != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 2 cached", stats)
	}
	if *opens != 0 {
		t.Errorf("session opened %d times, want 0", *opens)
	}
	if source.fetched != 0 {
		t.Errorf("fetched %d artifacts, want 0", source.fetched)
	}

	// Documents are still rebuilt from the cache.
	if _, err := os.Stat(store.AppPath()); err != nil {
		t.Errorf("expected app document: %v", err)
	}
}

// TestRunInstallFailure tests that a failing tuple is skipped without
// caching and without aborting the run.
func TestRunInstallFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("broken", "1.0", ""),
		entry("fido", "1.0", ""),
	}}
	session := &fakeSession{
		installErr: map[model.DedupKey]error{
			key("broken", "1.0"): errors.New("install refused"),
		},
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Measured != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 measured 1 failed", stats)
	}
	if _, ok := db.records[key("broken", "1.0")]; ok {
		t.Error("failed tuple must not be cached")
	}
	for _, u := range session.uninstalls {
		if u.Name == "broken" {
			t.Error("failed install must not trigger an uninstall")
		}
	}
}

// TestRunInstallStatusFailure tests that a classified installer failure
// returned without an error still skips the tuple and surfaces the
// installer's reason.
func TestRunInstallStatusFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{entry("fido", "1.0", "")}}
	session := &fakeSession{
		outcomes: map[model.DedupKey][]installer.Outcome{
			key("fido", "1.0"): {{Status: installer.StatusFailed, Reason: "no space left on card"}},
		},
	}
	db := newFakeRecorder()
	var out bytes.Buffer
	o, _, _ := testOrchestrator(t, cfg, source, session, db, WithProgress(NewPrinter(&out)))

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Measured != 0 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
	if session.measures != 0 {
		t.Errorf("probes = %d, want 0 after a failed install", session.measures)
	}
	if len(session.uninstalls) != 0 {
		t.Errorf("uninstalls = %d, want 0", len(session.uninstalls))
	}
	if len(db.records) != 0 {
		t.Error("failed tuple must not be cached")
	}
	if !strings.Contains(out.String(), "no space left on card") {
		t.Errorf("output %q must carry the installer's reason", out.String())
	}
}

// TestRunAlreadyInstalled tests that a package found on the card is
// removed and installed again before probing, so the recorded footprint
// comes from a clean baseline.
func TestRunAlreadyInstalled(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{entry("fido", "1.0", "")}}
	session := &fakeSession{
		outcomes: map[model.DedupKey][]installer.Outcome{
			key("fido", "1.0"): {
				{Status: installer.StatusAlreadyInstalled, ExistingVersion: "0.9"},
				{Status: installer.StatusOK},
			},
		},
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Measured != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 1 measured", stats)
	}
	if len(session.installs) != 2 {
		t.Errorf("installs = %d, want 2 (original plus clean reinstall)", len(session.installs))
	}
	if len(session.uninstalls) != 2 {
		t.Errorf("uninstalls = %d, want 2 (leftover plus post-measure)", len(session.uninstalls))
	}
	rec, ok := db.records[key("fido", "1.0")]
	if !ok {
		t.Fatal("expected recorded measurement")
	}
	if rec.Measurement.PersistentBytes != 41748 || rec.Measurement.TransientBytes != 2745 {
		t.Errorf("measurement = %+v, want the clean-baseline footprint", rec.Measurement)
	}
}

// TestRunDuplicateCatalogEntries tests that a key listed twice in one
// catalog is measured once.
func TestRunDuplicateCatalogEntries(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("fido", "1.0", ""),
		entry("fido", "1.0", ""),
	}}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Measured != 1 || stats.Cached != 1 {
		t.Errorf("stats = %+v, want 1 measured 1 cached", stats)
	}
	if len(session.installs) != 1 {
		t.Errorf("installs = %d, want 1", len(session.installs))
	}
	if source.fetched != 1 {
		t.Errorf("fetched %d artifacts, want 1", source.fetched)
	}
}

// TestRunProbeFailure tests the cleanup invariant: a package whose
// probe fails is still uninstalled, and nothing is recorded.
func TestRunProbeFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{entry("fido", "1.0", "")}}
	session := &fakeSession{
		measureErr: map[model.DedupKey]error{
			key("fido", "1.0"): card.ErrProbeFailed,
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Measured != 0 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
	if len(session.uninstalls) != 1 {
		t.Errorf("uninstalls = %d, want exactly 1", len(session.uninstalls))
	}
	if len(db.records) != 0 {
		t.Error("failed probe must not be cached")
	}
}

// TestRunFetchFailure tests that an unavailable artifact skips only its
// tuple.
func TestRunFetchFailure(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{
		entries: []catalog.Entry{
			entry("gone", "1.0", ""),
			entry("fido", "1.0", ""),
		},
		fetchErr: map[model.DedupKey]error{
			key("gone", "1.0"): catalog.ErrArtifactUnavailable,
		},
	}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Measured != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 measured 1 failed", stats)
	}
	if len(session.installs) != 1 {
		t.Errorf("installs = %d, want 1", len(session.installs))
	}
}

// TestRunSessionFaultReopens tests that a faulted session is replaced
// before the next tuple.
func TestRunSessionFaultReopens(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("stuck", "1.0", ""),
		entry("fido", "1.0", ""),
	}}
	first := &fakeSession{
		faultOn: map[model.DedupKey]bool{key("stuck", "1.0"): true},
	}
	second := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}

	store, err := report.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessions := []*fakeSession{first, second}
	opens := 0
	opener := func() (Session, error) {
		s := sessions[opens]
		opens++
		return s, nil
	}
	db := newFakeRecorder()
	o := New(cfg, source, opener, db, store)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opens != 2 {
		t.Errorf("session opened %d times, want 2", opens)
	}
	if !first.closed {
		t.Error("faulted session must be closed")
	}
	if stats.Measured != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 measured 1 failed", stats)
	}
}

// TestRunReopenFailureIsFatal tests that losing the card mid-run aborts.
func TestRunReopenFailureIsFatal(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{
		entry("stuck", "1.0", ""),
		entry("fido", "1.0", ""),
	}}
	first := &fakeSession{
		faultOn: map[model.DedupKey]bool{key("stuck", "1.0"): true},
	}

	store, err := report.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	opens := 0
	opener := func() (Session, error) {
		opens++
		if opens == 1 {
			return first, nil
		}
		return nil, card.ErrCardNotPresent
	}
	db := newFakeRecorder()
	o := New(cfg, source, opener, db, store)

	_, err = o.Run(context.Background())
	if !errors.Is(err, card.ErrCardNotPresent) {
		t.Errorf("error = %v, want ErrCardNotPresent", err)
	}
}

// TestRunCatalogUnavailable tests that a dead catalog aborts the run.
func TestRunCatalogUnavailable(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{listErr: catalog.ErrCatalogUnavailable}
	db := newFakeRecorder()
	o, _, opens := testOrchestrator(t, cfg, source, &fakeSession{}, db)

	_, err := o.Run(context.Background())
	if !errors.Is(err, catalog.ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
	if *opens != 0 {
		t.Error("session must not open without a catalog")
	}
}

// TestRunAppFilter tests that --app restricts the run to one package.
func TestRunAppFilter(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.App = "fido"
	source := &fakeSource{entries: []catalog.Entry{
		entry("otp", "0.9", ""),
		entry("fido", "1.0", ""),
		entry("pgp", "3.4", ""),
	}}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Attempted() != 1 || stats.Measured != 1 {
		t.Errorf("stats = %+v, want exactly the filtered package", stats)
	}
}

// TestRunOverheadSubtraction tests the configured container overhead.
func TestRunOverheadSubtraction(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.File.Apps["nfc"] = config.AppConfig{OverheadBytes: 256}
	source := &fakeSource{entries: []catalog.Entry{entry("nfc", "1.0", "")}}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("nfc", "1.0"): {PersistentBytes: 1000, TransientBytes: 64},
		},
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := db.records[key("nfc", "1.0")]
	if !ok {
		t.Fatal("expected recorded measurement")
	}
	if rec.Measurement.PersistentBytes != 744 {
		t.Errorf("persistent = %d, want 744", rec.Measurement.PersistentBytes)
	}
	if rec.Measurement.TransientBytes != 64 {
		t.Errorf("transient = %d, want 64 (overhead is persistent only)", rec.Measurement.TransientBytes)
	}
}

// TestRunCleansLeftovers tests pre-run removal of stale packages,
// sparing the probe applet.
func TestRunCleansLeftovers(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{entry("fido", "1.0", "")}}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "1.0"): {PersistentBytes: 41748, TransientBytes: 2745},
		},
	}
	cleaner := &fakeCleaner{
		apps:   []string{"aaaa1111", "bbbb2222", "cccc3333"},
		memApp: "bbbb2222",
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, session, db, WithCleaner(cleaner))

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"aaaa1111", "cccc3333"}
	if fmt.Sprint(cleaner.removed) != fmt.Sprint(want) {
		t.Errorf("removed = %v, want %v", cleaner.removed, want)
	}
}

// TestRunCancellation tests that cancellation stops the loop between
// tuples.
func TestRunCancellation(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	source := &fakeSource{entries: []catalog.Entry{entry("fido", "1.0", "")}}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, cfg, source, &fakeSession{}, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// TestRunCancelDuringFetch tests that a tuple whose download is cut off
// by cancellation is not counted as a failure.
func TestRunCancelDuringFetch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	source := &fakeSource{
		entries:    []catalog.Entry{entry("fido", "1.0", "")},
		fetchBlock: make(chan struct{}),
		onFetch:    func() { cancel() },
	}
	db := newFakeRecorder()
	o, _, _ := testOrchestrator(t, config.NewConfig(), source, &fakeSession{}, db)

	stats, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if stats.Failed != 0 {
		t.Errorf("failed = %d, want 0 for a cancelled download", stats.Failed)
	}
}

// TestRunReleaseMode tests release-grouped document output.
func TestRunReleaseMode(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Mode = config.ModeRelease
	source := &fakeSource{entries: []catalog.Entry{
		entry("fido", "v1", "v1"),
		entry("fido", "v2", "v2"),
	}}
	session := &fakeSession{
		measurement: map[model.DedupKey]model.StorageMeasurement{
			key("fido", "v1"): {PersistentBytes: 41748, TransientBytes: 2745},
			key("fido", "v2"): {PersistentBytes: 43000, TransientBytes: 2800},
		},
	}
	db := newFakeRecorder()
	o, store, _ := testOrchestrator(t, cfg, source, session, db)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.ReleasePath())
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc model.AggregateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !doc.Has("v1", "fido") || !doc.Has("v2", "fido") {
		t.Errorf("document = %+v, want grouping by release", doc)
	}
	if _, err := os.Stat(store.AppPath()); !os.IsNotExist(err) {
		t.Error("release mode must not write the app document")
	}
}
