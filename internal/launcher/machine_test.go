package launcher

import (
	"errors"
	"testing"

	"launcher/internal/config"
	"launcher/internal/domain"
	appErrors "launcher/internal/errors"
	"launcher/internal/manifest"
	"launcher/internal/progress"
	"launcher/internal/version"
)

func defaultConfig() config.LauncherConfig {
	return config.LauncherConfig{Language: "en", CloseBehavior: config.CloseMinimizeToTray}
}

func release(v string) *manifest.Manifest {
	return &manifest.Manifest{LatestVersion: v, GameZip: "https://cdn.example/game.zip"}
}

// checked drives a fresh state through the first reconciliation.
func checked(t *testing.T, local string, m *manifest.Manifest, err error) State {
	t.Helper()
	s, effects := Apply(NewState(defaultConfig()), Start{})
	if len(effects) != 1 {
		t.Fatalf("Start effects = %#v", effects)
	}
	rec, ok := effects[0].(Reconcile)
	if !ok || rec.Force {
		t.Fatalf("Start effect = %#v, want unforced Reconcile", effects[0])
	}
	s, _ = Apply(s, Reconciled{Generation: rec.Generation, Local: local, Manifest: m, Err: err})
	return s
}

func downloading(t *testing.T, session string) State {
	t.Helper()
	s := checked(t, "1.2.0", release("1.3.0"), nil)
	s, effects := Apply(s, DownloadRequested{Session: session})
	if !s.Status.Is(domain.KindDownloading) {
		t.Fatalf("status = %s, want Downloading", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("download effects = %#v", effects)
	}
	if begin, ok := effects[0].(BeginDownload); !ok || begin.Session != session || begin.Manifest == nil {
		t.Fatalf("download effect = %#v", effects[0])
	}
	return s
}

func TestReconcileStatus(t *testing.T) {
	tests := []struct {
		local, latest string
		want          domain.Kind
	}{
		{"0.0.0", "1.3.0", domain.KindMissing},
		{"0.0.0", "0.0.1", domain.KindMissing},
		{"", "1.3.0", domain.KindMissing},
		{"1.2.0", "1.3.0", domain.KindUpdateAvailable},
		{"1.4.0", "1.3.0", domain.KindUpdateAvailable},
		{"1.3.0-beta", "1.3.0", domain.KindUpdateAvailable},
		{"1.3.0", "1.3.0", domain.KindReadyToPlay},
		{"build-77", "build-77", domain.KindReadyToPlay},
	}
	for _, tt := range tests {
		if got := ReconcileStatus(tt.local, tt.latest).Kind(); got != tt.want {
			t.Errorf("ReconcileStatus(%q, %q) = %s, want %s", tt.local, tt.latest, got, tt.want)
		}
	}
}

func TestInitialReconciliation(t *testing.T) {
	offline := &manifest.FetchError{
		Err:    appErrors.New(appErrors.CodeOffline, "cannot reach the update server", nil),
		Cached: release("1.1.0"),
	}
	tests := []struct {
		name         string
		local        string
		m            *manifest.Manifest
		err          error
		want         domain.Kind
		wantMessage  string
		wantManifest string
	}{
		{name: "missing", local: version.NotInstalled, m: release("1.3.0"), want: domain.KindMissing, wantManifest: "1.3.0"},
		{name: "update", local: "1.2.0", m: release("1.3.0"), want: domain.KindUpdateAvailable, wantManifest: "1.3.0"},
		{name: "ready", local: "1.3.0", m: release("1.3.0"), want: domain.KindReadyToPlay, wantManifest: "1.3.0"},
		{name: "offline keeps cached manifest", local: "1.1.0", err: offline, want: domain.KindOffline, wantManifest: "1.1.0"},
		{
			name:        "other failure",
			local:       "1.1.0",
			err:         appErrors.New(appErrors.CodeManifestInvalid, "malformed manifest: unexpected EOF", nil),
			want:        domain.KindError,
			wantMessage: "malformed manifest: unexpected EOF",
		},
		{name: "uncoded failure", local: "1.1.0", err: errors.New("boom"), want: domain.KindError, wantMessage: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := checked(t, tt.local, tt.m, tt.err)
			if s.Status.Kind() != tt.want {
				t.Fatalf("status = %s, want %s", s.Status, tt.want)
			}
			if s.Status.Message() != tt.wantMessage {
				t.Fatalf("message = %q, want %q", s.Status.Message(), tt.wantMessage)
			}
			var got string
			if s.Manifest != nil {
				got = s.Manifest.LatestVersion
			}
			if got != tt.wantManifest {
				t.Fatalf("manifest version = %q, want %q", got, tt.wantManifest)
			}
			if s.LocalVersion != tt.local {
				t.Fatalf("local version = %q, want %q", s.LocalVersion, tt.local)
			}
		})
	}
}

func TestErrorStatusOverridesActionLabel(t *testing.T) {
	s := checked(t, "1.0.0", nil, errors.New("server said no"))
	a := domain.ActionFor(s.Status)
	if a.Enabled || a.Label != domain.LabelChecking || a.Override != "server said no" {
		t.Fatalf("action = %+v", a)
	}
}

func TestReconciledWithoutManifestFails(t *testing.T) {
	s, effects := Apply(NewState(defaultConfig()), Start{})
	gen := effects[0].(Reconcile).Generation

	s, _ = Apply(s, Reconciled{Generation: gen, Local: "1.0.0"})
	if !s.Status.Is(domain.KindError) {
		t.Fatalf("status = %s, want Error", s.Status)
	}
	if got := s.Status.Message(); got != "backend returned no manifest" {
		t.Fatalf("message = %q", got)
	}
	if s.LocalVersion != "1.0.0" || s.Manifest != nil {
		t.Fatalf("state = %+v", s)
	}
}

func TestStaleReconciliationIsDiscarded(t *testing.T) {
	s, effects := Apply(NewState(defaultConfig()), Start{})
	first := effects[0].(Reconcile)

	s, effects = Apply(s, Refresh{Force: true})
	second, ok := effects[0].(Reconcile)
	if !ok || !second.Force || second.Generation == first.Generation {
		t.Fatalf("refresh effect = %#v (first %#v)", effects[0], first)
	}

	s, _ = Apply(s, Reconciled{Generation: first.Generation, Local: "1.0.0", Manifest: release("9.9.9")})
	if !s.Status.Is(domain.KindChecking) || s.Manifest != nil {
		t.Fatalf("stale result applied: %s, manifest %+v", s.Status, s.Manifest)
	}

	s, _ = Apply(s, Reconciled{Generation: second.Generation, Local: "1.0.0", Manifest: release("1.0.0")})
	if !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("status = %s, want ReadyToPlay", s.Status)
	}

	// A result for an old generation cannot move a settled status either.
	s, _ = Apply(s, Reconciled{Generation: first.Generation, Local: "1.0.0", Err: errors.New("late")})
	if !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("late failure changed status to %s", s.Status)
	}
}

func TestManifestUpdatedForcesRecheckFromOffline(t *testing.T) {
	offline := appErrors.New(appErrors.CodeOffline, "cannot reach the update server", nil)
	s := checked(t, "1.2.0", nil, offline)
	if !s.Status.Is(domain.KindOffline) || domain.ActionFor(s.Status).Enabled {
		t.Fatalf("status = %s, want disabled Offline", s.Status)
	}

	s, effects := Apply(s, ManifestUpdated{})
	if !s.Status.Is(domain.KindChecking) {
		t.Fatalf("status = %s, want Checking", s.Status)
	}
	rec, ok := effects[0].(Reconcile)
	if !ok || !rec.Force {
		t.Fatalf("effect = %#v, want forced Reconcile", effects[0])
	}
	s, _ = Apply(s, Reconciled{Generation: rec.Generation, Local: "1.2.0", Manifest: release("1.2.0")})
	if !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("status = %s, want ReadyToPlay", s.Status)
	}
}

func TestDownloadScenario(t *testing.T) {
	s := downloading(t, "s1")
	if ds, _ := s.Status.Download(); ds.Phase != domain.PhasePreparing {
		t.Fatalf("phase = %s, want Preparing", ds.Phase)
	}

	s, _ = Apply(s, DownloadProgress{Session: "s1", Event: progress.RawEvent{Downloaded: 500, Total: 1000, SpeedBytesPerSec: 1024, Status: "Downloading"}})
	ds, ok := s.Status.Download()
	if !ok || ds.Percent != 50 || ds.PercentText != "50.0%" {
		t.Fatalf("after progress: %+v", ds)
	}

	// Out-of-order and foreign samples are dropped.
	s, _ = Apply(s, DownloadProgress{Session: "s1", Event: progress.RawEvent{Downloaded: 400, Total: 1000}})
	s, _ = Apply(s, DownloadProgress{Session: "other", Event: progress.RawEvent{Downloaded: 900, Total: 1000}})
	if ds, _ := s.Status.Download(); ds.DownloadedBytes != 500 {
		t.Fatalf("downloaded = %d, want 500", ds.DownloadedBytes)
	}

	// A completion for another session is ignored.
	s, effects := Apply(s, DownloadComplete{Session: "other"})
	if !s.Status.Is(domain.KindDownloading) || len(effects) != 0 {
		t.Fatalf("foreign completion applied: %s %#v", s.Status, effects)
	}

	s, effects = Apply(s, DownloadComplete{Session: "s1"})
	if !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("status = %s, want ReadyToPlay", s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("completion effects = %#v", effects)
	}
	if _, ok := effects[0].(QueryVersion); !ok {
		t.Fatalf("completion effect = %#v, want QueryVersion", effects[0])
	}
	if s.Session() != "" {
		t.Fatalf("session = %q after completion", s.Session())
	}

	s, _ = Apply(s, VersionQueried{Version: "1.3.0"})
	if s.LocalVersion != "1.3.0" || !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("after re-query: %s local %s", s.Status, s.LocalVersion)
	}
}

func TestProgressNeverRegressesPercent(t *testing.T) {
	s := downloading(t, "s1")
	s, _ = Apply(s, DownloadProgress{Session: "s1", Event: progress.RawEvent{Downloaded: 800, Total: 1000}})
	// Unknown total with a lower server-reported percent.
	s, _ = Apply(s, DownloadProgress{Session: "s1", Event: progress.RawEvent{Downloaded: 800, Percent: 10}})
	ds, _ := s.Status.Download()
	if ds.Percent < 80 {
		t.Fatalf("percent regressed to %v", ds.Percent)
	}
	// Same event twice is idempotent.
	again, _ := Apply(s, DownloadProgress{Session: "s1", Event: progress.RawEvent{Downloaded: 800, Percent: 10}})
	ds2, _ := again.Status.Download()
	if ds2 != ds {
		t.Fatalf("repeated event changed state: %+v -> %+v", ds, ds2)
	}
}

func TestDownloadErrorReturnsToUpdateAvailable(t *testing.T) {
	s := downloading(t, "s1")
	s, _ = Apply(s, DownloadFailed{Session: "s1", Message: "disk full"})
	if !s.Status.Is(domain.KindUpdateAvailable) {
		t.Fatalf("status = %s, want UpdateAvailable", s.Status)
	}
	if s.Notice.Seq != 1 || s.Notice.Text != "disk full" || s.Notice.Code != appErrors.CodeDownloadFailed {
		t.Fatalf("notice = %+v", s.Notice)
	}
	if a := domain.ActionFor(s.Status); !a.Enabled || a.Intent != domain.IntentDownload {
		t.Fatalf("action = %+v, want enabled download", a)
	}

	// Unrelated inputs keep the notice sequence.
	s, _ = Apply(s, LanguageChanged{Lang: "vi"})
	if s.Notice.Seq != 1 {
		t.Fatalf("notice seq = %d, want 1", s.Notice.Seq)
	}

	s, effects := Apply(s, DownloadRequested{Session: "s2"})
	if !s.Status.Is(domain.KindDownloading) || s.Session() != "s2" || len(effects) != 1 {
		t.Fatalf("retry not accepted: %s %#v", s.Status, effects)
	}
}

func TestDownloadStartFailure(t *testing.T) {
	s := downloading(t, "s1")
	s, _ = Apply(s, DownloadStartFailed{Session: "s1", Err: appErrors.New(appErrors.CodeDownloadFailed, "a download is already running", nil)})
	if !s.Status.Is(domain.KindUpdateAvailable) || s.Notice.Text != "a download is already running" {
		t.Fatalf("status = %s notice = %+v", s.Status, s.Notice)
	}
}

func TestDownloadRequestIgnoredOutsideActionableStates(t *testing.T) {
	for _, s := range []State{
		NewState(defaultConfig()),
		checked(t, "1.3.0", release("1.3.0"), nil),
		checked(t, "1.3.0", nil, appErrors.New(appErrors.CodeOffline, "offline", nil)),
	} {
		next, effects := Apply(s, DownloadRequested{Session: "x"})
		if next.Status != s.Status || len(effects) != 0 {
			t.Errorf("download accepted in %s", s.Status)
		}
	}
}

func TestRefreshDeferredDuringDownload(t *testing.T) {
	s := downloading(t, "s1")
	gen := s.Generation()

	s, effects := Apply(s, ManifestUpdated{})
	if !s.Status.Is(domain.KindDownloading) || len(effects) != 0 || s.Generation() != gen {
		t.Fatalf("refresh not deferred: %s %#v", s.Status, effects)
	}

	s, effects = Apply(s, DownloadComplete{Session: "s1"})
	if !s.Status.Is(domain.KindReadyToPlay) {
		t.Fatalf("status = %s, want ReadyToPlay", s.Status)
	}
	var requeued bool
	for _, eff := range effects {
		if rq, ok := eff.(Requeue); ok {
			if r, ok := rq.Input.(Refresh); ok && r.Force {
				requeued = true
			}
		}
	}
	if !requeued {
		t.Fatalf("effects = %#v, want a requeued forced refresh", effects)
	}
}

func TestLaunch(t *testing.T) {
	s := checked(t, "1.2.0", release("1.3.0"), nil)
	if _, effects := Apply(s, LaunchRequested{}); len(effects) != 0 {
		t.Fatalf("launch accepted in %s", s.Status)
	}

	s = checked(t, "1.3.0", release("1.3.0"), nil)
	_, effects := Apply(s, LaunchRequested{})
	if len(effects) != 1 {
		t.Fatalf("launch effects = %#v", effects)
	}
	if l, ok := effects[0].(Launch); !ok || l.Manifest == nil {
		t.Fatalf("launch effect = %#v", effects[0])
	}

	failed, _ := Apply(s, Launched{Err: appErrors.New(appErrors.CodeLaunchFailed, "game executable not found", nil)})
	if !failed.Status.Is(domain.KindReadyToPlay) || failed.Notice.Text != "game executable not found" || failed.Launches != 0 {
		t.Fatalf("after failed launch: %s %+v launches=%d", failed.Status, failed.Notice, failed.Launches)
	}

	launched, _ := Apply(s, Launched{})
	if launched.Launches != 1 || launched.Notice.Seq != 0 {
		t.Fatalf("after launch: launches=%d notice=%+v", launched.Launches, launched.Notice)
	}
}

func TestConfigChangesDoNotTouchStatus(t *testing.T) {
	s := downloading(t, "s1")
	before := s.Status

	s, effects := Apply(s, LanguageChanged{Lang: "VI"})
	if s.Config.Language != "vi" || s.Status != before {
		t.Fatalf("config = %+v status = %s", s.Config, s.Status)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %#v", effects)
	}
	if save, ok := effects[0].(SaveConfig); !ok || save.Config.Language != "vi" {
		t.Fatalf("effect = %#v", effects[0])
	}

	_, effects = Apply(s, LanguageChanged{Lang: "vi"})
	if len(effects) != 0 {
		t.Fatalf("unchanged language saved again: %#v", effects)
	}

	s, _ = Apply(s, LanguageChanged{Lang: "fr"})
	if s.Config.Language != "en" {
		t.Fatalf("unsupported language = %q, want en", s.Config.Language)
	}

	s, effects = Apply(s, ConfigChanged{Config: config.LauncherConfig{Language: "jp", CloseBehavior: "exit", LaunchAtStartup: true}})
	want := config.LauncherConfig{Language: "jp", CloseBehavior: config.CloseExit, LaunchAtStartup: true}
	if s.Config != want || len(effects) != 1 || s.Status != before {
		t.Fatalf("config = %+v effects = %#v", s.Config, effects)
	}

	s, _ = Apply(s, ConfigSaved{Err: errors.New("read-only file system")})
	if s.Notice.Text != "read-only file system" {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

func TestEveryAppliedStatusChangeIsAllowed(t *testing.T) {
	inputs := []Input{
		Start{},
		Reconciled{Generation: 1, Local: "1.2.0", Manifest: release("1.3.0")},
		DownloadRequested{Session: "a"},
		Refresh{Force: true},
		DownloadProgress{Session: "a", Event: progress.RawEvent{Downloaded: 10, Total: 100}},
		LaunchRequested{},
		DownloadFailed{Session: "a", Message: "x"},
		Refresh{Force: true},
		Reconciled{Generation: 2, Local: "1.3.0", Manifest: release("1.3.0")},
		LaunchRequested{},
		Launched{},
		ManifestUpdated{},
		Reconciled{Generation: 3, Local: "1.3.0", Err: errors.New("boom")},
		Refresh{},
	}
	s := NewState(defaultConfig())
	for i, in := range inputs {
		next, _ := Apply(s, in)
		if err := s.Status.CanTransitionTo(next.Status); err != nil {
			t.Fatalf("input %d (%T): %v", i, in, err)
		}
		s = next
	}
	if !s.Status.Is(domain.KindChecking) || s.Generation() != 4 {
		t.Fatalf("final status = %s (generation %d), want Checking at 4", s.Status, s.Generation())
	}
}
