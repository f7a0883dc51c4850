// Package launcher owns the launcher's observable state. Apply is the pure
// transition function; Orchestrator runs it as a single actor over one ordered
// input queue and performs the effects it asks for.
package launcher

import (
	"errors"
	"time"

	"launcher/internal/config"
	"launcher/internal/debug"
	"launcher/internal/domain"
	appErrors "launcher/internal/errors"
	"launcher/internal/manifest"
	"launcher/internal/progress"
	"launcher/internal/version"
)

var log = debug.Component("launcher")

// Notice is a one-shot message for the user. Seq increases with every new
// notice so a presenter can show each exactly once.
type Notice struct {
	Seq  uint64
	Code appErrors.Code
	Text string
}

// State is everything the machine tracks. The zero value is not valid; use
// NewState.
type State struct {
	Status       domain.Status
	Manifest     *manifest.Manifest
	LocalVersion string
	Config       config.LauncherConfig
	Notice       Notice
	Launches     int
	CheckedAt    time.Time

	generation     uint64
	session        string
	tracker        progress.Tracker
	pendingRefresh bool
}

// NewState is the initial state: Checking with nothing known yet.
func NewState(cfg config.LauncherConfig) State {
	return State{
		Status:       domain.Checking(),
		LocalVersion: version.NotInstalled,
		Config:       cfg,
	}
}

// Generation returns the current reconciliation generation.
func (s State) Generation() uint64 { return s.generation }

// Session returns the active download session, or "".
func (s State) Session() string { return s.session }

// Input is anything the machine reacts to.
type Input interface {
	isInput()
}

type (
	// Start begins the first reconciliation.
	Start struct{}

	// Refresh re-runs reconciliation. Force bypasses the manifest cache.
	Refresh struct{ Force bool }

	// ManifestUpdated is the external push that the manifest changed.
	ManifestUpdated struct{}

	// Reconciled carries the outcome of a reconciliation started under Generation.
	Reconciled struct {
		Generation uint64
		Local      string
		Manifest   *manifest.Manifest
		Err        error
		At         time.Time
	}

	// DownloadRequested is the user's start-download intent.
	DownloadRequested struct{ Session string }

	// DownloadStartFailed reports that the backend refused to start Session.
	DownloadStartFailed struct {
		Session string
		Err     error
	}

	// DownloadProgress is a backend progress sample.
	DownloadProgress struct {
		Session string
		Event   progress.RawEvent
	}

	// DownloadComplete reports a successful install.
	DownloadComplete struct{ Session string }

	// DownloadFailed reports a failed download or install.
	DownloadFailed struct {
		Session string
		Message string
	}

	// VersionQueried carries a re-queried local version.
	VersionQueried struct{ Version string }

	// LaunchRequested is the user's launch intent.
	LaunchRequested struct{}

	// Launched reports the outcome of a launch.
	Launched struct{ Err error }

	// LanguageChanged switches the display language.
	LanguageChanged struct{ Lang string }

	// ConfigChanged replaces the launcher settings.
	ConfigChanged struct{ Config config.LauncherConfig }

	// ConfigSaved reports the outcome of persisting settings.
	ConfigSaved struct{ Err error }
)

func (Start) isInput()               {}
func (Refresh) isInput()             {}
func (ManifestUpdated) isInput()     {}
func (Reconciled) isInput()          {}
func (DownloadRequested) isInput()   {}
func (DownloadStartFailed) isInput() {}
func (DownloadProgress) isInput()    {}
func (DownloadComplete) isInput()    {}
func (DownloadFailed) isInput()      {}
func (VersionQueried) isInput()      {}
func (LaunchRequested) isInput()     {}
func (Launched) isInput()            {}
func (LanguageChanged) isInput()     {}
func (ConfigChanged) isInput()       {}
func (ConfigSaved) isInput()         {}

// Effect is work the orchestrator must do on the machine's behalf.
type Effect interface {
	isEffect()
}

type (
	// Reconcile queries the local version and the manifest concurrently.
	Reconcile struct {
		Generation uint64
		Force      bool
	}

	// BeginDownload asks the backend to start a download.
	BeginDownload struct {
		Session  string
		Manifest *manifest.Manifest
	}

	// QueryVersion re-reads the installed version.
	QueryVersion struct{}

	// Launch asks the backend to start the game.
	Launch struct{ Manifest *manifest.Manifest }

	// SaveConfig persists settings.
	SaveConfig struct{ Config config.LauncherConfig }

	// Requeue feeds an input back into the queue after the current one.
	Requeue struct{ Input Input }
)

func (Reconcile) isEffect()     {}
func (BeginDownload) isEffect() {}
func (QueryVersion) isEffect()  {}
func (Launch) isEffect()        {}
func (SaveConfig) isEffect()    {}
func (Requeue) isEffect()       {}

// ReconcileStatus maps local and remote versions onto a status.
func ReconcileStatus(local, latest string) domain.Status {
	switch {
	case local == version.NotInstalled || local == "":
		return domain.Missing()
	case local != latest:
		return domain.UpdateAvailable()
	default:
		return domain.ReadyToPlay()
	}
}

// Apply folds one input into s. Inputs that make no sense in the current
// status are dropped and s is returned unchanged.
func Apply(s State, in Input) (State, []Effect) {
	switch in := in.(type) {
	case Start:
		return beginCheck(s, false)

	case Refresh:
		return refresh(s, in.Force)

	case ManifestUpdated:
		return refresh(s, true)

	case Reconciled:
		return reconciled(s, in)

	case DownloadRequested:
		if !s.Status.Is(domain.KindMissing) && !s.Status.Is(domain.KindUpdateAvailable) {
			log.Logf("ignoring download request in %s", s.Status)
			return s, nil
		}
		if s.Manifest == nil {
			log.Logf("ignoring download request without a manifest")
			return s, nil
		}
		next, ok := transition(s, domain.Downloading(domain.PreparingDownload()))
		if !ok {
			return s, nil
		}
		next.session = in.Session
		next.tracker = progress.Tracker{}
		return next, []Effect{BeginDownload{Session: in.Session, Manifest: next.Manifest}}

	case DownloadStartFailed:
		return downloadEnded(s, in.Session, DownloadFailed{Session: in.Session, Message: errorText(in.Err)})

	case DownloadProgress:
		if !s.Status.Is(domain.KindDownloading) || in.Session != s.session {
			log.Logf("dropping progress for session %q (active %q, %s)", in.Session, s.session, s.Status)
			return s, nil
		}
		ds, ok := s.tracker.Apply(in.Event)
		if !ok {
			log.Logf("dropping out-of-order progress: %d bytes", in.Event.Downloaded)
			return s, nil
		}
		s.Status = domain.Downloading(ds)
		return s, nil

	case DownloadComplete:
		return downloadEnded(s, in.Session, in)

	case DownloadFailed:
		return downloadEnded(s, in.Session, in)

	case VersionQueried:
		s.LocalVersion = in.Version
		if s.Manifest != nil && in.Version != s.Manifest.LatestVersion {
			log.Logf("installed version %s differs from manifest %s", in.Version, s.Manifest.LatestVersion)
		}
		return s, nil

	case LaunchRequested:
		if !s.Status.Is(domain.KindReadyToPlay) {
			log.Logf("ignoring launch request in %s", s.Status)
			return s, nil
		}
		return s, []Effect{Launch{Manifest: s.Manifest}}

	case Launched:
		if in.Err != nil {
			return notify(s, in.Err), nil
		}
		s.Launches++
		return s, nil

	case LanguageChanged:
		cfg := s.Config
		cfg.Language = config.NormalizeLanguage(in.Lang)
		return configChanged(s, cfg)

	case ConfigChanged:
		cfg := in.Config
		cfg.Language = config.NormalizeLanguage(cfg.Language)
		cfg.CloseBehavior = config.NormalizeCloseBehavior(string(cfg.CloseBehavior))
		return configChanged(s, cfg)

	case ConfigSaved:
		if in.Err != nil {
			return notify(s, in.Err), nil
		}
		return s, nil

	default:
		log.Logf("unknown input %T", in)
		return s, nil
	}
}

func beginCheck(s State, force bool) (State, []Effect) {
	next, ok := transition(s, domain.Checking())
	if !ok {
		return s, nil
	}
	next.generation++
	return next, []Effect{Reconcile{Generation: next.generation, Force: force}}
}

func refresh(s State, force bool) (State, []Effect) {
	if s.Status.Is(domain.KindDownloading) {
		log.Logf("deferring refresh until the download ends")
		s.pendingRefresh = true
		return s, nil
	}
	if s.Status.Is(domain.KindChecking) {
		log.Logf("superseding reconciliation generation %d", s.generation)
	}
	return beginCheck(s, force)
}

func reconciled(s State, in Reconciled) (State, []Effect) {
	if in.Generation != s.generation || !s.Status.Is(domain.KindChecking) {
		log.Logf("discarding stale reconciliation %d (current %d, %s)", in.Generation, s.generation, s.Status)
		return s, nil
	}
	s.LocalVersion = in.Local
	if !in.At.IsZero() {
		s.CheckedAt = in.At
	}
	if in.Err == nil && in.Manifest == nil {
		in.Err = appErrors.New(appErrors.CodeManifestFailed, "backend returned no manifest", nil)
	}

	if in.Err != nil {
		var fe *manifest.FetchError
		offline := appErrors.IsCode(in.Err, appErrors.CodeOffline)
		if errors.As(in.Err, &fe) && fe.Cached != nil && s.Manifest == nil {
			s.Manifest = fe.Cached
		}
		if offline {
			next, _ := transition(s, domain.Offline())
			return next, nil
		}
		next, _ := transition(s, domain.Failed(errorText(in.Err)))
		return next, nil
	}

	s.Manifest = in.Manifest
	next, _ := transition(s, ReconcileStatus(in.Local, in.Manifest.LatestVersion))
	if !next.Status.Is(domain.KindReadyToPlay) {
		log.Logf("local %s, latest %s: %s", in.Local, in.Manifest.LatestVersion,
			version.Classify(in.Local, in.Manifest.LatestVersion))
	}
	return next, nil
}

func downloadEnded(s State, session string, in Input) (State, []Effect) {
	if !s.Status.Is(domain.KindDownloading) || session != s.session {
		log.Logf("dropping %T for session %q (active %q, %s)", in, session, s.session, s.Status)
		return s, nil
	}

	var effects []Effect
	switch in := in.(type) {
	case DownloadComplete:
		next, ok := transition(s, domain.ReadyToPlay())
		if !ok {
			return s, nil
		}
		s = next
		effects = append(effects, QueryVersion{})
	case DownloadFailed:
		next, ok := transition(s, domain.UpdateAvailable())
		if !ok {
			return s, nil
		}
		s = notify(next, appErrors.New(appErrors.CodeDownloadFailed, in.Message, nil))
	}
	s.session = ""
	s.tracker = progress.Tracker{}
	if s.pendingRefresh {
		s.pendingRefresh = false
		effects = append(effects, Requeue{Input: Refresh{Force: true}})
	}
	return s, effects
}

func configChanged(s State, cfg config.LauncherConfig) (State, []Effect) {
	if cfg == s.Config {
		return s, nil
	}
	s.Config = cfg
	return s, []Effect{SaveConfig{Config: cfg}}
}

func transition(s State, next domain.Status) (State, bool) {
	if err := s.Status.CanTransitionTo(next); err != nil {
		log.Logf("rejected transition: %v", err)
		return s, false
	}
	if s.Status.Kind() != next.Kind() {
		log.Logf("%s -> %s", s.Status, next)
	}
	s.Status = next
	return s, true
}

func notify(s State, err error) State {
	s.Notice = Notice{
		Seq:  s.Notice.Seq + 1,
		Code: appErrors.CodeOf(err),
		Text: errorText(err),
	}
	log.Logf("notice %d (%s): %s", s.Notice.Seq, s.Notice.Code, s.Notice.Text)
	return s
}

func errorText(err error) string {
	var appErr appErrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
