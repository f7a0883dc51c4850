package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"launcher/internal/config"
	appErrors "launcher/internal/errors"
	"launcher/internal/installer"
	"launcher/internal/manifest"
	"launcher/internal/progress"
	"launcher/internal/store"
	"launcher/internal/version"
)

// DefaultEventBuffer is the capacity of the event channel.
const DefaultEventBuffer = 64

// ErrExecutableNotFound is wrapped by LaunchGame when the game binary is absent.
var ErrExecutableNotFound = errors.New("game executable not found")

// Test hooks.
var (
	// startProcessFunc starts the game detached from the launcher.
	startProcessFunc = startProcess

	// loadConfigFunc and saveConfigFunc read and write the persisted settings.
	loadConfigFunc = config.LoadLauncherConfig
	saveConfigFunc = config.SaveLauncherConfig
)

// ManifestSource fetches the manifest. *manifest.Client satisfies it.
type ManifestSource interface {
	Fetch(ctx context.Context, force bool) (*manifest.Manifest, error)
}

// Recorder keeps download history. *store.Store satisfies it.
type Recorder interface {
	RecordDownload(ctx context.Context, rec store.DownloadRecord) error
}

// Local is the in-process backend: the game lives in a directory on this
// machine and the manifest comes over HTTP.
type Local struct {
	manifests  ManifestSource
	installer  *installer.Installer
	recorder   Recorder
	defaultExe string
	push       *PushListener
	watchPath  string
	now        func() time.Time

	events chan Event

	mu          sync.Mutex
	downloading bool
}

// LocalOption configures a Local backend.
type LocalOption func(*Local)

// WithRecorder records every finished download.
func WithRecorder(r Recorder) LocalOption {
	return func(l *Local) {
		l.recorder = r
	}
}

// WithDefaultExecutable sets the executable used when the manifest names none.
func WithDefaultExecutable(name string) LocalOption {
	return func(l *Local) {
		if name != "" {
			l.defaultExe = name
		}
	}
}

// WithPushListener sets the source of manifest-updated and language events.
func WithPushListener(p *PushListener) LocalOption {
	return func(l *Local) {
		l.push = p
	}
}

// WithConfigWatch watches path for language edits made outside the launcher.
func WithConfigWatch(path string) LocalOption {
	return func(l *Local) {
		l.watchPath = path
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) LocalOption {
	return func(l *Local) {
		if n >= 0 {
			l.events = make(chan Event, n)
		}
	}
}

// WithLocalClock overrides time.Now for download records.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLocal creates a backend that installs into inst.GameDir().
func NewLocal(manifests ManifestSource, inst *installer.Installer, opts ...LocalOption) *Local {
	l := &Local{
		manifests:  manifests,
		installer:  inst,
		defaultExe: config.DefaultGameExe,
		now:        time.Now,
		events:     make(chan Event, DefaultEventBuffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Events returns the push channel. It is never closed.
func (l *Local) Events() <-chan Event { return l.events }

// Serve runs the push listener and config watcher until ctx is done.
func (l *Local) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if l.push != nil {
		g.Go(func() error {
			return l.push.Run(gctx, func(ev Event) { l.emit(gctx, ev) })
		})
	}
	if l.watchPath != "" {
		g.Go(func() error {
			return WatchConfig(gctx, l.watchPath, func(ev Event) { l.emit(gctx, ev) })
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// LocalVersion reads the version stamp of the installed game.
func (l *Local) LocalVersion(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return version.FileQuery(l.installer.GameDir())(ctx)
}

// Config returns the persisted launcher settings.
func (l *Local) Config() (config.LauncherConfig, error) {
	return loadConfigFunc()
}

// SaveConfig persists the launcher settings.
func (l *Local) SaveConfig(cfg config.LauncherConfig) error {
	if err := saveConfigFunc(cfg); err != nil {
		return appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("save settings: %v", err), err)
	}
	return nil
}

// Manifest fetches the manifest, bypassing caches when force is set.
func (l *Local) Manifest(ctx context.Context, force bool) (*manifest.Manifest, error) {
	return l.manifests.Fetch(ctx, force)
}

// StartDownload installs the manifest's package in the background. Progress,
// completion and failure are reported on Events tagged with session. ctx bounds
// the whole download, not just the call.
func (l *Local) StartDownload(ctx context.Context, session string, m *manifest.Manifest) error {
	if m == nil {
		return appErrors.New(appErrors.CodeDownloadFailed, "no manifest to download from", nil)
	}
	l.mu.Lock()
	if l.downloading {
		l.mu.Unlock()
		return appErrors.New(appErrors.CodeDownloadFailed, ErrDownloadInProgress.Error(), ErrDownloadInProgress)
	}
	l.downloading = true
	l.mu.Unlock()

	req := installer.Request{URL: m.GameZip, Checksum: m.ChecksumHex(), Version: m.LatestVersion}
	go l.runDownload(ctx, session, req)
	return nil
}

func (l *Local) runDownload(ctx context.Context, session string, req installer.Request) {
	defer func() {
		l.mu.Lock()
		l.downloading = false
		l.mu.Unlock()
	}()

	started := l.now()
	log.Logf("download %s started: %s", session, req.Version)

	var (
		pc  panics.Catcher
		res installer.Result
		err error
	)
	pc.Try(func() {
		res, err = l.installer.Install(ctx, req, func(ev progress.RawEvent) {
			l.emit(ctx, DownloadProgress{Session: session, Progress: ev})
		})
	})
	if r := pc.Recovered(); r != nil {
		err = appErrors.New(appErrors.CodeDownloadFailed, "installer crashed", r.AsError())
	}

	rec := store.DownloadRecord{
		SessionID:  session,
		Version:    req.Version,
		Outcome:    store.OutcomeComplete,
		Bytes:      res.Bytes,
		StartedAt:  started,
		FinishedAt: l.now(),
	}
	if err != nil {
		rec.Outcome = store.OutcomeFailed
		rec.Message = err.Error()
	}
	l.record(rec)

	if err != nil {
		log.Logf("download %s failed: %v", session, err)
		l.emit(ctx, DownloadError{Session: session, Message: downloadMessage(err)})
		return
	}
	log.Logf("download %s complete", session)
	l.emit(ctx, DownloadComplete{Session: session})
}

func downloadMessage(err error) string {
	var appErr appErrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

func (l *Local) record(rec store.DownloadRecord) {
	if l.recorder == nil {
		return
	}
	// The download context may already be canceled; the record still belongs on disk.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.recorder.RecordDownload(ctx, rec); err != nil {
		log.Logf("record download %s: %v", rec.SessionID, err)
	}
}

// LaunchGame starts the game executable with the game directory as its
// working directory. It does not wait for the game to exit.
func (l *Local) LaunchGame(ctx context.Context, m *manifest.Manifest) error {
	if err := ctx.Err(); err != nil {
		return appErrors.New(appErrors.CodeLaunchFailed, err.Error(), err)
	}
	dir := l.installer.GameDir()
	exe := filepath.Join(dir, m.ExecutableName(l.defaultExe))
	info, err := os.Stat(exe)
	if err != nil || info.IsDir() {
		return appErrors.New(appErrors.CodeLaunchFailed, ErrExecutableNotFound.Error(), ErrExecutableNotFound)
	}
	if err := startProcessFunc(exe, dir); err != nil {
		return appErrors.New(appErrors.CodeLaunchFailed, fmt.Sprintf("start game: %v", err), err)
	}
	log.Logf("launched %s", exe)
	return nil
}

func startProcess(path, dir string) error {
	cmd := exec.Command(path)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func (l *Local) emit(ctx context.Context, ev Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
		log.Logf("dropping %T: %v", ev, ctx.Err())
	}
}
