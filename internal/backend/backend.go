// Package backend is the update backend the launcher core talks to: it reports
// the installed version, serves the manifest, runs downloads, launches the
// game, persists settings, and pushes events back to the core.
package backend

import (
	"context"
	"errors"

	"launcher/internal/config"
	"launcher/internal/debug"
	"launcher/internal/manifest"
	"launcher/internal/progress"
)

var log = debug.Component("backend")

// ErrDownloadInProgress is returned by StartDownload while another download runs.
var ErrDownloadInProgress = errors.New("a download is already running")

// Backend is everything the core needs from the outside world. Calls may fail;
// download outcomes arrive on Events, never as a StartDownload result.
type Backend interface {
	LocalVersion(ctx context.Context) (string, error)
	Config() (config.LauncherConfig, error)
	SaveConfig(cfg config.LauncherConfig) error
	Manifest(ctx context.Context, force bool) (*manifest.Manifest, error)
	StartDownload(ctx context.Context, session string, m *manifest.Manifest) error
	LaunchGame(ctx context.Context, m *manifest.Manifest) error
	Events() <-chan Event
}

// Event is a backend-pushed notification.
type Event interface {
	isEvent()
}

// DownloadProgress is one progress sample for a download session.
type DownloadProgress struct {
	Session  string
	Progress progress.RawEvent
}

// DownloadComplete reports that the session installed successfully.
type DownloadComplete struct {
	Session string
}

// DownloadError reports that the session failed. Message is user facing.
type DownloadError struct {
	Session string
	Message string
}

// ManifestUpdated signals that the published manifest changed.
type ManifestUpdated struct{}

// ChangeLanguage asks the launcher to switch its display language.
type ChangeLanguage struct {
	Lang string
}

func (DownloadProgress) isEvent() {}
func (DownloadComplete) isEvent() {}
func (DownloadError) isEvent()    {}
func (ManifestUpdated) isEvent()  {}
func (ChangeLanguage) isEvent()   {}
