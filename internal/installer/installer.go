// Package installer downloads a game package, verifies it, and swaps it into
// the game directory.
//
// The pipeline reports progress through the same raw samples the backend
// pushes to the launcher: Preparing, Downloading, Verifying, Installing.
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"launcher/internal/debug"
	appErrors "launcher/internal/errors"
	"launcher/internal/progress"
	"launcher/internal/version"
)

// Status texts carried by progress samples.
const (
	StatusPreparing   = "Preparing"
	StatusDownloading = "Downloading"
	StatusVerifying   = "Verifying"
	StatusInstalling  = "Installing"
)

const (
	DefaultProgressInterval = 100 * time.Millisecond

	archiveSuffix = ".download"
	stagingSuffix = ".staging"
	backupSuffix  = ".old"
)

var (
	ErrNoPackage        = errors.New("manifest has no game package")
	ErrChecksumMismatch = errors.New("checksum verification failed")
)

var log = debug.Component("installer")

// ProgressFunc receives progress samples. It is called from the installing
// goroutine and must not block for long.
type ProgressFunc func(progress.RawEvent)

// Request describes one install.
type Request struct {
	URL      string
	Checksum string // lowercase hex SHA-256; empty skips verification
	Version  string
}

// Result summarizes a finished install.
type Result struct {
	Bytes int64
}

// Installer owns one game directory.
type Installer struct {
	gameDir          string
	workDir          string
	httpClient       *http.Client
	progressInterval time.Duration
	now              func() time.Time
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		i.httpClient = client
	}
}

// WithWorkDir sets where the archive and staging directory live. It should be
// on the same filesystem as the game directory so the final swap is a rename.
func WithWorkDir(dir string) Option {
	return func(i *Installer) {
		i.workDir = dir
	}
}

// WithProgressInterval throttles transfer samples.
func WithProgressInterval(d time.Duration) Option {
	return func(i *Installer) {
		i.progressInterval = d
	}
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(i *Installer) {
		i.now = now
	}
}

// New creates an installer for gameDir.
func New(gameDir string, opts ...Option) *Installer {
	i := &Installer{
		gameDir:          gameDir,
		workDir:          filepath.Dir(gameDir),
		httpClient:       &http.Client{}, // no timeout for downloads
		progressInterval: DefaultProgressInterval,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GameDir returns the install target.
func (i *Installer) GameDir() string { return i.gameDir }

// Install runs the full pipeline. On failure the previous install is left in
// place and the error carries CodeDownloadFailed or CodeChecksumMismatch.
func (i *Installer) Install(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error) {
	if onProgress == nil {
		onProgress = func(progress.RawEvent) {}
	}
	if strings.TrimSpace(req.URL) == "" {
		return Result{}, appErrors.New(appErrors.CodeDownloadFailed, ErrNoPackage.Error(), ErrNoPackage)
	}
	onProgress(progress.RawEvent{Status: StatusPreparing})

	//nolint:gosec // G301: work directory needs standard permissions
	if err := os.MkdirAll(i.workDir, 0755); err != nil {
		return Result{}, downloadError("prepare work directory", err)
	}
	base := filepath.Base(i.gameDir)
	archivePath := filepath.Join(i.workDir, base+archiveSuffix)
	stagingDir := filepath.Join(i.workDir, base+stagingSuffix)
	defer func() {
		_ = os.Remove(archivePath)
		_ = os.RemoveAll(stagingDir)
	}()

	n, sum, err := i.download(ctx, req.URL, archivePath, onProgress)
	if err != nil {
		return Result{}, err
	}

	onProgress(progress.RawEvent{Downloaded: n, Total: n, Percent: 100, Status: StatusVerifying})
	if req.Checksum != "" && !strings.EqualFold(sum, req.Checksum) {
		msg := fmt.Sprintf("%v: expected %s, got %s", ErrChecksumMismatch, req.Checksum, sum)
		return Result{}, appErrors.New(appErrors.CodeChecksumMismatch, msg, ErrChecksumMismatch)
	}
	if req.Checksum == "" {
		log.Logf("no checksum published for %s, skipping verification", req.Version)
	}

	onProgress(progress.RawEvent{Downloaded: n, Total: n, Percent: 100, Status: StatusInstalling})
	if err := os.RemoveAll(stagingDir); err != nil {
		return Result{}, downloadError("clear staging directory", err)
	}
	//nolint:gosec // G301: staging directory becomes the game directory
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return Result{}, downloadError("create staging directory", err)
	}
	if err := extractArchive(archivePath, stagingDir); err != nil {
		return Result{}, downloadError("extract package", err)
	}
	if err := version.WriteInstalled(stagingDir, req.Version); err != nil {
		return Result{}, downloadError("stamp version", err)
	}
	if err := i.swap(stagingDir); err != nil {
		return Result{}, downloadError("install package", err)
	}
	log.Logf("installed %s (%d bytes) into %s", req.Version, n, i.gameDir)
	return Result{Bytes: n}, nil
}

func downloadError(step string, err error) error {
	if appErrors.CodeOf(err) != appErrors.CodeUnknown {
		return err
	}
	return appErrors.New(appErrors.CodeDownloadFailed, fmt.Sprintf("%s: %v", step, err), err)
}

func (i *Installer) download(ctx context.Context, url, dest string, onProgress ProgressFunc) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", downloadError("create request", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "launcher-installer")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return 0, "", downloadError("download", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, "", appErrors.New(appErrors.CodeDownloadFailed, fmt.Sprintf("download: server returned %s", resp.Status), nil)
	}

	//nolint:gosec // G304: destination is inside the launcher work directory
	out, err := os.Create(dest)
	if err != nil {
		return 0, "", downloadError("create archive", err)
	}

	h := sha256.New()
	cw := &countingWriter{
		total:    resp.ContentLength,
		interval: i.progressInterval,
		now:      i.now,
		emit:     onProgress,
	}
	cw.start()
	_, copyErr := io.Copy(io.MultiWriter(out, h, cw), resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return 0, "", downloadError("download", copyErr)
	}
	if closeErr != nil {
		return 0, "", downloadError("write archive", closeErr)
	}
	if cw.total > 0 && cw.written != cw.total {
		return 0, "", appErrors.New(appErrors.CodeDownloadFailed,
			fmt.Sprintf("download truncated: got %d of %d bytes", cw.written, cw.total), nil)
	}
	cw.flush()
	return cw.written, hexSum(h), nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// swap replaces the game directory with staging, restoring the previous
// install if the final rename fails.
func (i *Installer) swap(staging string) error {
	backup := i.gameDir + backupSuffix
	_ = os.RemoveAll(backup)

	hadPrevious := false
	if _, err := os.Stat(i.gameDir); err == nil {
		if err := os.Rename(i.gameDir, backup); err != nil {
			return fmt.Errorf("move previous install aside: %w", err)
		}
		hadPrevious = true
	}
	//nolint:gosec // G301: game directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(i.gameDir), 0755); err != nil {
		return err
	}
	if err := os.Rename(staging, i.gameDir); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, i.gameDir)
		}
		return fmt.Errorf("move new install into place: %w", err)
	}
	if hadPrevious {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// countingWriter turns bytes written into throttled progress samples.
type countingWriter struct {
	total    int64
	written  int64
	interval time.Duration
	now      func() time.Time
	emit     ProgressFunc

	lastEmit    time.Time
	lastWritten int64
	speed       float64
}

func (c *countingWriter) start() {
	c.lastEmit = c.now()
	c.emit(c.sample())
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.written += int64(len(p))
	now := c.now()
	if elapsed := now.Sub(c.lastEmit); elapsed > 0 && elapsed >= c.interval {
		c.speed = float64(c.written-c.lastWritten) / elapsed.Seconds()
		c.lastEmit = now
		c.lastWritten = c.written
		c.emit(c.sample())
	}
	return len(p), nil
}

func (c *countingWriter) flush() {
	c.emit(c.sample())
}

func (c *countingWriter) sample() progress.RawEvent {
	ev := progress.RawEvent{
		Downloaded:       c.written,
		SpeedBytesPerSec: c.speed,
		Status:           StatusDownloading,
	}
	if c.total > 0 {
		ev.Total = c.total
		ev.Percent = float64(c.written) / float64(c.total) * 100
	}
	return ev
}
