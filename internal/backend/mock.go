package backend

import (
	"context"
	"errors"
	"sync"

	"launcher/internal/config"
	"launcher/internal/manifest"
)

// ErrMockNotImplemented is returned when a Mock method lacks an override.
var ErrMockNotImplemented = errors.New("backend.Mock: method not implemented")

// Mock is a test double for Backend. Unset Fn fields return
// ErrMockNotImplemented, except Config and SaveConfig which keep an in-memory
// copy so round trips work without setup.
type Mock struct {
	LocalVersionFn  func(context.Context) (string, error)
	ConfigFn        func() (config.LauncherConfig, error)
	SaveConfigFn    func(config.LauncherConfig) error
	ManifestFn      func(context.Context, bool) (*manifest.Manifest, error)
	StartDownloadFn func(context.Context, string, *manifest.Manifest) error
	LaunchGameFn    func(context.Context, *manifest.Manifest) error

	events chan Event

	mu                     sync.Mutex
	stored                 config.LauncherConfig
	LocalVersionCallCount  int
	ConfigCallCount        int
	SaveConfigCallCount    int
	ManifestCallCount      int
	StartDownloadCallCount int
	LaunchGameCallCount    int
	ManifestCallArgs       []bool   // force flag per call
	StartDownloadSessions  []string // session per call
	SavedConfigs           []config.LauncherConfig
}

// NewMock returns a Mock with a buffered event channel.
func NewMock() *Mock {
	return &Mock{
		events: make(chan Event, DefaultEventBuffer),
		stored: config.LauncherConfig{Language: config.DefaultLanguage, CloseBehavior: config.CloseMinimizeToTray},
	}
}

// Push delivers ev as if the backend had emitted it.
func (m *Mock) Push(ev Event) {
	m.events <- ev
}

// Events implements Backend.
func (m *Mock) Events() <-chan Event { return m.events }

// LocalVersion implements Backend.
func (m *Mock) LocalVersion(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.LocalVersionCallCount++
	fn := m.LocalVersionFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return "", ErrMockNotImplemented
}

// Config implements Backend.
func (m *Mock) Config() (config.LauncherConfig, error) {
	m.mu.Lock()
	m.ConfigCallCount++
	fn, stored := m.ConfigFn, m.stored
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return stored, nil
}

// SaveConfig implements Backend.
func (m *Mock) SaveConfig(cfg config.LauncherConfig) error {
	m.mu.Lock()
	m.SaveConfigCallCount++
	m.SavedConfigs = append(m.SavedConfigs, cfg)
	fn := m.SaveConfigFn
	m.mu.Unlock()
	if fn != nil {
		return fn(cfg)
	}
	m.mu.Lock()
	m.stored = cfg
	m.mu.Unlock()
	return nil
}

// Manifest implements Backend.
func (m *Mock) Manifest(ctx context.Context, force bool) (*manifest.Manifest, error) {
	m.mu.Lock()
	m.ManifestCallCount++
	m.ManifestCallArgs = append(m.ManifestCallArgs, force)
	fn := m.ManifestFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, force)
	}
	return nil, ErrMockNotImplemented
}

// StartDownload implements Backend.
func (m *Mock) StartDownload(ctx context.Context, session string, mf *manifest.Manifest) error {
	m.mu.Lock()
	m.StartDownloadCallCount++
	m.StartDownloadSessions = append(m.StartDownloadSessions, session)
	fn := m.StartDownloadFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, session, mf)
	}
	return ErrMockNotImplemented
}

// LaunchGame implements Backend.
func (m *Mock) LaunchGame(ctx context.Context, mf *manifest.Manifest) error {
	m.mu.Lock()
	m.LaunchGameCallCount++
	fn := m.LaunchGameFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, mf)
	}
	return ErrMockNotImplemented
}

// Calls returns a consistent copy of the call counters.
func (m *Mock) Calls() MockCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockCalls{
		LocalVersion:  m.LocalVersionCallCount,
		Config:        m.ConfigCallCount,
		SaveConfig:    m.SaveConfigCallCount,
		Manifest:      m.ManifestCallCount,
		StartDownload: m.StartDownloadCallCount,
		LaunchGame:    m.LaunchGameCallCount,
		ManifestForce: append([]bool(nil), m.ManifestCallArgs...),
		Sessions:      append([]string(nil), m.StartDownloadSessions...),
		SavedConfigs:  append([]config.LauncherConfig(nil), m.SavedConfigs...),
	}
}

// MockCalls is a snapshot of Mock's counters.
type MockCalls struct {
	LocalVersion  int
	Config        int
	SaveConfig    int
	Manifest      int
	StartDownload int
	LaunchGame    int
	ManifestForce []bool
	Sessions      []string
	SavedConfigs  []config.LauncherConfig
}

var _ Backend = (*Mock)(nil)
var _ Backend = (*Local)(nil)
