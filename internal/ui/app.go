// Package ui is the terminal front end of the launcher. It renders orchestrator
// snapshots and turns key presses into orchestrator intents; it holds no
// launcher state of its own.
package ui

import (
	"errors"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"launcher/internal/config"
	"launcher/internal/debug"
	"launcher/internal/domain"
	"launcher/internal/launcher"
	"launcher/internal/ui/theme"
)

var log = debug.Component("ui")

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

const (
	defaultWidth  = 80
	maxBarWidth   = 60
	maxNewsItems  = 5
	contentMargin = 2
)

// Controller is the part of the orchestrator the UI drives.
type Controller interface {
	Subscribe() (<-chan launcher.Snapshot, func())
	RequestDownload()
	RequestLaunch()
	RequestRefresh()
	SetLanguage(lang string)
}

// Config configures the UI application.
type Config struct {
	Controller    Controller
	Version       string // launcher build shown in the header
	MarkdownStyle string // glamour style for the maintenance message; "plain" disables
}

// App implements the Bubble Tea model for the launcher.
type App struct {
	ctrl        Controller
	snaps       <-chan launcher.Snapshot
	unsubscribe func()

	snap     launcher.Snapshot
	haveSnap bool

	tr   *Translator
	keys KeyMap
	help help.Model

	spinner  spinner.Model
	spinning bool
	bar      progress.Model

	width         int
	height        int
	version       string
	markdownStyle string
	renderMD      func(string) string

	noticeSeq    uint64 // last notice shown
	noticeText   string
	copied       bool
	launchesSeen int
	quitting     bool
}

// NewApp subscribes to the controller and returns a model ready for
// tea.NewProgram.
func NewApp(cfg Config) (*App, error) {
	if cfg.Controller == nil {
		return nil, errors.New("ui: controller is required")
	}
	tr, err := NewTranslator(config.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	snaps, unsubscribe := cfg.Controller.Subscribe()

	app := &App{
		ctrl:          cfg.Controller,
		snaps:         snaps,
		unsubscribe:   unsubscribe,
		tr:            tr,
		keys:          NewKeyMap(tr),
		help:          help.New(),
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:           progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:         defaultWidth,
		version:       cfg.Version,
		markdownStyle: cfg.MarkdownStyle,
	}
	app.resize(defaultWidth, 0)
	return app, nil
}

func (m *App) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.snaps), scheduleClockTick())
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		cmds := []tea.Cmd{waitForSnapshot(m.snaps)}
		if cmd := m.applySnapshot(launcher.Snapshot(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case subscriptionClosedMsg:
		log.Logf("snapshot subscription closed")
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.spinning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.noticeText = ""
		}
		return m, nil

	case copiedExpiredMsg:
		m.copied = false
		return m, nil

	case clockTickMsg:
		return m, scheduleClockTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()

	case key.Matches(msg, m.keys.Action):
		if !m.haveSnap || !m.snap.Action.Enabled {
			return m, nil
		}
		switch m.snap.Action.Intent {
		case domain.IntentDownload:
			m.ctrl.RequestDownload()
		case domain.IntentLaunch:
			m.ctrl.RequestLaunch()
		}

	case key.Matches(msg, m.keys.Refresh):
		m.ctrl.RequestRefresh()

	case key.Matches(msg, m.keys.Language):
		m.ctrl.SetLanguage(NextLanguage(m.tr.Language()))

	case key.Matches(msg, m.keys.Theme):
		log.Logf("theme %s", theme.CycleTheme())

	case key.Matches(msg, m.keys.Copy):
		text := m.copyText()
		if text == "" {
			return m, nil
		}
		if err := clipboardWrite(text); err != nil {
			log.Logf("copy to clipboard: %v", err)
			return m, nil
		}
		m.copied = true
		return m, scheduleCopiedExpiry()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *App) quit() tea.Cmd {
	m.quitting = true
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

func (m *App) applySnapshot(snap launcher.Snapshot) tea.Cmd {
	m.snap = snap
	m.haveSnap = true
	var cmds []tea.Cmd

	if lang := config.NormalizeLanguage(snap.Config.Language); lang != m.tr.Language() {
		if tr, err := NewTranslator(lang); err == nil {
			m.tr = tr
			m.keys = NewKeyMap(tr)
		} else {
			log.Logf("switch language to %s: %v", lang, err)
		}
	}

	if snap.Notice.Seq > m.noticeSeq {
		m.noticeSeq = snap.Notice.Seq
		m.noticeText = snap.Notice.Text
		cmds = append(cmds, scheduleNoticeExpiry(snap.Notice.Seq))
	}

	busy := snap.Status.Is(domain.KindChecking) || snap.Status.Is(domain.KindDownloading)
	if busy && !m.spinning {
		cmds = append(cmds, m.spinner.Tick)
	}
	m.spinning = busy

	if snap.Launches > m.launchesSeen {
		m.launchesSeen = snap.Launches
		if snap.Config.CloseBehavior == config.CloseExit {
			log.Logf("game launched; closing launcher")
			cmds = append(cmds, m.quit())
		}
	}
	return tea.Batch(cmds...)
}

// copyText is the message worth sharing when asking for help: the visible
// notice, else the error status message.
func (m *App) copyText() string {
	if m.noticeText != "" {
		return m.noticeText
	}
	if m.snap.Status.Is(domain.KindError) {
		return m.snap.Status.Message()
	}
	return ""
}

func (m *App) resize(width, height int) {
	if width <= 0 {
		width = defaultWidth
	}
	m.width = width
	m.height = height
	m.help.Width = width
	m.bar.Width = min(m.contentWidth(), maxBarWidth)
	m.renderMD = buildMarkdownRenderer(m.markdownStyle, m.contentWidth())
}

func (m *App) contentWidth() int {
	return max(m.width-2*contentMargin, 10)
}

func (m *App) actionLabel() string {
	action := m.snap.Action
	if strings.TrimSpace(action.Override) != "" {
		return action.Override
	}
	return m.tr.T(action.Label.Key(), nil)
}

var _ tea.Model = (*App)(nil)

// checkedAgo is refreshed by clockTickMsg redraws.
func (m *App) checkedAgo() string {
	if m.snap.CheckedAt.IsZero() {
		return ""
	}
	return m.tr.T("checked", map[string]any{"Ago": FormatRelativeTime(m.snap.CheckedAt)})
}
