package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"launcher/internal/launcher"
)

const (
	noticeDuration = 6 * time.Second
	copiedDuration = 2 * time.Second
	clockInterval  = 30 * time.Second
)

type snapshotMsg launcher.Snapshot

type subscriptionClosedMsg struct{}

// waitForSnapshot blocks on the subscription; Update re-arms it after every
// delivery.
func waitForSnapshot(ch <-chan launcher.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

type noticeExpiredMsg struct{ seq uint64 }

func scheduleNoticeExpiry(seq uint64) tea.Cmd {
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

type copiedExpiredMsg struct{}

func scheduleCopiedExpiry() tea.Cmd {
	return tea.Tick(copiedDuration, func(time.Time) tea.Msg {
		return copiedExpiredMsg{}
	})
}

// clockTickMsg redraws relative timestamps.
type clockTickMsg struct{}

func scheduleClockTick() tea.Cmd {
	return tea.Tick(clockInterval, func(time.Time) tea.Msg { return clockTickMsg{} })
}
