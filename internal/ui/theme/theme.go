// Package theme provides the semantic colors of the launcher's terminal UI.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines the semantic colors the launcher view is drawn with.
// All methods return AdaptiveColor for automatic light/dark terminal support.
type Theme interface {
	Primary() lipgloss.AdaptiveColor   // header, enabled action
	Secondary() lipgloss.AdaptiveColor // section headers
	Accent() lipgloss.AdaptiveColor    // news dates, version numbers

	Error() lipgloss.AdaptiveColor   // Error status, error toasts
	Warning() lipgloss.AdaptiveColor // maintenance banner, Offline
	Success() lipgloss.AdaptiveColor // ReadyToPlay, success toasts

	Text() lipgloss.AdaptiveColor
	TextMuted() lipgloss.AdaptiveColor
	TextEmphasized() lipgloss.AdaptiveColor

	Background() lipgloss.AdaptiveColor
	BackgroundSecondary() lipgloss.AdaptiveColor // disabled action, toasts
}
