package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the launcher's keyboard shortcuts. Help text is localized,
// so a KeyMap is rebuilt whenever the language changes.
type KeyMap struct {
	Action   key.Binding
	Refresh  key.Binding
	Language key.Binding
	Theme    key.Binding
	Copy     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// NewKeyMap returns the default bindings with help text from tr.
func NewKeyMap(tr *Translator) KeyMap {
	return KeyMap{
		Action: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("⏎", tr.T("key.action", nil)),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "f5"),
			key.WithHelp("r", tr.T("key.refresh", nil)),
		),
		Language: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", tr.T("key.language", nil)),
		),
		Theme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", tr.T("key.theme", nil)),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", tr.T("key.copy", nil)),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", tr.T("key.help", nil)),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", tr.T("key.quit", nil)),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Action, k.Refresh, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Action, k.Refresh},
		{k.Language, k.Theme, k.Copy},
		{k.Help, k.Quit},
	}
}
