package theme

import (
	"slices"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestBundledThemesRegistered(t *testing.T) {
	available := Available()
	for _, name := range []string{"catppuccin", "dracula", "nord", "tokyonight"} {
		if !slices.Contains(available, name) {
			t.Errorf("theme %q not registered; have %v", name, available)
		}
	}
	if !slices.IsSorted(available) {
		t.Errorf("Available() not sorted: %v", available)
	}
}

func TestSetTheme(t *testing.T) {
	defer SetTheme("tokyonight")
	for _, name := range []string{"dracula", "nord"} {
		if !SetTheme(name) {
			t.Fatalf("SetTheme(%q) = false", name)
		}
		if CurrentName() != name {
			t.Errorf("CurrentName() = %q, want %q", CurrentName(), name)
		}
	}
	if SetTheme("nonexistent-theme") {
		t.Error("SetTheme accepted an unknown name")
	}
}

func TestCycleThemeWrapsAround(t *testing.T) {
	defer SetTheme("tokyonight")
	SetTheme("dracula")
	seen := map[string]bool{CurrentName(): true}
	n := len(Available())
	for i := 0; i < n; i++ {
		seen[CycleTheme()] = true
	}
	if len(seen) != n {
		t.Errorf("cycled through %d themes, want %d", len(seen), n)
	}
	if CurrentName() != "dracula" {
		t.Errorf("after a full cycle CurrentName() = %q, want dracula", CurrentName())
	}
}

func TestThemeColorsNotEmpty(t *testing.T) {
	defer SetTheme("tokyonight")
	for _, name := range Available() {
		SetTheme(name)
		th := Current()
		colors := map[string]lipgloss.AdaptiveColor{
			"Primary":             th.Primary(),
			"Secondary":           th.Secondary(),
			"Accent":              th.Accent(),
			"Error":               th.Error(),
			"Warning":             th.Warning(),
			"Success":             th.Success(),
			"Text":                th.Text(),
			"TextMuted":           th.TextMuted(),
			"TextEmphasized":      th.TextEmphasized(),
			"Background":          th.Background(),
			"BackgroundSecondary": th.BackgroundSecondary(),
		}
		for colorName, c := range colors {
			if c.Dark == "" && c.Light == "" {
				t.Errorf("theme %q: %s is empty", name, colorName)
			}
		}
	}
}
