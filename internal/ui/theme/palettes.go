package theme

import "github.com/charmbracelet/lipgloss"

// palette is a Theme backed by a fixed color table.
type palette struct {
	primary, secondary, accent      lipgloss.AdaptiveColor
	errorC, warning, success        lipgloss.AdaptiveColor
	text, textMuted, textEmphasized lipgloss.AdaptiveColor
	background, bgSecondary         lipgloss.AdaptiveColor
}

func (p palette) Primary() lipgloss.AdaptiveColor             { return p.primary }
func (p palette) Secondary() lipgloss.AdaptiveColor           { return p.secondary }
func (p palette) Accent() lipgloss.AdaptiveColor              { return p.accent }
func (p palette) Error() lipgloss.AdaptiveColor               { return p.errorC }
func (p palette) Warning() lipgloss.AdaptiveColor             { return p.warning }
func (p palette) Success() lipgloss.AdaptiveColor             { return p.success }
func (p palette) Text() lipgloss.AdaptiveColor                { return p.text }
func (p palette) TextMuted() lipgloss.AdaptiveColor           { return p.textMuted }
func (p palette) TextEmphasized() lipgloss.AdaptiveColor      { return p.textEmphasized }
func (p palette) Background() lipgloss.AdaptiveColor          { return p.background }
func (p palette) BackgroundSecondary() lipgloss.AdaptiveColor { return p.bgSecondary }

func c(dark, light string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Dark: dark, Light: light}
}

// https://github.com/catppuccin/catppuccin (mocha / latte)
var catppuccin = palette{
	primary: c("#89b4fa", "#1e66f5"), secondary: c("#cba6f7", "#8839ef"), accent: c("#fab387", "#fe640b"),
	errorC: c("#f38ba8", "#d20f39"), warning: c("#fab387", "#fe640b"), success: c("#a6e3a1", "#40a02b"),
	text: c("#cdd6f4", "#4c4f69"), textMuted: c("#6c7086", "#9ca0b0"), textEmphasized: c("#f5e0dc", "#dc8a78"),
	background: c("#1e1e2e", "#eff1f5"), bgSecondary: c("#313244", "#e6e9ef"),
}

// https://draculatheme.com/contribute
var dracula = palette{
	primary: c("#bd93f9", "#7e57c2"), secondary: c("#8be9fd", "#0097a7"), accent: c("#f1fa8c", "#f9a825"),
	errorC: c("#ff5555", "#d32f2f"), warning: c("#ffb86c", "#ef6c00"), success: c("#50fa7b", "#388e3c"),
	text: c("#f8f8f2", "#212121"), textMuted: c("#6272a4", "#757575"), textEmphasized: c("#f8f8f2", "#000000"),
	background: c("#282a36", "#ffffff"), bgSecondary: c("#44475a", "#e0e0e0"),
}

// https://www.nordtheme.com/docs/colors-and-palettes
var nord = palette{
	primary: c("#88C0D0", "#5E81AC"), secondary: c("#81A1C1", "#81A1C1"), accent: c("#8FBCBB", "#8FBCBB"),
	errorC: c("#BF616A", "#BF616A"), warning: c("#D08770", "#D08770"), success: c("#A3BE8C", "#A3BE8C"),
	text: c("#ECEFF4", "#2E3440"), textMuted: c("#8B95A7", "#3B4252"), textEmphasized: c("#ECEFF4", "#000000"),
	background: c("#2E3440", "#ECEFF4"), bgSecondary: c("#3B4252", "#E5E9F0"),
}

// https://github.com/folke/tokyonight.nvim (moon / day)
var tokyonight = palette{
	primary: c("#82aaff", "#2e7de9"), secondary: c("#c099ff", "#9854f1"), accent: c("#ff966c", "#b15c00"),
	errorC: c("#ff757f", "#f52a65"), warning: c("#ff966c", "#b15c00"), success: c("#c3e88d", "#587539"),
	text: c("#c8d3f5", "#3760bf"), textMuted: c("#636da6", "#848cb5"), textEmphasized: c("#ffc777", "#8c6c3e"),
	background: c("#222436", "#e1e2e7"), bgSecondary: c("#2f334d", "#c8c9ce"),
}

func init() {
	// tokyonight first so it is the default before settings are applied.
	RegisterTheme("tokyonight", tokyonight)
	RegisterTheme("catppuccin", catppuccin)
	RegisterTheme("dracula", dracula)
	RegisterTheme("nord", nord)
}
