package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"launcher/internal/domain"
	"launcher/internal/manifest"
	"launcher/internal/version"
)

func (m *App) View() string {
	if m.quitting {
		return ""
	}
	width := m.contentWidth()
	sections := []string{m.renderHeader()}

	if banner := m.renderServerBanner(width); banner != "" {
		sections = append(sections, banner)
	}
	sections = append(sections, m.renderStatus(), m.renderAction())
	if m.snap.Action.ShowProgress {
		sections = append(sections, m.renderProgress())
	}
	if line := m.renderVersions(); line != "" {
		sections = append(sections, styleMuted().Render(line))
	}
	if news := m.renderNews(width); news != "" {
		sections = append(sections, news)
	}
	if links := m.renderLinks(width); links != "" {
		sections = append(sections, links)
	}
	if toast := m.renderToast(); toast != "" {
		sections = append(sections, toast)
	}
	sections = append(sections, m.help.View(m.keys))

	body := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return lipgloss.NewStyle().Margin(1, contentMargin).Render(truncateLines(body, width))
}

func (m *App) renderHeader() string {
	title := "Launcher"
	if m.snap.Manifest != nil && strings.TrimSpace(m.snap.Manifest.GameName) != "" {
		title = m.snap.Manifest.GameName
	}
	if m.version != "" {
		title += " " + styleMuted().Render(m.version)
	}
	return styleHeader().Render(title)
}

func (m *App) renderStatus() string {
	if !m.haveSnap {
		return styleStatus().Render(m.spinner.View() + " " + m.tr.T("status.checking", nil))
	}
	latest := ""
	if m.snap.Manifest != nil {
		latest = m.snap.Manifest.LatestVersion
	}
	data := map[string]any{"Version": latest}

	var text string
	switch m.snap.Status.Kind() {
	case domain.KindChecking:
		text = m.tr.T("status.checking", nil)
	case domain.KindOffline:
		text = m.tr.T("status.offline", nil)
	case domain.KindMissing:
		text = m.tr.T("status.missing", nil)
	case domain.KindUpdateAvailable:
		text = m.tr.T("status.update", data)
	case domain.KindReadyToPlay:
		text = m.tr.T("status.ready", nil)
	case domain.KindDownloading:
		text = m.tr.T("status.downloading", data)
	case domain.KindError:
		text = m.tr.T("status.error", nil)
	}
	if m.spinning {
		text = m.spinner.View() + " " + text
	}
	return styleStatus().Render(text)
}

func (m *App) renderAction() string {
	label := m.actionLabel()
	switch {
	case m.snap.Status.Is(domain.KindError):
		return styleActionError().Render(label)
	case m.snap.Action.Enabled:
		return styleActionEnabled().Render(label)
	default:
		return styleActionDisabled().Render(label)
	}
}

func (m *App) renderProgress() string {
	ds, ok := m.snap.Status.Download()
	if !ok {
		return ""
	}
	bar := m.bar.ViewAs(ds.Percent / 100)
	line := fmt.Sprintf("%s %s", bar, ds.PercentText)
	if ds.Detail != "" {
		line += "\n" + styleMuted().Render(ds.Detail)
	}
	return line
}

func (m *App) renderVersions() string {
	if !m.haveSnap {
		return ""
	}
	var parts []string
	if m.snap.LocalVersion == "" || m.snap.LocalVersion == version.NotInstalled {
		parts = append(parts, m.tr.T("version.none", nil))
	} else {
		parts = append(parts, m.tr.T("version.installed", map[string]any{"Version": m.snap.LocalVersion}))
	}
	if m.snap.Manifest != nil && m.snap.Manifest.LatestVersion != "" {
		parts = append(parts, m.tr.T("version.latest", map[string]any{"Version": m.snap.Manifest.LatestVersion}))
	}
	if ago := m.checkedAgo(); ago != "" {
		parts = append(parts, ago)
	}
	return strings.Join(parts, " · ")
}

func (m *App) renderServerBanner(width int) string {
	mf := m.snap.Manifest
	if mf == nil || mf.Playable() {
		return ""
	}
	var title string
	switch mf.ServerStatus {
	case manifest.ServerMaintenance:
		title = m.tr.T("server.maintenance", nil)
	case manifest.ServerClosed:
		title = m.tr.T("server.closed", nil)
	default:
		return ""
	}
	content := title
	if msg := strings.TrimSpace(mf.MaintenanceMessage); msg != "" && m.renderMD != nil {
		content += "\n" + m.renderMD(msg)
	}
	return styleBanner().Width(width - 2).Render(content)
}

func (m *App) renderNews(width int) string {
	mf := m.snap.Manifest
	if mf == nil || len(mf.News) == 0 {
		return ""
	}
	lines := []string{styleSectionHeader().Render(m.tr.T("news", nil))}
	for i, item := range mf.News {
		if i == maxNewsItems {
			break
		}
		prefix := ""
		if item.Date != "" {
			prefix = styleNewsDate().Render(item.Date) + "  "
		}
		avail := width - lipgloss.Width(prefix)
		lines = append(lines, prefix+truncateToWidth(item.Title, avail))
	}
	return strings.Join(lines, "\n")
}

// renderLinks lists the publisher's sidebar links in the order they were
// published.
func (m *App) renderLinks(width int) string {
	mf := m.snap.Manifest
	if mf == nil || len(mf.SidebarLinks) == 0 {
		return ""
	}
	nameWidth := 0
	for _, l := range mf.SidebarLinks {
		nameWidth = max(nameWidth, lipgloss.Width(l.Name))
	}
	lines := []string{styleSectionHeader().Render(m.tr.T("links", nil))}
	for _, l := range mf.SidebarLinks {
		name := l.Name + strings.Repeat(" ", nameWidth-lipgloss.Width(l.Name))
		lines = append(lines, truncateToWidth(name+"  "+styleMuted().Render(l.URL), width))
	}
	return strings.Join(lines, "\n")
}

func (m *App) renderToast() string {
	switch {
	case m.copied:
		return styleSuccessToast().Render(m.tr.T("copied", nil))
	case m.noticeText != "":
		return styleErrorToast().Render(m.noticeText)
	default:
		return ""
	}
}
