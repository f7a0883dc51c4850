// Package manifest fetches and interprets the remotely published release
// description.
//
// Decoding normalizes legacy shapes so the rest of the launcher only sees the
// canonical form: a single "background" becomes a one-element Backgrounds.
package manifest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	appErrors "launcher/internal/errors"
	"launcher/internal/version"
)

// ServerStatus is the publisher's view of the game servers.
type ServerStatus string

const (
	ServerOnline      ServerStatus = "online"
	ServerMaintenance ServerStatus = "maintenance"
	ServerClosed      ServerStatus = "closed"
)

// NewsItem is one entry of the news feed. Link is empty when absent.
type NewsItem struct {
	Title string
	Date  string
	Image string
	Link  string
}

// Link is a named sidebar URL.
type Link struct {
	Name string
	URL  string
}

// Manifest is the canonical release description. It is replaced wholesale on
// every successful fetch.
type Manifest struct {
	GameName           string
	GameExe            string
	LatestVersion      string
	GameZip            string
	Checksum           string
	ServerStatus       ServerStatus
	MaintenanceMessage string
	Backgrounds        []string
	News               []NewsItem
	SidebarLinks       []Link // publisher order
	Languages          []string
}

type wireNews struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

type wireManifest struct {
	GameName           string                                 `json:"game_name"`
	GameExe            string                                 `json:"game_exe"`
	LatestVersion      string                                 `json:"latest_version"`
	GameZip            string                                 `json:"game_zip"`
	Checksum           string                                 `json:"checksum"`
	ServerStatus       string                                 `json:"server_status"`
	MaintenanceMessage string                                 `json:"maintenance_message"`
	Backgrounds        []string                               `json:"backgrounds"`
	Background         string                                 `json:"background"`
	News               []wireNews                             `json:"news"`
	SidebarLinks       *orderedmap.OrderedMap[string, string] `json:"sidebar_links"`
	Languages          []string                               `json:"languages"`
}

var checksumRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Decode parses, normalizes and validates a manifest body.
func Decode(data []byte) (*Manifest, error) {
	w := wireManifest{SidebarLinks: orderedmap.New[string, string]()}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, appErrors.New(appErrors.CodeManifestInvalid, fmt.Sprintf("malformed manifest: %v", err), err)
	}
	m := normalize(w)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func normalize(w wireManifest) *Manifest {
	m := &Manifest{
		GameName:           strings.TrimSpace(w.GameName),
		GameExe:            strings.TrimSpace(w.GameExe),
		LatestVersion:      strings.TrimSpace(w.LatestVersion),
		GameZip:            strings.TrimSpace(w.GameZip),
		Checksum:           strings.TrimSpace(w.Checksum),
		ServerStatus:       normalizeServerStatus(w.ServerStatus),
		MaintenanceMessage: strings.TrimSpace(w.MaintenanceMessage),
		Backgrounds:        nonEmpty(w.Backgrounds),
		Languages:          nonEmpty(w.Languages),
	}
	if len(m.Backgrounds) == 0 {
		if bg := strings.TrimSpace(w.Background); bg != "" {
			m.Backgrounds = []string{bg}
		}
	}
	for _, n := range w.News {
		item := NewsItem{
			Title: strings.TrimSpace(n.Title),
			Date:  strings.TrimSpace(n.Date),
			Image: strings.TrimSpace(n.Image),
			Link:  strings.TrimSpace(n.Link),
		}
		if item.Title == "" {
			continue
		}
		m.News = append(m.News, item)
	}
	if w.SidebarLinks != nil {
		for pair := w.SidebarLinks.Oldest(); pair != nil; pair = pair.Next() {
			name, url := strings.TrimSpace(pair.Key), strings.TrimSpace(pair.Value)
			if name == "" || url == "" {
				continue
			}
			m.SidebarLinks = append(m.SidebarLinks, Link{Name: name, URL: url})
		}
	}
	return m
}

func normalizeServerStatus(raw string) ServerStatus {
	switch ServerStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ServerMaintenance:
		return ServerMaintenance
	case ServerClosed:
		return ServerClosed
	default:
		return ServerOnline
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the invariants the launcher relies on.
func (m *Manifest) Validate() error {
	if m == nil {
		return appErrors.New(appErrors.CodeManifestInvalid, "manifest is empty", nil)
	}
	if m.LatestVersion == "" {
		return appErrors.New(appErrors.CodeManifestInvalid, "manifest has no latest_version", nil)
	}
	if m.LatestVersion == version.NotInstalled {
		return appErrors.New(appErrors.CodeManifestInvalid,
			fmt.Sprintf("manifest latest_version %q is reserved", version.NotInstalled), nil)
	}
	if m.Checksum != "" && !checksumRegex.MatchString(m.ChecksumHex()) {
		return appErrors.New(appErrors.CodeManifestInvalid,
			fmt.Sprintf("manifest checksum %q is not a sha256 digest", m.Checksum), nil)
	}
	return nil
}

// ChecksumHex returns the expected SHA-256 digest in lowercase hex, with any
// "sha256:" prefix removed.
func (m *Manifest) ChecksumHex() string {
	sum := strings.ToLower(strings.TrimSpace(m.Checksum))
	return strings.TrimPrefix(sum, "sha256:")
}

// ExecutableName returns the game executable, or fallback when unset.
func (m *Manifest) ExecutableName(fallback string) string {
	if m != nil && m.GameExe != "" {
		return m.GameExe
	}
	return fallback
}

// Playable reports whether the servers accept players.
func (m *Manifest) Playable() bool {
	return m != nil && m.ServerStatus == ServerOnline
}
