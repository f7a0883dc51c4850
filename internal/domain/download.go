package domain

import "strings"

// DownloadPhase is the sub-state of a running download.
type DownloadPhase int

const (
	PhasePreparing DownloadPhase = iota
	PhaseTransferring
	PhaseVerifying
	PhaseInstalling
)

// String returns the phase name.
func (p DownloadPhase) String() string {
	switch p {
	case PhasePreparing:
		return "Preparing"
	case PhaseTransferring:
		return "Transferring"
	case PhaseVerifying:
		return "Verifying"
	case PhaseInstalling:
		return "Installing"
	default:
		return "Unknown"
	}
}

// ParsePhase maps the backend's free-form status text onto a phase. The
// backend reports "Downloading" for the transfer; unrecognised text is treated
// as a transfer so progress is still shown.
func ParsePhase(raw string) DownloadPhase {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ".")
	switch s {
	case "preparing", "starting", "":
		return PhasePreparing
	case "verifying":
		return PhaseVerifying
	case "installing", "extracting":
		return PhaseInstalling
	default:
		return PhaseTransferring
	}
}

// DownloadState is the derived, display-ready view of one progress sample.
// When TotalBytes > 0 the invariant 0 <= DownloadedBytes <= TotalBytes holds
// and Percent is DownloadedBytes/TotalBytes*100 clamped to [0,100].
type DownloadState struct {
	Phase           DownloadPhase
	DownloadedBytes int64
	TotalBytes      int64
	BytesPerSecond  float64
	Percent         float64

	// Display strings.
	SizeText    string // "1.0 MB / 2.0 MB"; empty when the total is unknown
	SpeedText   string // "1 KB/s"
	PercentText string // "50.0%"
	Detail      string // progress line shown under the bar
}

// PreparingDownload is the state entered on a start-download intent.
func PreparingDownload() DownloadState {
	return DownloadState{
		Phase:       PhasePreparing,
		PercentText: "0.0%",
		Detail:      PhasePreparing.String(),
	}
}
