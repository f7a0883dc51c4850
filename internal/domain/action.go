package domain

// Label identifies the localized text of the primary action button.
type Label int

const (
	LabelChecking Label = iota
	LabelOffline
	LabelDownload
	LabelUpdate
	LabelPlay
	LabelInstalling
)

// Key returns the string-table key for the label.
func (l Label) Key() string {
	switch l {
	case LabelOffline:
		return "offline"
	case LabelDownload:
		return "download"
	case LabelUpdate:
		return "update"
	case LabelPlay:
		return "play"
	case LabelInstalling:
		return "installing"
	default:
		return "checking"
	}
}

// Intent is what pressing the primary action requests.
type Intent int

const (
	IntentNone Intent = iota
	IntentDownload
	IntentLaunch
)

// Action describes the primary button for a status.
type Action struct {
	Enabled      bool
	Label        Label
	Override     string // replaces the localized label when non-empty
	ShowProgress bool
	Intent       Intent
}

// ActionFor derives the primary action from a status.
func ActionFor(s Status) Action {
	switch s.Kind() {
	case KindOffline:
		return Action{Label: LabelOffline}
	case KindMissing:
		return Action{Enabled: true, Label: LabelDownload, Intent: IntentDownload}
	case KindUpdateAvailable:
		return Action{Enabled: true, Label: LabelUpdate, Intent: IntentDownload}
	case KindReadyToPlay:
		return Action{Enabled: true, Label: LabelPlay, Intent: IntentLaunch}
	case KindDownloading:
		return Action{Label: LabelInstalling, ShowProgress: true}
	case KindError:
		return Action{Label: LabelChecking, Override: s.Message()}
	case KindChecking:
		return Action{Label: LabelChecking}
	default:
		return Action{Label: LabelChecking}
	}
}
