package domain

import "fmt"

// Kind enumerates the launcher states. The set is closed; every switch over
// Kind in this module is exhaustive.
type Kind int

const (
	KindChecking Kind = iota
	KindOffline
	KindMissing
	KindUpdateAvailable
	KindReadyToPlay
	KindDownloading
	KindError
)

var kindNames = map[Kind]string{
	KindChecking:        "Checking",
	KindOffline:         "Offline",
	KindMissing:         "Missing",
	KindUpdateAvailable: "UpdateAvailable",
	KindReadyToPlay:     "ReadyToPlay",
	KindDownloading:     "Downloading",
	KindError:           "Error",
}

// String returns the state name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Status is the launcher's single observable state. Only Downloading carries
// a DownloadState and only Error carries a message; the constructors below are
// the only way to build one, so a Status is always fully formed.
type Status struct {
	kind     Kind
	download DownloadState
	message  string
}

func Checking() Status        { return Status{kind: KindChecking} }
func Offline() Status         { return Status{kind: KindOffline} }
func Missing() Status         { return Status{kind: KindMissing} }
func UpdateAvailable() Status { return Status{kind: KindUpdateAvailable} }
func ReadyToPlay() Status     { return Status{kind: KindReadyToPlay} }

// Downloading builds the in-progress state for ds.
func Downloading(ds DownloadState) Status {
	return Status{kind: KindDownloading, download: ds}
}

// Failed builds the Error state. The message is shown verbatim to the user.
func Failed(message string) Status {
	return Status{kind: KindError, message: message}
}

// Kind returns the active state.
func (s Status) Kind() Kind { return s.kind }

// Download returns the download payload; ok is false outside Downloading.
func (s Status) Download() (DownloadState, bool) {
	if s.kind != KindDownloading {
		return DownloadState{}, false
	}
	return s.download, true
}

// Message returns the error detail; empty outside Error.
func (s Status) Message() string {
	if s.kind != KindError {
		return ""
	}
	return s.message
}

// Is reports whether the status is of kind k.
func (s Status) Is(k Kind) bool { return s.kind == k }

// String renders the status for logs, e.g. "Downloading(Transferring 50.0%)".
func (s Status) String() string {
	switch s.kind {
	case KindDownloading:
		return fmt.Sprintf("Downloading(%s %s)", s.download.Phase, s.download.PercentText)
	case KindError:
		return fmt.Sprintf("Error(%s)", s.message)
	default:
		return s.kind.String()
	}
}

var allowedTransitions = map[Kind]map[Kind]struct{}{
	KindChecking: {
		KindMissing:         {},
		KindUpdateAvailable: {},
		KindReadyToPlay:     {},
		KindOffline:         {},
		KindError:           {},
	},
	KindOffline: {
		KindChecking: {},
	},
	KindError: {
		KindChecking: {},
	},
	KindMissing: {
		KindDownloading: {},
		KindChecking:    {},
	},
	KindUpdateAvailable: {
		KindDownloading: {},
		KindChecking:    {},
	},
	KindReadyToPlay: {
		KindChecking: {},
	},
	KindDownloading: {
		KindReadyToPlay:     {},
		KindUpdateAvailable: {},
	},
}

// CanTransitionTo verifies whether moving from s to target is allowed.
// Staying in the same kind is always allowed.
func (s Status) CanTransitionTo(target Status) error {
	if !s.kind.Valid() {
		return invalidStatusError(s.kind)
	}
	if !target.kind.Valid() {
		return invalidStatusError(target.kind)
	}
	if s.kind == target.kind {
		return nil
	}
	if next, ok := allowedTransitions[s.kind]; ok {
		if _, allowed := next[target.kind]; allowed {
			return nil
		}
	}
	return invalidTransitionError(s.kind, target.kind)
}
