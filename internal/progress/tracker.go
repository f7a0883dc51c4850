// Package progress turns raw download-progress samples into display-ready
// domain.DownloadState values.
package progress

import (
	"math"
	"strings"

	"launcher/internal/domain"
)

// RawEvent is one progress sample as reported by the backend.
type RawEvent struct {
	Downloaded       int64
	Total            int64
	SpeedBytesPerSec float64
	Percent          float64
	Status           string
}

// Track derives a DownloadState from a single event. It is a pure function:
// the same event always yields an identical state.
func Track(ev RawEvent) domain.DownloadState {
	phase := domain.ParsePhase(ev.Status)

	downloaded := ev.Downloaded
	if downloaded < 0 {
		downloaded = 0
	}
	total := ev.Total
	if total < 0 {
		total = 0
	}
	speed := finite(ev.SpeedBytesPerSec)
	if speed < 0 {
		speed = 0
	}

	var percent float64
	if total > 0 {
		if downloaded > total {
			downloaded = total
		}
		percent = clamp(float64(downloaded)/float64(total)*100, 0, 100)
	} else {
		percent = clamp(finite(ev.Percent), 0, 100)
	}

	ds := domain.DownloadState{
		Phase:           phase,
		DownloadedBytes: downloaded,
		TotalBytes:      total,
		BytesPerSecond:  speed,
		Percent:         percent,
		PercentText:     FormatPercent(percent),
	}
	if total > 0 {
		ds.SizeText = FormatSize(downloaded) + " / " + FormatSize(total)
	} else if downloaded > 0 {
		ds.SizeText = FormatSize(downloaded)
	}
	if speed > 0 {
		ds.SpeedText = FormatSpeed(speed)
	}
	ds.Detail = detail(phase, ds, ev.Status)
	return ds
}

func detail(phase domain.DownloadPhase, ds domain.DownloadState, status string) string {
	if phase == domain.PhaseTransferring && ds.SizeText != "" {
		if ds.SpeedText != "" {
			return ds.SizeText + " - " + ds.SpeedText
		}
		return ds.SizeText
	}
	if s := strings.TrimSpace(status); s != "" {
		return s
	}
	return phase.String()
}

// finite maps NaN and ±Inf to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Tracker applies events for one download session. It carries forward the
// last known total, drops samples whose byte count went backwards, and never
// lets the stored percent regress. The zero value is ready to use.
type Tracker struct {
	last domain.DownloadState
	seen bool
}

// Apply folds ev into the session. ok is false when the event was dropped.
func (t *Tracker) Apply(ev RawEvent) (domain.DownloadState, bool) {
	if t.seen {
		if ev.Downloaded < t.last.DownloadedBytes {
			return t.last, false
		}
		if ev.Total <= 0 && t.last.TotalBytes > 0 {
			ev.Total = t.last.TotalBytes
		}
	}
	ds := Track(ev)
	if t.seen && ds.Percent < t.last.Percent {
		ds.Percent = t.last.Percent
		ds.PercentText = FormatPercent(ds.Percent)
	}
	t.last = ds
	t.seen = true
	return ds, true
}
