package progress

import (
	"fmt"
	"math"
	"strconv"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// toFixed rounds half away from zero, matching how the launcher has always
// rendered sizes. fmt's %.Nf rounds half to even and would disagree on ties.
func toFixed(x float64, decimals int) string {
	scale := math.Pow(10, float64(decimals))
	return strconv.FormatFloat(math.Round(x*scale)/scale, 'f', decimals, 64)
}

// FormatSize renders a byte count: GB with 2 decimals, MB with 1, KB with 0,
// plain bytes below 1 KiB.
func FormatSize(bytes int64) string {
	b := float64(bytes)
	switch {
	case bytes >= gib:
		return toFixed(b/gib, 2) + " GB"
	case bytes >= mib:
		return toFixed(b/mib, 1) + " MB"
	case bytes >= kib:
		return toFixed(b/kib, 0) + " KB"
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed renders a transfer rate: MB/s with 1 decimal, KB/s with 0,
// whole B/s below 1 KiB/s.
func FormatSpeed(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= mib:
		return toFixed(bytesPerSec/mib, 1) + " MB/s"
	case bytesPerSec >= kib:
		return toFixed(bytesPerSec/kib, 0) + " KB/s"
	default:
		return toFixed(bytesPerSec, 0) + " B/s"
	}
}

// FormatPercent renders p with exactly one decimal place.
func FormatPercent(p float64) string {
	return toFixed(p, 1) + "%"
}
