package ui

import (
	"time"

	"github.com/dustin/go-humanize"
)

var timeNow = time.Now

// FormatRelativeTime describes how long ago t was ("3 minutes ago"). The zero
// time renders as "".
func FormatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := timeNow()
	if t.After(now) {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
