// Package version answers "what is installed?" for the launcher.
//
// The Oracle never fails: any error from the underlying query, and any blank
// answer, is reported as NotInstalled. Callers treat "cannot tell" and
// "not installed" the same way.
package version

import (
	"context"
	"strings"

	"launcher/internal/debug"
)

// NotInstalled is the sentinel for "no game on disk". It is never a valid
// published version.
const NotInstalled = "0.0.0"

var log = debug.Component("version")

// QueryFunc asks the backend for the installed version string.
type QueryFunc func(ctx context.Context) (string, error)

// Oracle wraps a QueryFunc and applies the sentinel policy.
type Oracle struct {
	query QueryFunc
}

// NewOracle returns an Oracle backed by query. A nil query always reports
// NotInstalled.
func NewOracle(query QueryFunc) *Oracle {
	return &Oracle{query: query}
}

// LocalVersion returns the installed version or NotInstalled.
func (o *Oracle) LocalVersion(ctx context.Context) string {
	if o == nil || o.query == nil {
		return NotInstalled
	}
	v, err := o.query(ctx)
	if err != nil {
		log.Logf("local version query failed, assuming not installed: %v", err)
		return NotInstalled
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return NotInstalled
	}
	return v
}
