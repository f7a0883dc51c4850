package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Semver is a parsed game version. Published versions are free-form strings;
// Semver is only used to describe the direction of a change in logs and never
// decides whether an update is needed.
type Semver struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Raw        string
}

// Minor and patch are optional so "1.3" and "v2" parse too.
var semverRegex = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z.-]+))?$`)

// ParseSemver parses s, accepting an optional "v" prefix.
func ParseSemver(s string) (Semver, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Semver{}, fmt.Errorf("empty version string")
	}
	m := semverRegex.FindStringSubmatch(s)
	if m == nil {
		return Semver{}, fmt.Errorf("invalid version format: %s", s)
	}
	out := Semver{Prerelease: m[4], Raw: s}
	out.Major, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		out.Minor, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		out.Patch, _ = strconv.Atoi(m[3])
	}
	return out, nil
}

// String renders the normalized form without a "v" prefix.
func (v Semver) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		return base + "-" + v.Prerelease
	}
	return base
}

// Compare returns -1, 0 or 1. A release sorts after any of its prereleases;
// prerelease identifiers compare numerically when both are numbers.
func (v Semver) Compare(other Semver) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	return comparePrerelease(v.Prerelease, other.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func comparePrerelease(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aErr := strconv.Atoi(as[i])
		bi, bErr := strconv.Atoi(bs[i])
		if aErr == nil && bErr == nil {
			if c := compareInt(ai, bi); c != 0 {
				return c
			}
			continue
		}
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(as), len(bs))
}

// Change classifies a move from one installed version to another.
type Change string

const (
	ChangeInstall   Change = "install"
	ChangeUpgrade   Change = "upgrade"
	ChangeRollback  Change = "rollback"
	ChangeReinstall Change = "reinstall"
	ChangeUnknown   Change = "unknown"
)

// Classify describes going from local to latest. Non-semver strings yield
// ChangeUnknown; a rollback is still an update.
func Classify(local, latest string) Change {
	if local == NotInstalled {
		return ChangeInstall
	}
	from, err := ParseSemver(local)
	if err != nil {
		return ChangeUnknown
	}
	to, err := ParseSemver(latest)
	if err != nil {
		return ChangeUnknown
	}
	switch from.Compare(to) {
	case -1:
		return ChangeUpgrade
	case 1:
		return ChangeRollback
	default:
		return ChangeReinstall
	}
}
