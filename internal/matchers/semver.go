package matchers

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

type version struct {
	v *semver.Version
	// precision is the number of explicit major/minor/patch components.
	precision int
}

// parseVersion accepts major[.minor[.patch]][-prerelease][+build].
func parseVersion(s string) (version, bool) {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return version{}, false
	}
	core := s
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		core = s[:i]
	}
	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return version{}, false
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return version{}, false
		}
	}

	v, err := semver.NewVersion(s)
	if err != nil {
		return version{}, false
	}
	return version{v: v, precision: len(parts)}, true
}

func (v version) isPrerelease() bool { return v.v.Prerelease() != "" }

// CompareVersions orders attribute relative to target: -1 if it is lower,
// 0 if equal, 1 if higher. Components the target omits are wildcards, so
// target "3" equals attribute "3.2.5". A release sorts above any of its
// pre-releases. ok is false when either side is not a valid version.
func CompareVersions(target, attribute string) (result int, ok bool) {
	t, ok := parseVersion(target)
	if !ok {
		return 0, false
	}
	a, ok := parseVersion(attribute)
	if !ok {
		return 0, false
	}

	tParts := [3]uint64{t.v.Major(), t.v.Minor(), t.v.Patch()}
	aParts := [3]uint64{a.v.Major(), a.v.Minor(), a.v.Patch()}
	for i := 0; i < t.precision; i++ {
		if i >= a.precision {
			return -1, true
		}
		switch {
		case aParts[i] < tParts[i]:
			return -1, true
		case aParts[i] > tParts[i]:
			return 1, true
		}
	}

	if t.precision < 3 {
		if a.isPrerelease() && !t.isPrerelease() {
			return -1, true
		}
		return 0, true
	}
	return a.v.Compare(t.v), true
}
