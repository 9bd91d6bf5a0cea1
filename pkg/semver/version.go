// Package semver implements the version semantics this feed's packages are
// ordered by: a release component sequence, an optional dot-separated
// prerelease identifier sequence, and optional build metadata that never
// affects ordering or equality.
//
// This is a hand-written comparer rather than a thin wrapper over
// hashicorp/go-version (the teacher's own version dependency): go-version
// normalizes away exactly the distinctions this spec requires preserving —
// it does not expose "does this version have multi-identifier prerelease or
// build metadata" (the SemVer2-ness test) nor the "keep the original string,
// including build metadata, for round-tripping" requirement. The range/
// constraint side of the problem (an opaque "does this version satisfy that
// range" predicate) has no such conflict, so Range in this package wraps
// go-version's Constraints directly — see range.go.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier is one dot-separated component of a prerelease tag.
type Identifier struct {
	raw      string
	isNumber bool
	number   int64
}

func newIdentifier(raw string) Identifier {
	if raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Identifier{raw: raw, isNumber: true, number: n}
		}
	}
	return Identifier{raw: raw}
}

func (id Identifier) String() string { return id.raw }

// compareIdentifier implements the SemVer2 precedence rules: numeric
// identifiers compare numerically and always have lower precedence than
// alphanumeric ones, which compare lexically and case-insensitively.
func compareIdentifier(a, b Identifier) int {
	switch {
	case a.isNumber && b.isNumber:
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		default:
			return 0
		}
	case a.isNumber && !b.isNumber:
		return -1
	case !a.isNumber && b.isNumber:
		return 1
	default:
		// NuGet treats prerelease labels as case-insensitive, so "beta2" and
		// "BETA2" must compare equal here.
		return strings.Compare(strings.ToLower(a.raw), strings.ToLower(b.raw))
	}
}

// Version is a parsed, comparable version. The original string is retained
// verbatim (including build metadata) so callers can round-trip it.
type Version struct {
	original   string
	release    []int64
	prerelease []Identifier
	build      string
}

// Parse parses a version string of the shape
// release["-"prerelease]["+"build], where release is one or more
// dot-separated non-negative integers and prerelease is one or more
// dot-separated alphanumeric identifiers.
func Parse(s string) (*Version, error) {
	original := s
	if s == "" {
		return nil, fmt.Errorf("semver: empty version")
	}

	build := ""
	if i := strings.IndexByte(s, '+'); i >= 0 {
		build = s[i+1:]
		s = s[:i]
	}

	prereleaseRaw := ""
	if i := strings.IndexByte(s, '-'); i >= 0 {
		prereleaseRaw = s[i+1:]
		s = s[:i]
	}

	if s == "" {
		return nil, fmt.Errorf("semver: %q has no release component", original)
	}

	parts := strings.Split(s, ".")
	release := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("semver: %q has invalid release component %q", original, p)
		}
		release[i] = n
	}

	var prerelease []Identifier
	if prereleaseRaw != "" {
		for _, p := range strings.Split(prereleaseRaw, ".") {
			if p == "" {
				return nil, fmt.Errorf("semver: %q has an empty prerelease identifier", original)
			}
			prerelease = append(prerelease, newIdentifier(p))
		}
	}

	return &Version{
		original:   original,
		release:    release,
		prerelease: prerelease,
		build:      build,
	}, nil
}

// MustParse is Parse but panics on error; useful for table-driven tests and
// static data.
func MustParse(s string) *Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original version string, build metadata included.
func (v *Version) String() string { return v.original }

// HasPrerelease reports whether v carries a prerelease identifier sequence.
func (v *Version) HasPrerelease() bool { return len(v.prerelease) > 0 }

// IsSemVer2 reports whether v requires SemVer2 (multi-identifier prerelease,
// or non-empty build metadata).
func (v *Version) IsSemVer2() bool {
	return len(v.prerelease) > 1 || v.build != ""
}

// Normalized returns the normalized form: build metadata dropped, and
// trailing zero release components beyond the third dropped.
func (v *Version) Normalized() string {
	release := v.release
	for len(release) > 3 && release[len(release)-1] == 0 {
		release = release[:len(release)-1]
	}

	parts := make([]string, len(release))
	for i, n := range release {
		parts[i] = strconv.FormatInt(n, 10)
	}
	out := strings.Join(parts, ".")

	if len(v.prerelease) > 0 {
		ids := make([]string, len(v.prerelease))
		for i, id := range v.prerelease {
			ids[i] = id.String()
		}
		out += "-" + strings.Join(ids, ".")
	}
	return out
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Build metadata never participates.
func (v *Version) Compare(other *Version) int {
	if c := compareRelease(v.release, other.release); c != 0 {
		return c
	}
	return comparePrerelease(v.prerelease, other.prerelease)
}

// Equal reports whether v and other compare equal (release and prerelease
// equal; build metadata ignored).
func (v *Version) Equal(other *Version) bool {
	return v.Compare(other) == 0
}

// GreaterThan reports whether v sorts strictly after other.
func (v *Version) GreaterThan(other *Version) bool { return v.Compare(other) > 0 }

// LessThan reports whether v sorts strictly before other.
func (v *Version) LessThan(other *Version) bool { return v.Compare(other) < 0 }

func compareRelease(a, b []int64) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int64
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// comparePrerelease implements SemVer precedence: a version with no
// prerelease has higher precedence than one with a prerelease, and two
// prerelease sequences compare identifier-by-identifier, with a shorter
// sequence having lower precedence when it is a strict prefix of the other.
func comparePrerelease(a, b []Identifier) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
