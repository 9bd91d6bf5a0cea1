package semver

import (
	"strings"

	hcversion "github.com/hashicorp/go-version"
)

// Range is a version range such as "[1.0.0,2.0.0)" or a bare version such
// as "1.0.0" (which matches that version exactly), expressed the way a
// DependencySet's VersionRange is expressed. It wraps hashicorp/go-version's Constraints for the actual
// satisfaction predicate; this package only owns the interval-notation
// translation NuGet-style ranges use but go-version doesn't understand
// natively.
type Range struct {
	raw         string
	constraints hcversion.Constraints
}

// ParseRange parses a version range. An empty string means "any version".
// Interval notation ("[1.0.0,2.0.0)", "(1.0.0,]", "1.0.0") is translated to
// the comma-separated comparator expression go-version's constraint parser
// accepts.
func ParseRange(raw string) (*Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Range{raw: raw}, nil
	}

	expr, err := translateInterval(raw)
	if err != nil {
		return nil, err
	}

	constraints, err := hcversion.NewConstraint(expr)
	if err != nil {
		return nil, err
	}
	return &Range{raw: raw, constraints: constraints}, nil
}

// translateInterval converts "[1.0,2.0)", "(1.0,]", "1.0" into a
// comma-separated list of go-version comparator clauses.
func translateInterval(raw string) (string, error) {
	if raw[0] != '[' && raw[0] != '(' {
		return "=" + raw, nil
	}

	minInclusive := raw[0] == '['
	maxInclusive := raw[len(raw)-1] == ']'
	inner := raw[1 : len(raw)-1]

	parts := strings.SplitN(inner, ",", 2)
	minStr := strings.TrimSpace(parts[0])
	maxStr := ""
	if len(parts) == 2 {
		maxStr = strings.TrimSpace(parts[1])
	}

	var clauses []string
	if minStr != "" {
		if minInclusive {
			clauses = append(clauses, ">="+minStr)
		} else {
			clauses = append(clauses, ">"+minStr)
		}
	}
	if len(parts) == 1 {
		// No comma: an exact single-version interval, e.g. "[1.0.0]".
		if maxStr == "" && minStr != "" {
			return "=" + minStr, nil
		}
	}
	if maxStr != "" {
		if maxInclusive {
			clauses = append(clauses, "<="+maxStr)
		} else {
			clauses = append(clauses, "<"+maxStr)
		}
	}
	if len(clauses) == 0 {
		return "", errEmptyRange(raw)
	}
	return strings.Join(clauses, ","), nil
}

type rangeError string

func (e rangeError) Error() string { return string(e) }

func errEmptyRange(raw string) error {
	return rangeError("semver: range " + raw + " has no bound")
}

// ReferencesSemVer2 reports whether any version bound named in a dependency
// range is itself a SemVer2 version (multi-identifier prerelease, or build
// metadata). NuGet classifies the package carrying that dependency as
// SemVer2 too, even when the package's own version isn't.
func ReferencesSemVer2(raw string) bool {
	for _, bound := range rangeBounds(raw) {
		if v, err := Parse(bound); err == nil && v.IsSemVer2() {
			return true
		}
	}
	return false
}

// rangeBounds extracts the bound version strings named by a range
// expression, in the same interval notation translateInterval accepts.
func rangeBounds(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw[0] != '[' && raw[0] != '(' {
		return []string{raw}
	}
	if len(raw) < 2 {
		return nil
	}

	inner := raw[1 : len(raw)-1]
	parts := strings.SplitN(inner, ",", 2)

	var bounds []string
	if v := strings.TrimSpace(parts[0]); v != "" {
		bounds = append(bounds, v)
	}
	if len(parts) == 2 {
		if v := strings.TrimSpace(parts[1]); v != "" {
			bounds = append(bounds, v)
		}
	}
	return bounds
}

// Satisfies reports whether v falls within the range. An empty (unparsed,
// "any version") range always satisfies.
func (r *Range) Satisfies(v *Version) bool {
	if r.constraints == nil {
		return true
	}
	hv, err := hcversion.NewVersion(v.Normalized())
	if err != nil {
		return false
	}
	return r.constraints.Check(hv)
}

// String returns the original range expression.
func (r *Range) String() string { return r.raw }
