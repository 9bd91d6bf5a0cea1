// Package query implements the repository engine's read-only filtering
// passes: plain functions over a catalog.Package snapshot, with no
// reflection and no dependency on the engine or the cache itself so they
// can be tested in isolation.
//
// Grounded on the design note that the source's reflective query-expression
// rewriting (case-insensitive id, normalized-version comparisons) becomes
// two explicit passes here instead of an expression tree: ByID and the
// version comparisons in FindVersion and Updates below.
package query

import (
	"sort"
	"strings"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
	"github.com/glorpus-work/pkgfeed/pkg/tfm"
)

// ByCompatibility drops every SemVer2-only package when compatibility does
// not allow SemVer2.
func ByCompatibility(packages []*catalog.Package, compatibility catalog.CompatibilityProfile) []*catalog.Package {
	if compatibility.AllowsSemVer2() {
		return packages
	}
	out := make([]*catalog.Package, 0, len(packages))
	for _, p := range packages {
		if !p.IsSemVer2 {
			out = append(out, p)
		}
	}
	return out
}

// ByID returns every package whose id matches target case-insensitively.
func ByID(packages []*catalog.Package, id string) []*catalog.Package {
	out := make([]*catalog.Package, 0, len(packages))
	for _, p := range packages {
		if strings.EqualFold(p.ID, id) {
			out = append(out, p)
		}
	}
	return out
}

// FindVersion returns the first package matching id case-insensitively and
// version under build-metadata-agnostic equality, or nil.
func FindVersion(packages []*catalog.Package, id, version string) *catalog.Package {
	v, err := semver.Parse(version)
	if err != nil {
		return nil
	}
	for _, p := range packages {
		if !strings.EqualFold(p.ID, id) {
			continue
		}
		pv, err := semver.Parse(p.Version)
		if err != nil {
			continue
		}
		if pv.Equal(v) {
			return p
		}
	}
	return nil
}

// SearchParams bundles the filters a Search call applies. Search applies
// them in this order: Compatibility, Term, AllowPrerelease, AllowUnlisted,
// then TargetFrameworks.
type SearchParams struct {
	Term             string
	TargetFrameworks []string
	AllowPrerelease  bool
	AllowUnlisted    bool
	Compatibility    catalog.CompatibilityProfile

	// EnableDelisting gates whether the unlisted-filter step runs at all: a
	// feed with delisting disabled never stores unlisted records in the
	// first place, so the step is a no-op either way, but the engine passes
	// this through explicitly rather than relying on that invariant here.
	EnableDelisting bool
	// FrameworkFilteringEnabled gates step 5 (§4.E).
	FrameworkFilteringEnabled bool
}

// tokenMatches reports whether every whitespace-split term in term appears,
// case-insensitively, as a substring of at least one of the haystacks.
func tokenMatches(term string, haystacks ...string) bool {
	fields := strings.Fields(term)
	if len(fields) == 0 {
		return true
	}
	lowerHay := make([]string, len(haystacks))
	for i, h := range haystacks {
		lowerHay[i] = strings.ToLower(h)
	}
	for _, f := range fields {
		lf := strings.ToLower(f)
		matched := false
		for _, h := range lowerHay {
			if strings.Contains(h, lf) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Search applies the five-step filter sequence described in §4.E to
// packages, which must already be the full unfiltered snapshot.
func Search(packages []*catalog.Package, params SearchParams) []*catalog.Package {
	out := ByCompatibility(packages, params.Compatibility)

	filtered := out[:0:0]
	for _, p := range out {
		if !tokenMatches(params.Term, p.ID, p.Tags, p.Description, p.Authors) {
			continue
		}
		filtered = append(filtered, p)
	}
	out = filtered

	if !params.AllowPrerelease {
		filtered = out[:0:0]
		for _, p := range out {
			if !p.HasPrerelease() {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}

	if params.EnableDelisting && !params.AllowUnlisted {
		filtered = out[:0:0]
		for _, p := range out {
			if p.Listed {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}

	if params.FrameworkFilteringEnabled && len(params.TargetFrameworks) > 0 {
		requested := tfm.ParseAll(params.TargetFrameworks)
		filtered = out[:0:0]
		for _, p := range out {
			supported := tfm.ParseAll(p.SupportedTargetFrameworks)
			if tfm.AnyCompatible(supported, requested) {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}

	return out
}

// UpdateQuery is one (id, installed version, optional range) input to
// Updates.
type UpdateQuery struct {
	ID               string
	Version          string
	VersionRange     *semver.Range
	TargetFrameworks []string
}

// UpdatesParams bundles Updates' non-per-package filters.
type UpdatesParams struct {
	IncludePrerelease         bool
	IncludeAllVersions        bool
	TargetFrameworks          []string
	Compatibility             catalog.CompatibilityProfile
	FrameworkFilteringEnabled bool
}

// Updates returns, for each query, every package of that id whose version is
// strictly greater than query.Version and which satisfies query.VersionRange
// (if non-nil), params.IncludePrerelease, params.Compatibility, and the
// target-framework filter. When params.IncludeAllVersions is false, only the
// single highest-versioned match per query survives.
func Updates(packages []*catalog.Package, queries []UpdateQuery, params UpdatesParams) map[string][]*catalog.Package {
	pool := ByCompatibility(packages, params.Compatibility)

	result := make(map[string][]*catalog.Package, len(queries))
	for _, q := range queries {
		installed, err := semver.Parse(q.Version)
		if err != nil {
			result[q.ID] = nil
			continue
		}

		var candidates []*catalog.Package
		for _, p := range ByID(pool, q.ID) {
			pv, err := semver.Parse(p.Version)
			if err != nil {
				continue
			}
			if !pv.GreaterThan(installed) {
				continue
			}
			if !params.IncludePrerelease && p.HasPrerelease() {
				continue
			}
			if q.VersionRange != nil && !q.VersionRange.Satisfies(pv) {
				continue
			}
			frameworks := q.TargetFrameworks
			if len(frameworks) == 0 {
				frameworks = params.TargetFrameworks
			}
			if params.FrameworkFilteringEnabled && len(frameworks) > 0 {
				requested := tfm.ParseAll(frameworks)
				supported := tfm.ParseAll(p.SupportedTargetFrameworks)
				if !tfm.AnyCompatible(supported, requested) {
					continue
				}
			}
			candidates = append(candidates, p)
		}

		sort.Slice(candidates, func(i, j int) bool {
			vi, _ := semver.Parse(candidates[i].Version)
			vj, _ := semver.Parse(candidates[j].Version)
			return vi.LessThan(vj)
		})

		if !params.IncludeAllVersions && len(candidates) > 0 {
			candidates = candidates[len(candidates)-1:]
		}
		result[q.ID] = candidates
	}
	return result
}
