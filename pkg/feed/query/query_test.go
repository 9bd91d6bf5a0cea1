package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
)

func pkg(id, version string, listed bool) *catalog.Package {
	v := semver.MustParse(version)
	return &catalog.Package{
		ID:                id,
		Version:           version,
		NormalizedVersion: v.Normalized(),
		IsSemVer2:         v.IsSemVer2(),
		Listed:            listed,
		Tags:              "",
		Description:       "",
		Authors:           "",
	}
}

func TestByCompatibilityDropsSemVer2WhenNotAllowed(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Foo", "1.0.0", true),
		pkg("Bar", "1.0.0+build.1", true),
	}

	out := ByCompatibility(packages, catalog.CompatibilityDefault)
	require.Len(t, out, 1)
	assert.Equal(t, "Foo", out[0].ID)

	out = ByCompatibility(packages, catalog.CompatibilityMax)
	assert.Len(t, out, 2)
}

func TestByIDIsCaseInsensitive(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Newtonsoft.Json", "1.0.0", true),
		pkg("newtonsoft.json", "2.0.0", true),
		pkg("Other", "1.0.0", true),
	}

	out := ByID(packages, "NEWTONSOFT.JSON")
	assert.Len(t, out, 2)
}

func TestFindVersionIgnoresBuildMetadata(t *testing.T) {
	packages := []*catalog.Package{pkg("Foo", "1.0.0+build.5", true)}

	found := FindVersion(packages, "foo", "1.0.0+build.9999")
	require.NotNil(t, found)
	assert.Equal(t, "1.0.0+build.5", found.Version)

	assert.Nil(t, FindVersion(packages, "foo", "2.0.0"))
	assert.Nil(t, FindVersion(packages, "foo", "not-a-version"))
}

func TestSearchTokenMatchesAcrossFields(t *testing.T) {
	a := pkg("Contoso.Widgets", "1.0.0", true)
	a.Tags = "widget factory"
	b := pkg("Fabrikam.Gadgets", "1.0.0", true)
	b.Description = "a gadget library"

	packages := []*catalog.Package{a, b}

	out := Search(packages, SearchParams{Term: "widget"})
	require.Len(t, out, 1)
	assert.Equal(t, "Contoso.Widgets", out[0].ID)

	out = Search(packages, SearchParams{Term: "gadget library"})
	require.Len(t, out, 1)
	assert.Equal(t, "Fabrikam.Gadgets", out[0].ID)

	out = Search(packages, SearchParams{Term: ""})
	assert.Len(t, out, 2)
}

func TestSearchExcludesPrereleaseByDefault(t *testing.T) {
	stable := pkg("Foo", "1.0.0", true)
	pre := pkg("Foo", "2.0.0-beta", true)
	packages := []*catalog.Package{stable, pre}

	out := Search(packages, SearchParams{})
	require.Len(t, out, 1)
	assert.Equal(t, "1.0.0", out[0].Version)

	out = Search(packages, SearchParams{AllowPrerelease: true})
	assert.Len(t, out, 2)
}

func TestSearchExcludesUnlistedOnlyWhenDelistingEnabled(t *testing.T) {
	listed := pkg("Foo", "1.0.0", true)
	unlisted := pkg("Foo", "2.0.0", false)
	packages := []*catalog.Package{listed, unlisted}

	out := Search(packages, SearchParams{EnableDelisting: true})
	require.Len(t, out, 1)
	assert.True(t, out[0].Listed)

	out = Search(packages, SearchParams{EnableDelisting: true, AllowUnlisted: true})
	assert.Len(t, out, 2)

	out = Search(packages, SearchParams{EnableDelisting: false})
	assert.Len(t, out, 2)
}

func TestSearchFiltersByTargetFrameworkWhenEnabled(t *testing.T) {
	net8 := pkg("Foo", "1.0.0", true)
	net8.SupportedTargetFrameworks = []string{"net8.0"}
	net6 := pkg("Foo", "2.0.0", true)
	net6.SupportedTargetFrameworks = []string{"net6.0"}
	packages := []*catalog.Package{net8, net6}

	out := Search(packages, SearchParams{
		FrameworkFilteringEnabled: true,
		TargetFrameworks:          []string{"net6.0"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "2.0.0", out[0].Version)

	out = Search(packages, SearchParams{
		FrameworkFilteringEnabled: false,
		TargetFrameworks:          []string{"net8.0"},
	})
	assert.Len(t, out, 2)
}

func TestUpdatesReturnsOnlyStrictlyGreaterVersions(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Foo", "1.0.0", true),
		pkg("Foo", "1.5.0", true),
		pkg("Foo", "2.0.0", true),
	}

	result := Updates(packages, []UpdateQuery{{ID: "Foo", Version: "1.5.0"}}, UpdatesParams{})
	require.Len(t, result["Foo"], 1)
	assert.Equal(t, "2.0.0", result["Foo"][0].Version)
}

func TestUpdatesIncludeAllVersionsReturnsEveryNewerVersion(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Foo", "1.0.0", true),
		pkg("Foo", "1.5.0", true),
		pkg("Foo", "2.0.0", true),
	}

	result := Updates(packages, []UpdateQuery{{ID: "Foo", Version: "1.0.0"}}, UpdatesParams{IncludeAllVersions: true})
	require.Len(t, result["Foo"], 2)
	assert.Equal(t, "1.5.0", result["Foo"][0].Version)
	assert.Equal(t, "2.0.0", result["Foo"][1].Version)
}

func TestUpdatesExcludesPrereleaseUnlessRequested(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Foo", "1.0.0", true),
		pkg("Foo", "2.0.0-beta", true),
	}

	result := Updates(packages, []UpdateQuery{{ID: "Foo", Version: "1.0.0"}}, UpdatesParams{})
	assert.Empty(t, result["Foo"])

	result = Updates(packages, []UpdateQuery{{ID: "Foo", Version: "1.0.0"}}, UpdatesParams{IncludePrerelease: true})
	require.Len(t, result["Foo"], 1)
	assert.Equal(t, "2.0.0-beta", result["Foo"][0].Version)
}

func TestUpdatesAppliesVersionRange(t *testing.T) {
	packages := []*catalog.Package{
		pkg("Foo", "1.0.0", true),
		pkg("Foo", "1.5.0", true),
		pkg("Foo", "2.0.0", true),
	}

	r, err := semver.ParseRange("[1.0.0,1.9.0]")
	require.NoError(t, err)

	result := Updates(packages, []UpdateQuery{{ID: "Foo", Version: "0.9.0", VersionRange: r}}, UpdatesParams{IncludeAllVersions: true})
	require.Len(t, result["Foo"], 2)
	assert.Equal(t, "1.0.0", result["Foo"][0].Version)
	assert.Equal(t, "1.5.0", result["Foo"][1].Version)
}

func TestUpdatesFrameworkFilterPrefersPerQueryFrameworks(t *testing.T) {
	net8 := pkg("Foo", "2.0.0", true)
	net8.SupportedTargetFrameworks = []string{"net8.0"}
	packages := []*catalog.Package{pkg("Foo", "1.0.0", true), net8}

	result := Updates(packages, []UpdateQuery{{
		ID:               "Foo",
		Version:          "1.0.0",
		TargetFrameworks: []string{"net6.0"},
	}}, UpdatesParams{FrameworkFilteringEnabled: true, TargetFrameworks: []string{"net8.0"}})
	assert.Empty(t, result["Foo"])
}

func TestUpdatesUnknownInstalledVersionYieldsNilSlice(t *testing.T) {
	packages := []*catalog.Package{pkg("Foo", "1.0.0", true)}

	result := Updates(packages, []UpdateQuery{{ID: "Foo", Version: "not-a-version"}}, UpdatesParams{})
	assert.Nil(t, result["Foo"])
}
