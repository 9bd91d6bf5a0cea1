package semver

import "testing"

func TestParseAndCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.0.0", 1},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.0.0", "1.0.0-beta", 1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha", 1},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-beta.2", "1.0.0-beta.11", -1},
		{"1.0.0+build1", "1.0.0+build2", 0},
	}
	for _, c := range cases {
		a, err := Parse(c.a)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.a, err)
		}
		b, err := Parse(c.b)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.b, err)
		}
		if got := a.Compare(b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

// TestExistsIsCaseAndBuildMetadataAgnostic covers scenario S4: looking up
// "nuget.versioning" "3.5.0-BETA2" must find a stored "3.5.0-beta2+git.abc"
// package, since casing and build metadata never affect equality.
func TestExistsIsCaseAndBuildMetadataAgnostic(t *testing.T) {
	stored := MustParse("3.5.0-beta2+git.abc")
	lookup := MustParse("3.5.0-BETA2")
	if !stored.Equal(lookup) {
		t.Fatalf("expected %q and %q to compare equal (case-insensitive prerelease)", stored, lookup)
	}

	a := MustParse("3.5.0-beta2+git.abc")
	b := MustParse("3.5.0-beta2+somethingelse")
	if !a.Equal(b) {
		t.Fatalf("expected build metadata to be ignored in Equal")
	}
}

// TestIsSemVer2Classification covers scenario S6.
func TestIsSemVer2Classification(t *testing.T) {
	cases := []struct {
		version string
		want    bool
	}{
		{"1.0", false},
		{"1.0-beta", false},
		{"1.0-beta.1", true},
		{"1.0-beta+foo", true},
		{"1.0-beta", false},
	}
	for _, c := range cases {
		v, err := Parse(c.version)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.version, err)
		}
		if got := v.IsSemVer2(); got != c.want {
			t.Errorf("IsSemVer2(%q) = %v, want %v", c.version, got, c.want)
		}
	}
}

func TestNormalizedDropsBuildMetadataAndTrailingZeros(t *testing.T) {
	cases := []struct {
		version string
		want    string
	}{
		{"1.0.0.0", "1.0.0"},
		{"1.0.0.0.0", "1.0.0"},
		{"1.2.3.0+build", "1.2.3"},
		{"1.2.3.4.0", "1.2.3.4"},
		{"1.0.0-beta+build", "1.0.0-beta"},
	}
	for _, c := range cases {
		v, err := Parse(c.version)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.version, err)
		}
		if got := v.Normalized(); got != c.want {
			t.Errorf("Normalized(%q) = %q, want %q", c.version, got, c.want)
		}
	}
}

func TestStringRoundTripsOriginal(t *testing.T) {
	v := MustParse("1.0.0-beta+build.5")
	if v.String() != "1.0.0-beta+build.5" {
		t.Fatalf("String() = %q, want original round-trip", v.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "-beta", "1.x.0", "1..0"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestRangeSatisfies(t *testing.T) {
	cases := []struct {
		rng  string
		ver  string
		want bool
	}{
		{"", "1.0.0", true},
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.0.1", false},
		{"[1.0.0,2.0.0)", "1.5.0", true},
		{"[1.0.0,2.0.0)", "2.0.0", false},
		{"[1.0.0,2.0.0]", "2.0.0", true},
		{"(1.0.0,]", "1.0.0", false},
		{"(1.0.0,]", "1.0.1", true},
		{"[1.0.0]", "1.0.0", true},
		{"[1.0.0]", "1.0.1", false},
	}
	for _, c := range cases {
		r, err := ParseRange(c.rng)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", c.rng, err)
		}
		v := MustParse(c.ver)
		if got := r.Satisfies(v); got != c.want {
			t.Errorf("ParseRange(%q).Satisfies(%q) = %v, want %v", c.rng, c.ver, got, c.want)
		}
	}
}
