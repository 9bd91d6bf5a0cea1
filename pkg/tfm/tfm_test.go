package tfm

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want Moniker
	}{
		{"net8.0", Moniker{Identifier: "net", Version: "8.0"}},
		{"netstandard2.1", Moniker{Identifier: "netstandard", Version: "2.1"}},
		{"any", Moniker{Identifier: "any"}},
	}
	for _, c := range cases {
		got, err := Parse(c.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty moniker")
	}
}

func TestIsCompatible(t *testing.T) {
	net6 := Moniker{Identifier: "net", Version: "6.0"}
	net8 := Moniker{Identifier: "net", Version: "8.0"}
	netstandard2 := Moniker{Identifier: "netstandard", Version: "2.0"}
	any := Moniker{Identifier: Any}

	cases := []struct {
		name               string
		supported, request Moniker
		want               bool
	}{
		{"equal", net8, net8, true},
		{"older supported runs on newer requested", net6, net8, true},
		{"newer supported does not run on older requested", net8, net6, false},
		{"different identifier", net8, netstandard2, false},
		{"any supported", any, net8, true},
		{"any requested", net8, any, true},
	}
	for _, c := range cases {
		if got := IsCompatible(c.supported, c.request); got != c.want {
			t.Errorf("%s: IsCompatible(%v, %v) = %v, want %v", c.name, c.supported, c.request, got, c.want)
		}
	}
}

func TestAnyCompatibleEmptyRequestMatches(t *testing.T) {
	supported := []Moniker{{Identifier: "net", Version: "8.0"}}
	if !AnyCompatible(supported, nil) {
		t.Fatalf("expected empty requested set to match")
	}
}

func TestParseAllSkipsMalformed(t *testing.T) {
	got := ParseAll([]string{"net8.0", "", "netstandard2.0"})
	if len(got) != 2 {
		t.Fatalf("ParseAll skipped count = %d, want 2", len(got))
	}
}
