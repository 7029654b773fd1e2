package semver

import "testing"

// TestContainerUpgradeScenario is spec §8 scenario 1 verbatim.
func TestContainerUpgradeScenario(t *testing.T) {
	current := "17-alpine3.21"
	candidates := []string{"17-alpine3.21", "18-alpine3.22", "15.15-trixie", "18-rc1-bookworm"}

	best, ok := SelectContainerUpgrade(current, candidates, false)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if best.Raw != "18-alpine3.22" {
		t.Fatalf("expected 18-alpine3.22, got %s", best.Raw)
	}

	for _, rejected := range []string{"15.15-trixie", "18-rc1-bookworm"} {
		if best.Raw == rejected {
			t.Fatalf("must not propose %s", rejected)
		}
	}
}

func TestPackageUpgradeScenario(t *testing.T) {
	current := "1.0.0"
	candidates := []string{"1.0.0", "1.1.0a1", "1.0.1"}

	best, ok := SelectPackageUpgrade(current, candidates, false)
	if !ok || best.Raw != "1.0.1" {
		t.Fatalf("expected 1.0.1 without allow-prerelease, got %+v ok=%v", best, ok)
	}

	best, ok = SelectPackageUpgrade(current, candidates, true)
	if !ok || best.Raw != "1.1.0a1" {
		t.Fatalf("expected 1.1.0a1 with allow-prerelease, got %+v ok=%v", best, ok)
	}
}

func TestVariantFamilyPreserved(t *testing.T) {
	cases := map[string]string{
		"alpine3.21": "alpine",
		"slim":       "slim",
		"bookworm":   "bookworm",
		"":           "",
	}
	for in, want := range cases {
		if got := VariantFamily(in); got != want {
			t.Errorf("VariantFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsMetaTag(t *testing.T) {
	for _, tag := range []string{"latest", "alpine", "slim", "main", "master"} {
		if !IsMetaTag(tag) {
			t.Errorf("expected %q to be a meta tag", tag)
		}
	}
	if IsMetaTag("17-alpine3.21") {
		t.Error("17-alpine3.21 must not be a meta tag")
	}
}

func TestNoDowngrade(t *testing.T) {
	_, ok := SelectPackageUpgrade("2.0.0", []string{"1.9.9"}, false)
	if ok {
		t.Fatal("must not propose a downgrade")
	}
}
