// Package semver implements the parsed semantic-version representation
// spec §6 and §9 mandate for every dependency-version comparison: no
// lexicographic string comparison anywhere, ever (spec §9 "Dependency
// version parsing", §8 scenarios 1-2 guard this directly). This package
// is deliberately stdlib-only: golang.org/x/mod/semver was evaluated
// first and rejected (DESIGN.md) because it neither parses the
// container-tag variant suffixes (alpine/slim/debian-codename) nor
// accepts versions without a leading "v", both of which the registry
// and container-tag scenarios require.
package semver

import (
	"strconv"
	"strings"
)

// Version is a parsed (major, minor, patch, pre-release, variant)
// tuple (spec §6 "version selection uses a parsed ... structure").
type Version struct {
	Major, Minor, Patch int
	Prerelease          string // e.g. "a1", "rc1", "" if stable
	Variant             string // e.g. "alpine3.21", "trixie", "bookworm", "" if none
	Raw                 string
}

// Stability classifies a Version by its pre-release markers (spec §6
// "Container tags ... Stability is classified by substring markers").
type Stability int

const (
	Stable Stability = iota
	PreRelease
)

func (s Stability) String() string {
	if s == PreRelease {
		return "prerelease"
	}
	return "stable"
}

var stabilityMarkers = []string{"alpha", "beta", "rc", "nightly", "dev", "snapshot"}

// metaTags are non-versioned container tags excluded from ordering
// entirely (spec GLOSSARY "Meta tag").
var metaTags = map[string]bool{
	"latest": true, "alpine": true, "slim": true, "main": true, "master": true,
}

// IsMetaTag reports whether tag is a non-versioned container tag.
func IsMetaTag(tag string) bool {
	return metaTags[strings.ToLower(strings.TrimSpace(tag))]
}

// ParsePackageVersion parses a package-registry version string (no
// variant component): "1.2.3", "1.2.3a1", "v1.2.3-rc1" and similar.
func ParsePackageVersion(raw string) (Version, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return Version{}, false
	}
	numeric, rest := splitNumericCore(s)
	major, minor, patch, ok := parseCore(numeric)
	if !ok {
		return Version{}, false
	}
	return Version{Major: major, Minor: minor, Patch: patch, Prerelease: rest, Raw: raw}, true
}

// ParseContainerTag decomposes a container image tag into its version
// tuple, base-family variant, and stability (spec §6 "Container tags
// are decomposed into (version_tuple, variant, stability)").
func ParseContainerTag(tag string) (Version, bool) {
	s := strings.TrimSpace(tag)
	if s == "" || IsMetaTag(s) {
		return Version{}, false
	}

	segments := strings.Split(s, "-")
	numeric, rest := splitNumericCore(segments[0])
	major, minor, patch, ok := parseCore(numeric)
	if !ok {
		return Version{}, false
	}

	// Remaining hyphen-separated segments are each either a prerelease
	// marker ("rc1", "beta2") or a base-image variant component
	// ("alpine3.21", "bookworm") — scanned independently because a tag
	// like "18-rc1-bookworm" carries both (spec §8 scenario 1 fixture).
	var prereleaseParts, variantParts []string
	if rest != "" {
		if looksLikePrerelease(rest) {
			prereleaseParts = append(prereleaseParts, rest)
		} else {
			variantParts = append(variantParts, rest)
		}
	}
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		if looksLikePrerelease(seg) {
			prereleaseParts = append(prereleaseParts, seg)
		} else {
			variantParts = append(variantParts, seg)
		}
	}

	return Version{
		Major: major, Minor: minor, Patch: patch,
		Prerelease: strings.Join(prereleaseParts, "-"),
		Variant:    strings.Join(variantParts, "-"),
		Raw:        tag,
	}, true
}

// VariantFamily returns the base family of a variant string so two
// variants can be compared as "same family" (spec §8: "parse(R).variant
// preserves parse(C).variant's base family (alpine->alpine, slim->slim,
// debian-codename preserved)").
func VariantFamily(variant string) string {
	v := strings.ToLower(variant)
	switch {
	case strings.HasPrefix(v, "alpine"):
		return "alpine"
	case strings.HasPrefix(v, "slim"):
		return "slim"
	case v == "":
		return ""
	default:
		// Debian codenames (bookworm, bullseye, trixie, ...) and any
		// other bare suffix are their own family: preserved verbatim.
		return v
	}
}

// Stability classifies v as PreRelease whenever its Prerelease field is
// non-empty, and Stable otherwise.
func (v Version) Stability() Stability {
	if v.Prerelease != "" {
		return PreRelease
	}
	return Stable
}

// Tuple returns the (major, minor, patch) tuple for ordering comparisons.
func (v Version) Tuple() [3]int { return [3]int{v.Major, v.Minor, v.Patch} }

// Compare returns -1, 0, or 1 comparing v against other by version
// tuple only (pre-release/variant are compared separately by callers
// per spec §8's compound invariant).
func (v Version) Compare(other Version) int {
	a, b := v.Tuple(), other.Tuple()
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// GTE reports whether v >= other by version tuple.
func (v Version) GTE(other Version) bool { return v.Compare(other) >= 0 }

func splitNumericCore(s string) (numeric, rest string) {
	i := 0
	dots := 0
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && dots < 2 {
			dots++
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}

func parseCore(numeric string) (major, minor, patch int, ok bool) {
	if numeric == "" {
		return 0, 0, 0, false
	}
	fields := strings.SplitN(numeric, ".", 3)
	vals := [3]int{}
	for i, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], true
}

// SelectPackageUpgrade implements the `deps --check-latest` policy for
// plain package-registry versions (spec §6 "reject downgrades, reject
// pre-release tags" unless opted in, §8 scenario 2). current is the
// currently pinned version string; candidates are every version the
// registry listed. Returns the best candidate and true, or false if no
// candidate beats current under the policy.
func SelectPackageUpgrade(current string, candidates []string, allowPrerelease bool) (Version, bool) {
	cur, ok := ParsePackageVersion(current)
	if !ok {
		return Version{}, false
	}
	var best Version
	found := false
	for _, c := range candidates {
		v, ok := ParsePackageVersion(c)
		if !ok {
			continue
		}
		if !allowPrerelease && v.Stability() == PreRelease {
			continue
		}
		if v.Compare(cur) <= 0 {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

// SelectContainerUpgrade implements the `deps --check-latest` policy
// for container image tags (spec §6, §8 scenario 1): reject downgrades,
// reject pre-release tags unless allowPrerelease, and preserve the
// current tag's base-variant family (alpine stays alpine, a Debian
// codename is preserved verbatim).
func SelectContainerUpgrade(current string, candidates []string, allowPrerelease bool) (Version, bool) {
	cur, ok := ParseContainerTag(current)
	if !ok {
		return Version{}, false
	}
	curFamily := VariantFamily(cur.Variant)

	var best Version
	found := false
	for _, c := range candidates {
		v, ok := ParseContainerTag(c)
		if !ok {
			continue
		}
		if !allowPrerelease && v.Stability() == PreRelease {
			continue
		}
		if VariantFamily(v.Variant) != curFamily {
			continue
		}
		if v.Compare(cur) <= 0 {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}

func looksLikePrerelease(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range stabilityMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}
