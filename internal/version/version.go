// Package version implements the ordering of SPK package version strings.
//
// A version has the form FEATURE or FEATURE-BUILD where FEATURE is a dotted
// list of non-negative integers and BUILD a non-negative integer. Versions
// compare by FEATURE first (shorter lists are zero padded), then by BUILD,
// with a missing BUILD ordering before any present one.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// noBuild is the build number used for ordering when none was given.
const noBuild = -1

var featurePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// Version is a parsed SPK version
type Version struct {
	feature *goversion.Version
	build   int
	raw     string
}

// Parse parses a version literal such as "7.0", "2.0-5" or "1.2.3-1204".
func Parse(literal string) (*Version, error) {
	featureLiteral, buildLiteral, hasBuild := strings.Cut(literal, "-")

	if !featurePattern.MatchString(featureLiteral) {
		return nil, fmt.Errorf("invalid feature version %q", featureLiteral)
	}
	feature, err := goversion.NewVersion(featureLiteral)
	if err != nil {
		return nil, fmt.Errorf("invalid feature version %q: %w", featureLiteral, err)
	}

	v := &Version{feature: feature, build: noBuild, raw: literal}
	if !hasBuild {
		return v, nil
	}

	build, err := strconv.Atoi(buildLiteral)
	if err != nil {
		return nil, fmt.Errorf("invalid build number %q: %w", buildLiteral, err)
	}
	if build < 0 {
		return nil, fmt.Errorf("invalid build number %q: negative", buildLiteral)
	}
	v.build = build
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(literal string) *Version {
	v, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 when v orders before, equal to or after other.
// A nil version orders before any non-nil one.
func (v *Version) Compare(other *Version) int {
	switch {
	case v == nil && other == nil:
		return 0
	case v == nil:
		return -1
	case other == nil:
		return 1
	}

	if r := v.feature.Compare(other.feature); r != 0 {
		return r
	}
	switch {
	case v.build < other.build:
		return -1
	case v.build > other.build:
		return 1
	default:
		return 0
	}
}

// Equal reports whether both versions compare as equal.
func (v *Version) Equal(other *Version) bool { return v.Compare(other) == 0 }

// LessThan reports whether v orders before other.
func (v *Version) LessThan(other *Version) bool { return v.Compare(other) < 0 }

// GreaterThan reports whether v orders after other.
func (v *Version) GreaterThan(other *Version) bool { return v.Compare(other) > 0 }

// Major returns the first FEATURE component
func (v *Version) Major() int {
	segments := v.feature.Segments()
	if len(segments) == 0 {
		return 0
	}
	return segments[0]
}

// Build returns the build number and whether one was present
func (v *Version) Build() (int, bool) {
	return v.build, v.build != noBuild
}

// String returns the literal the version was parsed from
func (v *Version) String() string {
	return v.raw
}
