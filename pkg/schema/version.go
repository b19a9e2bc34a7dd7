package schema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SemanticVersion is a parsed semantic version. Build metadata is carried for display
// only and never affects ordering.
type SemanticVersion struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease string
	Build      string
}

// ParseVersion parses a semantic version. A leading "v" and missing minor or patch
// components are accepted.
func ParseVersion(s string) (SemanticVersion, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return SemanticVersion{}, fmt.Errorf("invalid semantic version %q: %w", s, err)
	}
	return SemanticVersion{
		Major:      v.Major(),
		Minor:      v.Minor(),
		Patch:      v.Patch(),
		Prerelease: v.Prerelease(),
		Build:      v.Metadata(),
	}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) SemanticVersion {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v SemanticVersion) semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, v.Prerelease, v.Build)
}

// Compare returns -1, 0 or 1. A prerelease orders before the release it precedes.
func (v SemanticVersion) Compare(other SemanticVersion) int {
	return v.semver().Compare(other.semver())
}

// Equal reports whether v and other are the same version for ordering purposes.
func (v SemanticVersion) Equal(other SemanticVersion) bool {
	return v.Compare(other) == 0
}

// Less reports whether v orders before other.
func (v SemanticVersion) Less(other SemanticVersion) bool {
	return v.Compare(other) < 0
}

// IsZero reports whether v is the zero value.
func (v SemanticVersion) IsZero() bool {
	return v == SemanticVersion{}
}

func (v SemanticVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (v SemanticVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *SemanticVersion) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
