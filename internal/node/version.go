package node

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Version is a Node.js interpreter version triple.
type Version struct {
	Major int
	Minor int
	Patch int
	// Raw is the string the triple was parsed from, kept for display only.
	// It never participates in comparison.
	Raw string
}

// ParseVersion parses strings like "20.6.0" or "v20.6.0" into a Version.
// A missing minor or patch component is treated as zero.
func ParseVersion(s string) (Version, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	if s == "" {
		return Version{}, fmt.Errorf("%w: empty string", ErrBadVersion)
	}

	parts := strings.SplitN(s, ".", 3)
	nums := [3]int{}
	for i, p := range parts {
		// Tolerate trailing qualifiers like "20.6.0-nightly".
		if i == 2 {
			if idx := strings.IndexAny(p, "-+"); idx >= 0 {
				p = p[:idx]
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: %q", ErrBadVersion, raw)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Raw: raw}, nil
}

// MustParseVersion is ParseVersion for known-good literals.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0, or 1 ordering a relative to b by
// (major, minor, patch). Raw is ignored.
func Compare(a, b Version) int {
	if a.Major != b.Major {
		return sign(a.Major - b.Major)
	}
	if a.Minor != b.Minor {
		return sign(a.Minor - b.Minor)
	}
	return sign(a.Patch - b.Patch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Less reports whether v orders strictly before other.
func (v Version) Less(other Version) bool {
	return Compare(v, other) < 0
}

// AtLeast reports whether v satisfies the given minimum.
func (v Version) AtLeast(min Version) bool {
	return Compare(v, min) >= 0
}

// String renders the triple in dotted form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// VersionError reports an interpreter older than the required minimum.
type VersionError struct {
	Found    Version
	Required Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("node %s is older than required %s", e.Found, e.Required)
}

// CheckVersion returns a *VersionError when found is strictly older than
// min. Newer-than-minimum is never an error.
func CheckVersion(found, min Version) error {
	if found.Less(min) {
		return &VersionError{Found: found, Required: min}
	}
	return nil
}

// DetectVersion runs the interpreter at path with --version and parses the
// reported triple.
func DetectVersion(ctx context.Context, path string) (Version, error) {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return Version{}, fmt.Errorf("run %s --version: %w", path, err)
	}
	v, err := ParseVersion(strings.TrimSpace(string(out)))
	if err != nil {
		return Version{}, fmt.Errorf("parse %s --version output: %w", path, err)
	}
	return v, nil
}
