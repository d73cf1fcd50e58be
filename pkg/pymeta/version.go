// SPDX-License-Identifier: MPL-2.0

package pymeta

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

var (
	prereleasePattern = regexp.MustCompile(`^([a-zA-Z]+)\.?(\d*)$`)
	localSeparators   = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

// InvalidVersionError is returned when a crate version is not valid semver.
type InvalidVersionError struct {
	Version string
	Reason  string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Version, e.Reason)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// ConvertVersion turns a semantic version ("1.2.0-alpha.1+abc") into the
// equivalent PEP 440 version ("1.2.0a1+abc").
//
// Pre-release labels alpha/a, beta/b, rc/c/pre/preview and dev are mapped onto
// the PEP 440 segments; build metadata becomes the local version label.
func ConvertVersion(version string) (string, error) {
	v := "v" + version
	if !semver.IsValid(v) {
		return "", &InvalidVersionError{Version: version, Reason: "not a semantic version"}
	}

	build := semver.Build(v)
	pre := semver.Prerelease(v)
	core := strings.TrimPrefix(strings.TrimSuffix(strings.TrimSuffix(v, build), pre), "v")

	var sb strings.Builder
	sb.WriteString(core)

	if pre != "" {
		segment, err := convertPrerelease(strings.TrimPrefix(pre, "-"))
		if err != nil {
			return "", &InvalidVersionError{Version: version, Reason: err.Error()}
		}
		sb.WriteString(segment)
	}

	if build != "" {
		local := localSeparators.ReplaceAllString(strings.TrimPrefix(build, "+"), ".")
		local = strings.Trim(local, ".")
		if local != "" {
			sb.WriteString("+")
			sb.WriteString(strings.ToLower(local))
		}
	}

	return sb.String(), nil
}

func convertPrerelease(pre string) (string, error) {
	m := prereleasePattern.FindStringSubmatch(pre)
	if m == nil {
		return "", fmt.Errorf("unsupported pre-release label %q", pre)
	}
	number := m[2]
	if number == "" {
		number = "0"
	}
	switch strings.ToLower(m[1]) {
	case "alpha", "a":
		return "a" + number, nil
	case "beta", "b":
		return "b" + number, nil
	case "rc", "c", "pre", "preview":
		return "rc" + number, nil
	case "dev":
		return ".dev" + number, nil
	default:
		return "", fmt.Errorf("unsupported pre-release label %q", pre)
	}
}
