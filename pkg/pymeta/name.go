// SPDX-License-Identifier: MPL-2.0

package pymeta

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is the sentinel error wrapped by InvalidNameError.
var ErrInvalidName = errors.New("invalid distribution name")

var (
	separatorRun = regexp.MustCompile(`[-_.]+`)
	validName    = regexp.MustCompile(`(?i)^([a-z0-9]|[a-z0-9][a-z0-9._-]*[a-z0-9])$`)
)

// InvalidNameError is returned when a distribution name cannot be used
// in an archive filename.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid distribution name %q: must start and end with a letter or digit and contain only letters, digits, '.', '_' or '-'", e.Name)
}

// Unwrap returns ErrInvalidName for errors.Is() compatibility.
func (e *InvalidNameError) Unwrap() error { return ErrInvalidName }

// ValidateName checks a distribution name against the allowed character set.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// NormalizeName lowercases the name and collapses runs of '-', '_' and '.'
// into a single '-'.
func NormalizeName(name string) string {
	return strings.ToLower(separatorRun.ReplaceAllString(name, "-"))
}

// EscapeName returns the form used in wheel and sdist filenames: the
// normalized name with '-' replaced by '_'.
func EscapeName(name string) string {
	return strings.ReplaceAll(NormalizeName(name), "-", "_")
}

// DistInfoDir returns the "<name>-<version>.dist-info" directory name.
func DistInfoDir(name, version string) string {
	return EscapeName(name) + "-" + EscapeVersion(version) + ".dist-info"
}

// DataDir returns the "<name>-<version>.data" directory name.
func DataDir(name, version string) string {
	return EscapeName(name) + "-" + EscapeVersion(version) + ".data"
}

// EscapeVersion replaces '-' with '_' so the version cannot be confused with
// a filename separator.
func EscapeVersion(version string) string {
	return strings.ReplaceAll(version, "-", "_")
}
