// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SdistGeneratorCargo lists sdist files the way `cargo package` would.
	SdistGeneratorCargo SdistGenerator = "cargo"
	// SdistGeneratorGit lists the files tracked by the enclosing git repository.
	SdistGeneratorGit SdistGenerator = "git"

	// CompressionGzip writes .tar.gz source archives.
	CompressionGzip SdistCompression = "gzip"
	// CompressionXz writes .tar.xz source archives.
	CompressionXz SdistCompression = "xz"

	// CompatibilityAuto selects the strictest policy every artifact satisfies.
	CompatibilityAuto Compatibility = "auto"
	// CompatibilityOff emits the plain linux platform tag.
	CompatibilityOff Compatibility = "off"

	// LogLevelDebug logs every staged file.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs state transitions and outputs.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs recoverable conditions only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	minCompressionLevel = -1
	maxCompressionLevel = 9
)

var (
	// ErrInvalidSdistGenerator is returned when a SdistGenerator value is not recognized.
	ErrInvalidSdistGenerator = errors.New("invalid sdist generator")
	// ErrInvalidSdistCompression is returned when a SdistCompression value is not recognized.
	ErrInvalidSdistCompression = errors.New("invalid sdist compression")
	// ErrInvalidCompressionLevel is returned when a CompressionLevel is out of range.
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	// ErrInvalidCompatibility is returned when a Compatibility value is blank.
	ErrInvalidCompatibility = errors.New("invalid compatibility")
	// ErrInvalidSourceDateEpoch is returned when a SourceDateEpoch is not unix seconds.
	ErrInvalidSourceDateEpoch = errors.New("invalid source date epoch")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidOutDir is returned when an OutDir value is blank.
	ErrInvalidOutDir = errors.New("invalid output directory")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// SdistGenerator selects how source distribution files are listed.
	SdistGenerator string

	// InvalidSdistGeneratorError is returned when a SdistGenerator value is not recognized.
	// It wraps ErrInvalidSdistGenerator for errors.Is() compatibility.
	InvalidSdistGeneratorError struct {
		Value SdistGenerator
	}

	// SdistCompression is the outer compression of source archives.
	SdistCompression string

	// InvalidSdistCompressionError is returned when a SdistCompression value is not recognized.
	InvalidSdistCompressionError struct {
		Value SdistCompression
	}

	// CompressionLevel is the deflate level used for wheel members.
	// Zero stores members uncompressed and -1 selects the library default.
	CompressionLevel int

	// InvalidCompressionLevelError is returned when a CompressionLevel is outside -1..9.
	InvalidCompressionLevelError struct {
		Value CompressionLevel
	}

	// Compatibility is "auto", "off", "linux" or a policy name such as
	// "manylinux_2_17". Policy names are checked by the target resolver.
	Compatibility string

	// InvalidCompatibilityError is returned when a Compatibility value is whitespace-only.
	InvalidCompatibilityError struct {
		Value Compatibility
	}

	// SourceDateEpoch is a unix timestamp in seconds, as in the
	// SOURCE_DATE_EPOCH convention. The zero value means unset.
	SourceDateEpoch string

	// InvalidSourceDateEpochError is returned when a SourceDateEpoch is not a
	// non-negative integer.
	InvalidSourceDateEpochError struct {
		Value SourceDateEpoch
	}

	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// OutDir is the directory receiving built archives, relative paths
	// resolving against the project root.
	OutDir string

	// InvalidOutDirError is returned when an OutDir is whitespace-only.
	InvalidOutDirError struct {
		Value OutDir
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Sdist configures source distribution builds
		Sdist SdistConfig `json:"sdist" mapstructure:"sdist"`
		// Wheel configures wheel builds
		Wheel WheelConfig `json:"wheel" mapstructure:"wheel"`
		// Compatibility is the default platform policy for Linux wheels
		Compatibility Compatibility `json:"compatibility" mapstructure:"compatibility"`
		// Reproducible controls archive timestamps
		Reproducible ReproducibleConfig `json:"reproducible" mapstructure:"reproducible"`
		// Log configures diagnostics
		Log LogConfig `json:"log" mapstructure:"log"`
		// OutDir is where archives are written
		OutDir OutDir `json:"out_dir" mapstructure:"out_dir"`
	}

	// SdistConfig configures source distribution builds.
	SdistConfig struct {
		Generator SdistGenerator `json:"generator" mapstructure:"generator"`
		// FallbackToFilesystem lists files by walking the project when the git
		// generator finds no repository.
		FallbackToFilesystem bool             `json:"fallback_to_filesystem" mapstructure:"fallback_to_filesystem"`
		Compression          SdistCompression `json:"compression" mapstructure:"compression"`
	}

	// WheelConfig configures wheel builds.
	WheelConfig struct {
		CompressionLevel CompressionLevel `json:"compression_level" mapstructure:"compression_level"`
	}

	// ReproducibleConfig controls archive timestamps.
	ReproducibleConfig struct {
		// Enabled writes every archive member with the same fixed time.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// SourceDateEpoch pins member times; it takes precedence over Enabled.
		SourceDateEpoch SourceDateEpoch `json:"source_date_epoch" mapstructure:"source_date_epoch"`
	}

	// LogConfig configures diagnostics.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}
)

// IsValid returns whether the Config has valid fields, collecting the
// errors of every invalid field.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){
		c.Sdist.Generator.IsValid,
		c.Sdist.Compression.IsValid,
		c.Wheel.CompressionLevel.IsValid,
		c.Compatibility.IsValid,
		c.Reproducible.SourceDateEpoch.IsValid,
		c.Log.Level.IsValid,
		c.OutDir.IsValid,
	} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// String returns the string representation of the SdistGenerator.
func (g SdistGenerator) String() string { return string(g) }

// IsValid returns whether the SdistGenerator is one of the defined generators,
// and a list of validation errors if it is not.
func (g SdistGenerator) IsValid() (bool, []error) {
	switch g {
	case SdistGeneratorCargo, SdistGeneratorGit:
		return true, nil
	default:
		return false, []error{&InvalidSdistGeneratorError{Value: g}}
	}
}

// Error implements the error interface for InvalidSdistGeneratorError.
func (e *InvalidSdistGeneratorError) Error() string {
	return fmt.Sprintf("invalid sdist generator %q (valid: cargo, git)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidSdistGeneratorError) Unwrap() error { return ErrInvalidSdistGenerator }

// String returns the string representation of the SdistCompression.
func (c SdistCompression) String() string { return string(c) }

// IsValid returns whether the SdistCompression is gzip or xz.
func (c SdistCompression) IsValid() (bool, []error) {
	switch c {
	case CompressionGzip, CompressionXz:
		return true, nil
	default:
		return false, []error{&InvalidSdistCompressionError{Value: c}}
	}
}

// Error implements the error interface for InvalidSdistCompressionError.
func (e *InvalidSdistCompressionError) Error() string {
	return fmt.Sprintf("invalid sdist compression %q (valid: gzip, xz)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidSdistCompressionError) Unwrap() error { return ErrInvalidSdistCompression }

// IsValid returns whether the CompressionLevel is within -1..9.
func (l CompressionLevel) IsValid() (bool, []error) {
	if l < minCompressionLevel || l > maxCompressionLevel {
		return false, []error{&InvalidCompressionLevelError{Value: l}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCompressionLevelError.
func (e *InvalidCompressionLevelError) Error() string {
	return fmt.Sprintf("invalid compression level %d (valid: %d to %d)", e.Value, minCompressionLevel, maxCompressionLevel)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidCompressionLevelError) Unwrap() error { return ErrInvalidCompressionLevel }

// String returns the string representation of the Compatibility.
func (c Compatibility) String() string { return string(c) }

// IsValid returns whether the Compatibility is non-blank.
// The zero value is valid and behaves like "auto".
func (c Compatibility) IsValid() (bool, []error) {
	if c != "" && strings.TrimSpace(string(c)) == "" {
		return false, []error{&InvalidCompatibilityError{Value: c}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCompatibilityError.
func (e *InvalidCompatibilityError) Error() string {
	return fmt.Sprintf("invalid compatibility %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidCompatibilityError) Unwrap() error { return ErrInvalidCompatibility }

// String returns the string representation of the SourceDateEpoch.
func (s SourceDateEpoch) String() string { return string(s) }

// IsValid returns whether the SourceDateEpoch is unset or a non-negative
// integer number of seconds.
func (s SourceDateEpoch) IsValid() (bool, []error) {
	if s == "" {
		return true, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(s)), 10, 64)
	if err != nil || n < 0 {
		return false, []error{&InvalidSourceDateEpochError{Value: s}}
	}
	return true, nil
}

// Error implements the error interface for InvalidSourceDateEpochError.
func (e *InvalidSourceDateEpochError) Error() string {
	return fmt.Sprintf("invalid source date epoch %q: must be non-negative unix seconds", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidSourceDateEpochError) Unwrap() error { return ErrInvalidSourceDateEpoch }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the OutDir.
func (d OutDir) String() string { return string(d) }

// IsValid returns whether the OutDir is non-empty and not whitespace-only.
func (d OutDir) IsValid() (bool, []error) {
	if strings.TrimSpace(string(d)) == "" {
		return false, []error{&InvalidOutDirError{Value: d}}
	}
	return true, nil
}

// Error implements the error interface for InvalidOutDirError.
func (e *InvalidOutDirError) Error() string {
	return fmt.Sprintf("invalid output directory %q: must be non-empty", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidOutDirError) Unwrap() error { return ErrInvalidOutDir }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Sdist: SdistConfig{
			Generator:            SdistGeneratorCargo,
			FallbackToFilesystem: false,
			Compression:          CompressionGzip,
		},
		Wheel: WheelConfig{
			CompressionLevel: 6,
		},
		Compatibility: CompatibilityAuto,
		Reproducible: ReproducibleConfig{
			Enabled:         true,
			SourceDateEpoch: "", // SOURCE_DATE_EPOCH when set
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
		OutDir: "target/wheels",
	}
}
