// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/zhaixiaojuan/maturin/internal/issue"
	"github.com/zhaixiaojuan/maturin/pkg/cueutil"
	"github.com/zhaixiaojuan/maturin/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "maturin"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variable overrides (MATURIN_LOG_LEVEL).
	EnvPrefix = "MATURIN"
	// SourceDateEpochEnv is the reproducible-builds timestamp variable.
	SourceDateEpochEnv = "SOURCE_DATE_EPOCH"

	schemaDefinition = "#Config"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the maturin configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if dir := configDirOverride; dir != "" {
		return dir, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state. It returns the config and the path of the file
// it was read from, empty when only defaults and the environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("reproducible.source_date_epoch", EnvPrefix+"_REPRODUCIBLE_SOURCE_DATE_EPOCH", SourceDateEpochEnv); err != nil {
		return nil, "", fmt.Errorf("failed to bind %s: %w", SourceDateEpochEnv, err)
	}

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'maturin config show' to see the default configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so the typed values are
	// checked once more after merging.
	if valid, errs := cfg.IsValid(); !valid {
		b := issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check the " + EnvPrefix + "_* and " + SourceDateEpochEnv + " environment variables")
		if resolvedPath != "" {
			b = b.WithResource(resolvedPath)
		}
		return nil, "", b.Wrap(errs[0]).BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("sdist.generator", defaults.Sdist.Generator)
	v.SetDefault("sdist.fallback_to_filesystem", defaults.Sdist.FallbackToFilesystem)
	v.SetDefault("sdist.compression", defaults.Sdist.Compression)
	v.SetDefault("wheel.compression_level", defaults.Wheel.CompressionLevel)
	v.SetDefault("compatibility", defaults.Compatibility)
	v.SetDefault("reproducible.enabled", defaults.Reproducible.Enabled)
	v.SetDefault("reproducible.source_date_epoch", defaults.Reproducible.SourceDateEpoch)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("out_dir", defaults.OutDir)
}

// resolveConfigFile picks the file to load: the explicit path when given,
// else config.cue in the config directory, else config.cue in the working
// directory. No file found is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against the #Config schema and
// merges the fields it sets into Viper, keeping defaults for the rest.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap([]byte(configSchema), data, schemaDefinition, cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig creates a default config file if it doesn't exist.
// It returns the path of the config file.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := configFilePath()
	if err != nil {
		return "", err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// Save writes the configuration to the config file
func Save(cfg *Config) error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func configFilePath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// Maturin Configuration File\n")
	sb.WriteString("// Environment variables MATURIN_<SECTION>_<KEY> override these values.\n\n")

	sb.WriteString(fmt.Sprintf("compatibility: %q\n", cfg.Compatibility))
	sb.WriteString(fmt.Sprintf("out_dir: %q\n", cfg.OutDir))

	sb.WriteString("\nsdist: {\n")
	sb.WriteString(fmt.Sprintf("\tgenerator: %q\n", cfg.Sdist.Generator))
	sb.WriteString(fmt.Sprintf("\tfallback_to_filesystem: %v\n", cfg.Sdist.FallbackToFilesystem))
	sb.WriteString(fmt.Sprintf("\tcompression: %q\n", cfg.Sdist.Compression))
	sb.WriteString("}\n")

	sb.WriteString("\nwheel: {\n")
	sb.WriteString(fmt.Sprintf("\tcompression_level: %d\n", cfg.Wheel.CompressionLevel))
	sb.WriteString("}\n")

	sb.WriteString("\nreproducible: {\n")
	sb.WriteString(fmt.Sprintf("\tenabled: %v\n", cfg.Reproducible.Enabled))
	if cfg.Reproducible.SourceDateEpoch != "" {
		sb.WriteString(fmt.Sprintf("\tsource_date_epoch: %q\n", cfg.Reproducible.SourceDateEpoch))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	sb.WriteString(fmt.Sprintf("\tlevel: %q\n", cfg.Log.Level))
	sb.WriteString("}\n")

	return sb.String()
}
