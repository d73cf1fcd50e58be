// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform config directory. Tests set it
// because os.UserHomeDir ignores HOME on some platforms (macOS in CI).
var configDirOverride string

// Reset clears the config directory override.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir until Reset.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// configDirWithOverride returns the LoadOptions directory when set, else
// ConfigDir.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}
