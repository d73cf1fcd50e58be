// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects where configuration is read from. The zero value
	// searches the user config directory, then the working directory.
	LoadOptions struct {
		// ConfigFilePath is an explicit file (the --config flag). It must
		// exist.
		ConfigFilePath string
		// ConfigDirPath replaces the user config directory in the search.
		ConfigDirPath string
	}

	// Provider loads a validated Config.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	fileProvider struct{}
)

// NewProvider returns the Provider reading CUE files and MATURIN_*
// environment variables.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}

// LoadWithPath is Load that also reports the file the configuration was
// read from, empty when defaults and the environment were used.
func LoadWithPath(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}
