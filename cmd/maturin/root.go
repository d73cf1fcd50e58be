// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "maturin",
		Short: "Build and publish Rust crates as Python packages",
		Long: TitleStyle.Render("maturin") + SubtitleStyle.Render(" - Build and publish Rust crates as Python packages") + `

maturin packages pyo3, cffi and uniffi crates and Rust binaries into
Python wheels and source distributions, checks native artifacts against
the manylinux and musllinux policies, and installs projects into
virtualenvs for development.

` + SubtitleStyle.Render("Examples:") + `
  maturin build --interpreter 3.12     Build a wheel from target/release
  maturin sdist                        Build a source distribution
  maturin develop                      Install into the active virtualenv
  maturin inspect                      Show the resolved project
  maturin audit target/release/libfoo.so
  maturin config show                  Show current configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/maturin/config.cue)")

	rootCmd.AddCommand(newBuildCommand(app))
	rootCmd.AddCommand(newSdistCommand(app))
	rootCmd.AddCommand(newDevelopCommand(app))
	rootCmd.AddCommand(newInspectCommand(app))
	rootCmd.AddCommand(newAuditCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute builds the command tree and runs it. This is called by
// main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
