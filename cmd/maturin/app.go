// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/internal/build"
	"github.com/zhaixiaojuan/maturin/internal/config"
	"github.com/zhaixiaojuan/maturin/internal/issue"
)

type (
	// App wires CLI services and shared dependencies. All Cobra handlers
	// receive an App reference and delegate through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		flags  *rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// rootFlags are the persistent flags shared by every command.
	rootFlags struct {
		verbose    bool
		configPath string
	}

	// projectFlags select the project and target of a build command.
	projectFlags struct {
		manifestPath          string
		triple                string
		macOSDeploymentTarget string
		features              []string
		locked                bool
		outDir                string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		flags:  &rootFlags{},
	}
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.manifestPath, "manifest-path", "m", "", "path to Cargo.toml or the project directory")
	cmd.Flags().StringVar(&f.triple, "target", "", "target triple (default is the host)")
	cmd.Flags().StringVar(&f.macOSDeploymentTarget, "macos-deployment-target", os.Getenv("MACOSX_DEPLOYMENT_TARGET"), "minimum macOS version for macOS targets")
	cmd.Flags().StringSliceVarP(&f.features, "features", "F", nil, "cargo features to activate")
	cmd.Flags().BoolVar(&f.locked, "locked", false, "require an up to date Cargo.lock")
	cmd.Flags().StringVarP(&f.outDir, "out", "o", "", "output directory (default from configuration)")
}

// loadConfig loads the configuration selected by --config.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
}

// openSession loads the configuration and resolves the project.
func (a *App) openSession(ctx context.Context, f *projectFlags) (*build.Session, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := build.NewLogger(a.stderr, cfg.Log.Level, a.flags.verbose)
	return build.Open(ctx, build.Options{
		Config:                cfg,
		ProjectPath:           f.manifestPath,
		Triple:                f.triple,
		MacOSDeploymentTarget: f.macOSDeploymentTarget,
		Features:              f.features,
		Locked:                f.locked,
		OutDir:                f.outDir,
		Logger:                logger,
	})
}

// fail renders err for the user and returns an ExitError so Execute can
// exit without printing it a second time.
func (a *App) fail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	fmt.Fprintln(a.stderr, ErrorStyle.Render("✗ ")+formatErrorForDisplay(err, a.flags.verbose))
	if a.flags.verbose {
		if known := issue.ForError(err); known != nil {
			if rendered, renderErr := known.Render("dark"); renderErr == nil {
				fmt.Fprint(a.stderr, rendered)
			}
		}
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
