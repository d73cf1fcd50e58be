// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/internal/config"
	"github.com/zhaixiaojuan/maturin/internal/issue"
)

// newConfigCommand creates the `maturin config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage maturin configuration",
		Long: `Manage maturin configuration.

Configuration is stored in:
  - Linux: ~/.config/maturin/config.cue
  - macOS: ~/Library/Application Support/maturin/config.cue
  - Windows: %APPDATA%\maturin\config.cue

A config.cue in the working directory is used when none of these exists.
Environment variables MATURIN_<SECTION>_<KEY> and SOURCE_DATE_EPOCH
override file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, showConfig(cmd.Context(), app))
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, path, err := config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: app.flags.configPath})
	if err != nil {
		if rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); renderErr == nil {
			fmt.Fprint(app.stderr, rendered)
		}
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	value := func(v any) string { return valueStyle.Render(fmt.Sprint(v)) }

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	if path != "" {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(app.stdout)

	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("compatibility"), value(cfg.Compatibility))
	fmt.Fprintf(app.stdout, "%s: %s\n", keyStyle.Render("out_dir"), value(cfg.OutDir))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("sdist"))
	fmt.Fprintf(app.stdout, "  generator: %s\n", value(cfg.Sdist.Generator))
	fmt.Fprintf(app.stdout, "  fallback_to_filesystem: %s\n", value(cfg.Sdist.FallbackToFilesystem))
	fmt.Fprintf(app.stdout, "  compression: %s\n", value(cfg.Sdist.Compression))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("wheel"))
	fmt.Fprintf(app.stdout, "  compression_level: %s\n", value(int(cfg.Wheel.CompressionLevel)))

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("reproducible"))
	fmt.Fprintf(app.stdout, "  enabled: %s\n", value(cfg.Reproducible.Enabled))
	if cfg.Reproducible.SourceDateEpoch != "" {
		fmt.Fprintf(app.stdout, "  source_date_epoch: %s\n", value(cfg.Reproducible.SourceDateEpoch))
	} else {
		fmt.Fprintf(app.stdout, "  source_date_epoch: %s\n", SubtitleStyle.Render("(not set)"))
	}

	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(app.stdout, "  level: %s\n", value(cfg.Log.Level))

	return nil
}
