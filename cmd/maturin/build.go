// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/internal/build"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

type (
	// artifactFlags name native build outputs explicitly.
	artifactFlags struct {
		library  string
		bindings string
		binaries map[string]string
		profile  string
	}

	buildFlags struct {
		project       projectFlags
		artifacts     artifactFlags
		interpreters  []string
		compatibility string
		sdist         bool
	}
)

func (f *artifactFlags) register(cmd *cobra.Command, defaultProfile string) {
	cmd.Flags().StringVar(&f.library, "artifact", "", "compiled library to package (default is looked up in the cargo target directory)")
	cmd.Flags().StringVar(&f.bindings, "bindings", "", "generated cffi or uniffi python bindings")
	cmd.Flags().StringToStringVar(&f.binaries, "bin", nil, "compiled binary as name=path (can be specified multiple times)")
	cmd.Flags().StringVar(&f.profile, "profile", defaultProfile, "cargo profile directory to take artifacts from")
}

func (f *artifactFlags) artifacts() wheel.Artifacts {
	return wheel.Artifacts{Library: f.library, Bindings: f.bindings, Binaries: f.binaries}
}

func newBuildCommand(app *App) *cobra.Command {
	flags := &buildFlags{}
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build wheels from compiled artifacts",
		Long: `Build wheels from the compiled native artifacts of the project.

Artifacts default to the cargo target directory of the selected profile.
One wheel is built per --interpreter; abi3 and binary projects need none.

` + SubtitleStyle.Render("Examples:") + `
  maturin build --interpreter 3.12
  maturin build --interpreter 3.11 --interpreter 3.12 --sdist
  maturin build --target aarch64-unknown-linux-gnu --compatibility manylinux_2_28`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(cmd, runBuild(cmd, app, flags))
		},
	}
	flags.project.register(buildCmd)
	flags.artifacts.register(buildCmd, build.ReleaseProfile)
	buildCmd.Flags().StringSliceVarP(&flags.interpreters, "interpreter", "i", nil, "python versions to build for, like 3.12 (can be specified multiple times)")
	buildCmd.Flags().StringVar(&flags.compatibility, "compatibility", "", "platform policy: auto, off or a policy name like manylinux_2_17")
	buildCmd.Flags().BoolVar(&flags.sdist, "sdist", false, "also build a source distribution")

	return buildCmd
}

func runBuild(cmd *cobra.Command, app *App, flags *buildFlags) error {
	ctx := cmd.Context()
	session, err := app.openSession(ctx, &flags.project)
	if err != nil {
		return err
	}

	interpreters := flags.interpreters
	if len(interpreters) == 0 {
		interpreters = []string{""}
	}
	for _, interpreter := range interpreters {
		result, err := session.Wheel(ctx, build.WheelRequest{
			Artifacts:     flags.artifacts.artifacts(),
			Interpreter:   interpreter,
			Compatibility: flags.compatibility,
			Profile:       flags.artifacts.profile,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s Built wheel %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(result.Path))
		if app.flags.verbose {
			for _, report := range result.Reports {
				printReportSummary(app, report)
			}
		}
	}

	if flags.sdist {
		path, err := session.Sdist(ctx, build.SdistRequest{})
		if err != nil {
			return err
		}
		fmt.Fprintf(app.stdout, "%s Built source distribution %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
	}
	return nil
}
