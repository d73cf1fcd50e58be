// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/internal/build"
)

type developFlags struct {
	project     projectFlags
	artifacts   artifactFlags
	environment string
	interpreter string
	editable    bool
}

func newDevelopCommand(app *App) *cobra.Command {
	flags := &developFlags{}
	developCmd := &cobra.Command{
		Use:   "develop",
		Short: "Install the project into a Python environment",
		Long: `Install the project into the active virtualenv or conda environment, or
the environment given with --env, replacing any earlier install.

Artifacts default to the debug profile of the cargo target directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.openSession(cmd.Context(), &flags.project)
			if err != nil {
				return app.fail(cmd, err)
			}
			result, err := session.Develop(cmd.Context(), build.DevelopRequest{
				Artifacts:   flags.artifacts.artifacts(),
				Environment: flags.environment,
				Interpreter: flags.interpreter,
				Editable:    flags.editable,
				Profile:     flags.artifacts.profile,
			})
			if err != nil {
				return app.fail(cmd, err)
			}
			for _, replaced := range result.Replaced {
				fmt.Fprintf(app.stdout, "%s Removed %s\n", VerboseStyle.Render("-"), replaced)
			}
			fmt.Fprintf(app.stdout, "%s Installed %s into %s\n",
				SuccessStyle.Render("✓"), result.DistInfo, CmdStyle.Render(result.Environment.SitePackages))
			if app.flags.verbose {
				for _, file := range result.Files {
					fmt.Fprintf(app.stdout, "  %s\n", VerboseStyle.Render(file))
				}
			}
			return nil
		},
	}
	flags.project.register(developCmd)
	flags.artifacts.register(developCmd, build.DebugProfile)
	developCmd.Flags().StringVarP(&flags.environment, "env", "E", "", "environment prefix (default is $VIRTUAL_ENV or $CONDA_PREFIX)")
	developCmd.Flags().StringVarP(&flags.interpreter, "interpreter", "i", "", "python version (default is read from the environment)")
	developCmd.Flags().BoolVarP(&flags.editable, "editable", "e", false, "link the python sources instead of copying them")

	return developCmd
}
