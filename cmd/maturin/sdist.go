// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/internal/build"
)

func newSdistCommand(app *App) *cobra.Command {
	var (
		project   projectFlags
		generator string
	)
	sdistCmd := &cobra.Command{
		Use:   "sdist",
		Short: "Build a source distribution",
		Long: `Build a source distribution containing the project, its local path
dependencies and a rewritten Cargo.toml and pyproject.toml.

The generator selects how files are listed: "cargo" walks the crates the
way cargo package does, "git" lists the files git tracks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.openSession(cmd.Context(), &project)
			if err != nil {
				return app.fail(cmd, err)
			}
			path, err := session.Sdist(cmd.Context(), build.SdistRequest{Generator: generator})
			if err != nil {
				return app.fail(cmd, err)
			}
			fmt.Fprintf(app.stdout, "%s Built source distribution %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
			return nil
		},
	}
	project.register(sdistCmd)
	sdistCmd.Flags().StringVar(&generator, "generator", "", "file listing strategy: cargo or git (default from project or configuration)")

	return sdistCmd
}
