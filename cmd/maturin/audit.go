// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
)

func newAuditCommand(app *App) *cobra.Command {
	var (
		project       projectFlags
		compatibility string
		format        string
	)
	auditCmd := &cobra.Command{
		Use:   "audit <file>...",
		Short: "Check compiled binaries against the platform policies",
		Long: `Check compiled libraries and executables against the manylinux and
musllinux policies, the macOS deployment target or the Windows machine of
the target, and report the platform tag a wheel would carry.

With --compatibility auto (the default) the strictest satisfied tier is
reported; a policy name is validated as-is.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			session, err := app.openSession(cmd.Context(), &project)
			if err != nil {
				return app.fail(cmd, err)
			}
			reports := make([]*auditwheel.Report, 0, len(args))
			for _, path := range args {
				report, err := session.Audit(path, compatibility)
				if err != nil {
					return app.fail(cmd, err)
				}
				reports = append(reports, report)
			}
			if format == formatYAML {
				return app.fail(cmd, writeYAML(app.stdout, reports))
			}
			for _, report := range reports {
				printReportSummary(app, report)
			}
			return nil
		},
	}
	project.register(auditCmd)
	auditCmd.Flags().StringVar(&compatibility, "compatibility", "", "platform policy: auto, off or a policy name like manylinux_2_17")
	auditCmd.Flags().StringVar(&format, "format", formatText, "output format: text or yaml")

	return auditCmd
}

func printReportSummary(app *App, report *auditwheel.Report) {
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(report.Path))
	fmt.Fprintf(app.stdout, "  %s: %s\n", SubtitleStyle.Render("tag"), report.Tag.String())
	if report.Satisfied != "" {
		fmt.Fprintf(app.stdout, "  %s: %s\n", SubtitleStyle.Render("satisfied"), report.Satisfied)
	}
	if report.MinOS != "" {
		fmt.Fprintf(app.stdout, "  %s: %s\n", SubtitleStyle.Render("min_os"), report.MinOS)
	}
	if len(report.Libraries) > 0 {
		fmt.Fprintf(app.stdout, "  %s: %s\n", SubtitleStyle.Render("libraries"), strings.Join(report.Libraries, ", "))
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(app.stdout, "  %s %s\n", WarningStyle.Render("!"), warning)
	}
}
