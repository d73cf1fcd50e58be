// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

type (
	// projectView is the printable summary of a resolved project.
	projectView struct {
		ProjectDir     string             `yaml:"project_dir"`
		Bridge         string             `yaml:"bridge"`
		Abi3           string             `yaml:"abi3,omitempty"`
		ModuleName     string             `yaml:"module_name"`
		PythonSource   string             `yaml:"python_source,omitempty"`
		Target         string             `yaml:"target"`
		PlatformTag    string             `yaml:"platform_tag"`
		Crates         []crateView        `yaml:"crates"`
		Lockfile       string             `yaml:"lockfile,omitempty"`
		Compatibility  string             `yaml:"compatibility,omitempty"`
		SdistGenerator string             `yaml:"sdist_generator,omitempty"`
		Metadata       pymeta.Metadata    `yaml:"metadata"`
		EntryPoints    pymeta.EntryPoints `yaml:"entry_points,omitempty"`
	}

	crateView struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Path    string `yaml:"path"`
	}
)

// InvalidFormatError is returned for an unknown --format value.
type InvalidFormatError struct {
	Format string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q (expected %s or %s)", e.Format, formatText, formatYAML)
}

func validateFormat(format string) error {
	if format != formatText && format != formatYAML {
		return &InvalidFormatError{Format: format}
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newInspectCommand(app *App) *cobra.Command {
	var (
		project projectFlags
		format  string
	)
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the resolved project",
		Long: `Resolve the project and print its binding kind, module name, local crates
and the core metadata the wheel would carry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			session, err := app.openSession(cmd.Context(), &project)
			if err != nil {
				return app.fail(cmd, err)
			}
			view := newProjectView(session.Descriptor, session.Target.Triple.String(), session.Target.DefaultTag.String())
			if format == formatYAML {
				return app.fail(cmd, writeYAML(app.stdout, view))
			}
			printProjectView(app.stdout, view)
			return nil
		},
	}
	project.register(inspectCmd)
	inspectCmd.Flags().StringVar(&format, "format", formatText, "output format: text or yaml")

	return inspectCmd
}

func newProjectView(d *project.Descriptor, triple, platformTag string) projectView {
	view := projectView{
		ProjectDir:     d.ProjectDir,
		Bridge:         d.Bridge.Kind.String(),
		ModuleName:     d.ModuleName,
		PythonSource:   relativeTo(d.ProjectDir, d.PythonSource),
		Target:         triple,
		PlatformTag:    platformTag,
		Lockfile:       relativeTo(d.ProjectDir, d.Lock.Path),
		Compatibility:  d.Compatibility,
		SdistGenerator: d.SdistGenerator,
		Metadata:       d.Metadata,
		EntryPoints:    d.EntryPoints,
	}
	if d.Bridge.Abi3 {
		view.Abi3 = "abi3"
		if d.Bridge.Abi3Min != "" {
			view.Abi3 = "abi3 (>= " + d.Bridge.Abi3Min + ")"
		}
	}
	for _, idx := range d.Order {
		pkg := d.Packages[idx]
		view.Crates = append(view.Crates, crateView{
			Name:    pkg.Name,
			Version: pkg.Version,
			Path:    relativeTo(d.ProjectDir, pkg.Dir()),
		})
	}
	return view
}

func printProjectView(w io.Writer, view projectView) {
	field := func(key, value string) {
		if value != "" {
			fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), value)
		}
	}
	fmt.Fprintln(w, TitleStyle.Render(view.Metadata.Name+" "+view.Metadata.Version))
	fmt.Fprintln(w)
	field("Project", view.ProjectDir)
	field("Bindings", view.Bridge)
	field("Stable ABI", view.Abi3)
	field("Module", view.ModuleName)
	field("Python source", view.PythonSource)
	field("Target", view.Target)
	field("Platform tag", view.PlatformTag)
	field("Lockfile", view.Lockfile)
	field("Compatibility", view.Compatibility)
	field("Sdist generator", view.SdistGenerator)
	field("Requires-Python", view.Metadata.RequiresPython)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("Crates"))
	for _, crate := range view.Crates {
		fmt.Fprintf(w, "  - %s %s %s\n", crate.Name, crate.Version, SubtitleStyle.Render("("+crate.Path+")"))
	}
}

func relativeTo(base, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
