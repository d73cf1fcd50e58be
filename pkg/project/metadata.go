// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
)

// licenseFilePatterns are the file name prefixes picked up as license files
// when the project does not list them explicitly.
var licenseFilePatterns = []string{"LICEN", "COPYING", "NOTICE", "AUTHORS"}

// buildMetadata merges the Cargo package fields with the [project] table
// into d.Metadata. PEP 621 values take precedence over Cargo values.
func (d *Descriptor) buildMetadata() error {
	root, projectDir, py := d.Root(), d.ProjectDir, d.PyProject
	var table *ProjectTable
	if py != nil {
		table = py.Project
	}
	if table == nil {
		table = &ProjectTable{}
	}
	pyPath := filepath.Join(projectDir, PyProjectName)

	m := pymeta.Metadata{
		Name:           root.Name,
		Summary:        root.Description,
		Keywords:       root.Keywords,
		Homepage:       root.Homepage,
		License:        root.License,
		RequiresPython: table.RequiresPython,
		Classifiers:    table.Classifiers,
		RequiresDist:   slices.Clone(table.Dependencies),
	}
	if table.Name != "" {
		m.Name = table.Name
	}
	if err := pymeta.ValidateName(m.Name); err != nil {
		return &ManifestError{Path: pyPath, Reason: "invalid project name", Err: err}
	}

	switch {
	case table.Version != "":
		m.Version = table.Version
	default:
		version, err := pymeta.ConvertVersion(root.Version)
		if err != nil {
			return &ManifestError{Path: root.ManifestPath, Reason: "invalid package.version", Err: err}
		}
		m.Version = version
	}

	if table.Description != "" {
		m.Summary = table.Description
	}
	// Summary must be a single line.
	m.Summary = strings.TrimSpace(strings.ReplaceAll(m.Summary, "\n", " "))
	if len(table.Keywords) > 0 {
		m.Keywords = table.Keywords
	}

	if len(table.Authors) > 0 {
		for _, a := range table.Authors {
			m.Authors = append(m.Authors, pymeta.Person{Name: a.Name, Email: a.Email})
		}
	} else {
		for _, a := range root.Authors {
			m.Authors = append(m.Authors, pymeta.ParseCargoAuthor(a))
		}
	}
	for _, a := range table.Maintainers {
		m.Maintainers = append(m.Maintainers, pymeta.Person{Name: a.Name, Email: a.Email})
	}

	readme, err := applyReadme(&m, root, projectDir, table)
	if err != nil {
		return err
	}

	var licenseFiles []string
	switch v := table.License.(type) {
	case string:
		m.License = v
	case map[string]any:
		t := Document(v)
		if text := t.String("text"); text != "" {
			m.License = text
		}
		if file := t.String("file"); file != "" {
			licenseFiles = append(licenseFiles, filepath.Join(projectDir, file))
		}
	}
	if root.LicenseFile != "" {
		licenseFiles = append(licenseFiles, filepath.Join(root.Dir(), root.LicenseFile))
	}
	licenseFiles = append(licenseFiles, discoverLicenseFiles(projectDir)...)
	if root.Dir() != projectDir {
		licenseFiles = append(licenseFiles, discoverLicenseFiles(root.Dir())...)
	}
	licenseFiles = uniqueByBase(licenseFiles)
	for _, f := range licenseFiles {
		m.LicenseFiles = append(m.LicenseFiles, filepath.Base(f))
	}

	for _, extra := range pymeta.SortedExtras(table.OptionalDependencies) {
		m.ProvidesExtra = append(m.ProvidesExtra, extra)
		for _, dep := range table.OptionalDependencies[extra] {
			m.RequiresDist = append(m.RequiresDist, withExtraMarker(dep, extra))
		}
	}

	if len(table.URLs) > 0 {
		labels := make([]string, 0, len(table.URLs))
		for label := range table.URLs {
			labels = append(labels, label)
		}
		slices.Sort(labels)
		for _, label := range labels {
			m.ProjectURLs = append(m.ProjectURLs, pymeta.ProjectURL{Label: label, URL: table.URLs[label]})
		}
	} else {
		if root.Repository != "" {
			m.ProjectURLs = append(m.ProjectURLs, pymeta.ProjectURL{Label: "Source Code", URL: root.Repository})
		}
		if root.Documentation != "" {
			m.ProjectURLs = append(m.ProjectURLs, pymeta.ProjectURL{Label: "Documentation", URL: root.Documentation})
		}
	}

	entryPoints := pymeta.EntryPoints{}
	for name, ref := range table.Scripts {
		entryPoints.Add(pymeta.ConsoleScriptsGroup, name, ref)
	}
	for name, ref := range table.GUIScripts {
		entryPoints.Add(pymeta.GUIScriptsGroup, name, ref)
	}
	for group, entries := range table.EntryPoints {
		if group == pymeta.ConsoleScriptsGroup || group == pymeta.GUIScriptsGroup {
			return &ManifestError{
				Path:   pyPath,
				Reason: fmt.Sprintf("entry point group %q must be declared in [project.scripts] or [project.gui-scripts]", group),
			}
		}
		for name, ref := range entries {
			entryPoints.Add(group, name, ref)
		}
	}

	d.Metadata, d.LicenseFiles, d.EntryPoints, d.ReadmePath = m, licenseFiles, entryPoints, readme
	return nil
}

// applyReadme loads the long description and returns the readme path, empty
// when the description is inline or absent.
func applyReadme(m *pymeta.Metadata, root *Package, projectDir string, table *ProjectTable) (string, error) {
	var path, contentType string
	switch v := table.Readme.(type) {
	case string:
		path = filepath.Join(projectDir, v)
	case map[string]any:
		t := Document(v)
		contentType = t.String("content-type")
		if text := t.String("text"); text != "" {
			m.Description = text
			m.DescriptionContentType = contentType
			return "", nil
		}
		if file := t.String("file"); file != "" {
			path = filepath.Join(projectDir, file)
		}
	default:
		if root.Readme != "" {
			path = filepath.Join(root.Dir(), root.Readme)
		}
	}
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ManifestError{Path: path, Reason: "cannot read readme", Err: err}
	}
	m.Description = string(data)
	if contentType == "" {
		contentType = pymeta.ContentTypeForReadme(path)
	}
	m.DescriptionContentType = contentType
	return path, nil
}

func discoverLicenseFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		upper := strings.ToUpper(entry.Name())
		for _, prefix := range licenseFilePatterns {
			if strings.HasPrefix(upper, prefix) {
				out = append(out, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	return out
}

func uniqueByBase(paths []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		if seen[base] {
			continue
		}
		seen[base] = true
		out = append(out, p)
	}
	return out
}

func withExtraMarker(requirement, extra string) string {
	marker := fmt.Sprintf("extra == '%s'", extra)
	if before, after, ok := strings.Cut(requirement, ";"); ok {
		return fmt.Sprintf("%s; (%s) and %s", strings.TrimSpace(before), strings.TrimSpace(after), marker)
	}
	return requirement + "; " + marker
}
