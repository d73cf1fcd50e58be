// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// CargoManifestName is the file name of a Cargo manifest.
	CargoManifestName = "Cargo.toml"
	// CargoLockName is the file name of a Cargo lockfile.
	CargoLockName = "Cargo.lock"
)

// dependencySections are the dependency tables that may carry path entries.
var dependencySections = []string{"dependencies", "build-dependencies", "dev-dependencies"}

// Workspace is a Cargo workspace root that a crate belongs to.
type Workspace struct {
	// Root is the absolute directory holding the workspace manifest.
	Root string
	// ManifestPath is the absolute path of the workspace Cargo.toml.
	ManifestPath string
	// Members and Exclude are the declared member globs, relative to Root.
	Members []string
	Exclude []string
	// Package is the [workspace.package] table.
	Package Document
	// Dependencies is the [workspace.dependencies] table.
	Dependencies Document
	// Lints is the [workspace.lints] table.
	Lints Document
}

// findWorkspace walks up from the crate directory looking for the nearest
// manifest declaring [workspace]. It returns nil when the crate is not a
// member of any workspace.
func findWorkspace(manifestPath string, doc Document) (*Workspace, error) {
	if ws := doc.Table("workspace"); ws != nil {
		return newWorkspace(manifestPath, ws), nil
	}

	crateDir := filepath.Dir(manifestPath)

	// An explicit package.workspace key points at the workspace root.
	if explicit := doc.Table("package").String("workspace"); explicit != "" {
		wsManifest := filepath.Join(crateDir, explicit, CargoManifestName)
		wsDoc, err := ReadDocument(wsManifest)
		if err != nil {
			return nil, err
		}
		ws := wsDoc.Table("workspace")
		if ws == nil {
			return nil, &ManifestError{Path: manifestPath, Reason: "package.workspace points at " + wsManifest + ", which has no [workspace] table"}
		}
		return newWorkspace(wsManifest, ws), nil
	}

	for dir := filepath.Dir(crateDir); ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, CargoManifestName)
		if _, err := os.Stat(candidate); err == nil {
			wsDoc, err := ReadDocument(candidate)
			if err != nil {
				return nil, err
			}
			if wsTable := wsDoc.Table("workspace"); wsTable != nil {
				ws := newWorkspace(candidate, wsTable)
				if ws.excludes(crateDir) {
					return nil, nil
				}
				return ws, nil
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, &ManifestError{Path: candidate, Reason: "cannot stat manifest", Err: err}
		}
		if parent := filepath.Dir(dir); parent == dir {
			return nil, nil
		}
	}
}

func newWorkspace(manifestPath string, table Document) *Workspace {
	return &Workspace{
		Root:         filepath.Dir(manifestPath),
		ManifestPath: manifestPath,
		Members:      table.Strings("members"),
		Exclude:      table.Strings("exclude"),
		Package:      table.Table("package"),
		Dependencies: table.Table("dependencies"),
		Lints:        table.Table("lints"),
	}
}

// excludes reports whether crateDir is listed in the workspace exclude globs.
func (w *Workspace) excludes(crateDir string) bool {
	rel, err := filepath.Rel(w.Root, crateDir)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.Exclude {
		if ok, _ := doublestar.Match(filepath.ToSlash(filepath.Clean(pattern)), rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(filepath.ToSlash(filepath.Clean(pattern))+"/**", rel); ok {
			return true
		}
	}
	return false
}

// IsMember reports whether crateDir is declared in the member globs.
func (w *Workspace) IsMember(crateDir string) bool {
	if crateDir == w.Root {
		return true
	}
	rel, err := filepath.Rel(w.Root, crateDir)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return slices.ContainsFunc(w.Members, func(pattern string) bool {
		ok, _ := doublestar.Match(filepath.ToSlash(filepath.Clean(pattern)), rel)
		return ok
	})
}

// inheritPackage replaces every `field = { workspace = true }` of the
// [package] table with the workspace value and rebases path-valued fields
// onto the member directory. This is the overlay pass: the workspace values
// have been collected when the Workspace was built.
func inheritPackage(manifestPath string, pkg Document, ws *Workspace) error {
	crateDir := filepath.Dir(manifestPath)
	keys := sortedKeys(pkg)
	for _, key := range keys {
		if !isInherited(pkg[key]) {
			continue
		}
		if ws == nil {
			return &UnresolvedInheritanceError{ManifestPath: manifestPath, Field: "package." + key}
		}
		value, ok := ws.Package[key]
		if !ok {
			return &UnresolvedInheritanceError{ManifestPath: manifestPath, WorkspacePath: ws.ManifestPath, Field: "package." + key}
		}
		value = cloneValue(value)
		switch key {
		case "license-file", "readme":
			if p, isString := value.(string); isString {
				value = rebase(ws.Root, crateDir, p)
			}
		}
		pkg[key] = value
	}
	return nil
}

// inheritDependencies resolves inherited entries of one dependency table.
// Member-level features are added to the workspace features and the member's
// optional flag wins. Workspace paths are rebased onto the member directory.
func inheritDependencies(manifestPath, section string, deps Document, ws *Workspace) error {
	crateDir := filepath.Dir(manifestPath)
	for _, name := range sortedKeys(deps) {
		entry := deps[name]
		if !isInherited(entry) {
			continue
		}
		field := section + "." + name
		if ws == nil {
			return &UnresolvedInheritanceError{ManifestPath: manifestPath, Field: field}
		}
		wsEntry, ok := ws.Dependencies[name]
		if !ok {
			return &UnresolvedInheritanceError{ManifestPath: manifestPath, WorkspacePath: ws.ManifestPath, Field: field}
		}

		merged := Document{}
		switch v := wsEntry.(type) {
		case string:
			merged["version"] = v
		default:
			if t := asTable(v); t != nil {
				merged = t.Clone()
			}
		}
		if p := merged.String("path"); p != "" {
			merged["path"] = rebase(ws.Root, crateDir, p)
		}

		member := asTable(entry)
		features := merged.Strings("features")
		for _, f := range member.Strings("features") {
			if !slices.Contains(features, f) {
				features = append(features, f)
			}
		}
		if len(features) > 0 {
			items := make([]any, len(features))
			for i, f := range features {
				items[i] = f
			}
			merged["features"] = items
		}
		if optional, isBool := member["optional"].(bool); isBool {
			merged["optional"] = optional
		}
		if defaults, isBool := member["default-features"].(bool); isBool {
			merged["default-features"] = defaults
		}
		deps[name] = map[string]any(merged)
	}
	return nil
}

// resolveInheritance applies the workspace values to every inheritable part
// of a member manifest in place.
func resolveInheritance(manifestPath string, doc Document, ws *Workspace) error {
	if pkg := doc.Table("package"); pkg != nil {
		if err := inheritPackage(manifestPath, pkg, ws); err != nil {
			return err
		}
	}

	for _, tables := range dependencyTables(doc) {
		if err := inheritDependencies(manifestPath, tables.Section, tables.Entries, ws); err != nil {
			return err
		}
	}

	if lints := doc["lints"]; isInherited(lints) {
		if ws == nil || ws.Lints == nil {
			wsPath := ""
			if ws != nil {
				wsPath = ws.ManifestPath
			}
			return &UnresolvedInheritanceError{ManifestPath: manifestPath, WorkspacePath: wsPath, Field: "lints"}
		}
		doc["lints"] = map[string]any(ws.Lints.Clone())
	}
	return nil
}

// DependencyTable is one dependency table of a manifest. Entries aliases
// the table inside the manifest document, so edits are visible through it.
type DependencyTable struct {
	// Section is "dependencies", "build-dependencies" or "dev-dependencies".
	Section string
	// Target is the cfg expression of a [target.<cfg>] table, if any.
	Target  string
	Entries Document
}

// DependencyTables returns the plain and target-specific dependency tables
// of the manifest in a stable order.
func (d Document) DependencyTables() []DependencyTable {
	return dependencyTables(d)
}

func dependencyTables(doc Document) []DependencyTable {
	var out []DependencyTable
	for _, section := range dependencySections {
		if deps := doc.Table(section); deps != nil {
			out = append(out, DependencyTable{Section: section, Entries: deps})
		}
	}
	targets := doc.Table("target")
	for _, cfg := range sortedKeys(targets) {
		table := targets.Table(cfg)
		for _, section := range dependencySections {
			if deps := table.Table(section); deps != nil {
				out = append(out, DependencyTable{Section: section, Target: cfg, Entries: deps})
			}
		}
	}
	return out
}

// rebase converts a path relative to from into a path relative to to.
func rebase(from, to, path string) string {
	if filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	abs := filepath.Join(from, path)
	rel, err := filepath.Rel(to, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func sortedKeys(d Document) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
