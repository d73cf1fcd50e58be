// SPDX-License-Identifier: MPL-2.0

package project

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type (
	// Package is one crate of the resolved local dependency graph.
	Package struct {
		// Index is the position of the package in Descriptor.Packages.
		Index int
		Name  string
		// Version is the Cargo (semver) version.
		Version string
		// ManifestPath is the absolute, cleaned path of the crate's Cargo.toml.
		ManifestPath  string
		Authors       []string
		License       string
		LicenseFile   string
		Description   string
		Readme        string
		Homepage      string
		Repository    string
		Documentation string
		Keywords      []string
		// Include and Exclude are the Cargo [package] include/exclude globs.
		Include []string
		Exclude []string
		// Lib is the library target, nil when the crate has none.
		Lib *LibTarget
		// Bins are the binary target names.
		Bins         []string
		Dependencies []Dependency
		// Features is the [features] table: feature name to enabled items.
		Features map[string][]string
		// Workspace is the workspace the crate inherits from, or nil.
		Workspace *Workspace
		// Document is the manifest with workspace inheritance resolved.
		Document Document
	}

	// LibTarget is the [lib] target of a crate.
	LibTarget struct {
		Name       string
		CrateTypes []string
	}

	// Dependency is one entry of a dependency table.
	Dependency struct {
		// Key is the table key; Package is the real crate name when renamed.
		Key     string
		Package string
		// Section is "dependencies", "build-dependencies" or "dev-dependencies".
		Section string
		// Target is the cfg expression of a [target.<cfg>] table, if any.
		Target   string
		Version  string
		Features []string
		Optional bool
		// Path is the dependency path as written, after workspace rebasing.
		Path string
		// Local is the arena index of the resolved path dependency, -1 otherwise.
		Local int
	}
)

// Dir returns the crate directory.
func (p *Package) Dir() string {
	return filepath.Dir(p.ManifestPath)
}

// HasCrateType reports whether the library target declares crateType.
func (p *Package) HasCrateType(crateType string) bool {
	return p.Lib != nil && slices.Contains(p.Lib.CrateTypes, crateType)
}

// Dependency returns the first dependency named name outside dev-dependencies.
func (p *Package) Dependency(name string) (Dependency, bool) {
	for _, dep := range p.Dependencies {
		if dep.Section != "dev-dependencies" && dep.Package == name {
			return dep, true
		}
	}
	return Dependency{}, false
}

// IsDev reports whether the dependency is only needed for tests.
func (d Dependency) IsDev() bool {
	return d.Section == "dev-dependencies"
}

// parsePackage builds a Package from a manifest whose inheritance is
// already resolved.
func parsePackage(manifestPath string, doc Document, ws *Workspace) (*Package, error) {
	pkg := doc.Table("package")
	if pkg == nil {
		return nil, &ManifestError{Path: manifestPath, Reason: "missing [package] table"}
	}
	name := pkg.String("name")
	if name == "" {
		return nil, &ManifestError{Path: manifestPath, Reason: "missing package.name"}
	}
	version := pkg.String("version")
	if version == "" {
		// Cargo defaults an omitted version to 0.0.0.
		version = "0.0.0"
	}

	p := &Package{
		Name:          name,
		Version:       version,
		ManifestPath:  manifestPath,
		Authors:       pkg.Strings("authors"),
		License:       pkg.String("license"),
		LicenseFile:   pkg.String("license-file"),
		Description:   pkg.String("description"),
		Homepage:      pkg.String("homepage"),
		Repository:    pkg.String("repository"),
		Documentation: pkg.String("documentation"),
		Keywords:      pkg.Strings("keywords"),
		Include:       pkg.Strings("include"),
		Exclude:       pkg.Strings("exclude"),
		Features:      map[string][]string{},
		Workspace:     ws,
		Document:      doc,
	}

	switch readme := pkg["readme"].(type) {
	case string:
		p.Readme = readme
	case bool:
		// readme = false disables the default lookup.
	default:
		dir := filepath.Dir(manifestPath)
		for _, candidate := range []string{"README.md", "README.txt", "README"} {
			if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
				p.Readme = candidate
				break
			}
		}
	}

	if lib := doc.Table("lib"); lib != nil {
		p.Lib = &LibTarget{Name: lib.String("name"), CrateTypes: lib.Strings("crate-type")}
	} else if _, err := os.Stat(filepath.Join(p.Dir(), "src", "lib.rs")); err == nil {
		p.Lib = &LibTarget{}
	}
	if p.Lib != nil && p.Lib.Name == "" {
		p.Lib.Name = strings.ReplaceAll(name, "-", "_")
	}

	if bins, ok := doc["bin"].([]any); ok {
		for _, b := range bins {
			if bin := asTable(b); bin != nil {
				binName := bin.String("name")
				if binName == "" {
					binName = name
				}
				p.Bins = append(p.Bins, binName)
			}
		}
	} else if _, err := os.Stat(filepath.Join(p.Dir(), "src", "main.rs")); err == nil {
		p.Bins = []string{name}
	}

	features := doc.Table("features")
	for _, feature := range sortedKeys(features) {
		p.Features[feature] = features.Strings(feature)
	}

	for _, table := range dependencyTables(doc) {
		for _, key := range sortedKeys(table.Entries) {
			p.Dependencies = append(p.Dependencies, parseDependency(key, table, table.Entries[key]))
		}
	}

	return p, nil
}

func parseDependency(key string, table DependencyTable, entry any) Dependency {
	dep := Dependency{Key: key, Package: key, Section: table.Section, Target: table.Target, Local: -1}
	switch v := entry.(type) {
	case string:
		dep.Version = v
	default:
		t := asTable(v)
		if t == nil {
			return dep
		}
		dep.Version = t.String("version")
		dep.Path = t.String("path")
		dep.Features = t.Strings("features")
		dep.Optional = t.Bool("optional")
		if renamed := t.String("package"); renamed != "" {
			dep.Package = renamed
		}
	}
	return dep
}

// EnabledFeatures returns the features active for a build that requests
// the given features on top of the default set, following feature-to-feature
// references transitively.
func (p *Package) EnabledFeatures(requested []string, defaults bool) []string {
	var queue []string
	if defaults {
		queue = append(queue, "default")
	}
	queue = append(queue, requested...)

	seen := map[string]bool{}
	var out []string
	for len(queue) > 0 {
		feature := queue[0]
		queue = queue[1:]
		if seen[feature] {
			continue
		}
		seen[feature] = true
		if _, declared := p.Features[feature]; !declared && !strings.Contains(feature, "/") {
			continue
		}
		out = append(out, feature)
		for _, item := range p.Features[feature] {
			if !strings.Contains(item, "/") && !strings.HasPrefix(item, "dep:") {
				queue = append(queue, item)
			} else {
				out = append(out, item)
			}
		}
	}
	return out
}
