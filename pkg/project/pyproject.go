// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// PyProjectName is the file name of the Python project file.
const PyProjectName = "pyproject.toml"

type (
	// Format selects the archive kinds an include/exclude rule applies to.
	Format string

	// GlobRule is one [tool.maturin] include or exclude entry.
	GlobRule struct {
		Pattern string
		Formats []Format
	}

	// PyProject is the subset of pyproject.toml this package understands.
	PyProject struct {
		BuildSystem *BuildSystem  `toml:"build-system"`
		Project     *ProjectTable `toml:"project"`
		Tool        struct {
			Maturin *ToolMaturin `toml:"maturin"`
		} `toml:"tool"`
	}

	// BuildSystem is the PEP 518 [build-system] table.
	BuildSystem struct {
		Requires     []string `toml:"requires"`
		BuildBackend string   `toml:"build-backend"`
	}

	// ProjectTable is the PEP 621 [project] table.
	ProjectTable struct {
		Name                 string                       `toml:"name"`
		Version              string                       `toml:"version"`
		Description          string                       `toml:"description"`
		Readme               any                          `toml:"readme"`
		RequiresPython       string                       `toml:"requires-python"`
		License              any                          `toml:"license"`
		Authors              []PersonTable                `toml:"authors"`
		Maintainers          []PersonTable                `toml:"maintainers"`
		Keywords             []string                     `toml:"keywords"`
		Classifiers          []string                     `toml:"classifiers"`
		URLs                 map[string]string            `toml:"urls"`
		Dependencies         []string                     `toml:"dependencies"`
		OptionalDependencies map[string][]string          `toml:"optional-dependencies"`
		Scripts              map[string]string            `toml:"scripts"`
		GUIScripts           map[string]string            `toml:"gui-scripts"`
		EntryPoints          map[string]map[string]string `toml:"entry-points"`
		Dynamic              []string                     `toml:"dynamic"`
	}

	// PersonTable is an entry of [project] authors or maintainers.
	PersonTable struct {
		Name  string `toml:"name"`
		Email string `toml:"email"`
	}

	// ToolMaturin is the [tool.maturin] table.
	ToolMaturin struct {
		Bindings       string   `toml:"bindings"`
		ModuleName     string   `toml:"module-name"`
		PythonSource   string   `toml:"python-source"`
		PythonPackages []string `toml:"python-packages"`
		ManifestPath   string   `toml:"manifest-path"`
		Include        []any    `toml:"include"`
		Exclude        []any    `toml:"exclude"`
		Features       []string `toml:"features"`
		Compatibility  string   `toml:"compatibility"`
		Data           string   `toml:"data"`
		Locked         bool     `toml:"locked"`
		SdistGenerator string   `toml:"sdist-generator"`
	}
)

const (
	// FormatSdist marks a rule for source archives.
	FormatSdist Format = "sdist"
	// FormatWheel marks a rule for wheels.
	FormatWheel Format = "wheel"
)

// Applies reports whether the rule is active for the archive format.
func (r GlobRule) Applies(format Format) bool {
	return len(r.Formats) == 0 || slices.Contains(r.Formats, format)
}

// ReadPyProject reads and decodes a pyproject.toml file.
func ReadPyProject(path string) (*PyProject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ManifestError{Path: path, Reason: "file not found"}
		}
		return nil, &ManifestError{Path: path, Reason: "cannot read file", Err: err}
	}
	var py PyProject
	if err := toml.Unmarshal(data, &py); err != nil {
		return nil, &ManifestError{Path: path, Reason: "malformed pyproject.toml", Err: err}
	}
	return &py, nil
}

// Maturin returns the [tool.maturin] table, never nil.
func (p *PyProject) Maturin() *ToolMaturin {
	if p == nil || p.Tool.Maturin == nil {
		return &ToolMaturin{}
	}
	return p.Tool.Maturin
}

// IsDynamic reports whether the [project] table marks field as dynamic.
func (p *ProjectTable) IsDynamic(field string) bool {
	return p != nil && slices.Contains(p.Dynamic, field)
}

// parseGlobRules converts the string-or-table include/exclude entries.
func parseGlobRules(path, key string, entries []any) ([]GlobRule, error) {
	var rules []GlobRule
	for i, entry := range entries {
		switch v := entry.(type) {
		case string:
			rules = append(rules, GlobRule{Pattern: v})
		case map[string]any:
			t := Document(v)
			rule := GlobRule{Pattern: t.String("path")}
			if rule.Pattern == "" {
				return nil, &ManifestError{Path: path, Reason: fmt.Sprintf("tool.maturin.%s[%d] needs a path", key, i)}
			}
			var formats []string
			switch f := t["format"].(type) {
			case string:
				formats = []string{f}
			case []any:
				formats = t.Strings("format")
			case nil:
			default:
				return nil, &ManifestError{Path: path, Reason: fmt.Sprintf("tool.maturin.%s[%d].format must be a string or array", key, i)}
			}
			for _, format := range formats {
				switch Format(format) {
				case FormatSdist, FormatWheel:
					rule.Formats = append(rule.Formats, Format(format))
				default:
					return nil, &ManifestError{Path: path, Reason: fmt.Sprintf("tool.maturin.%s[%d]: unknown format %q", key, i, format)}
				}
			}
			rules = append(rules, rule)
		default:
			return nil, &ManifestError{Path: path, Reason: fmt.Sprintf("tool.maturin.%s[%d] must be a string or table", key, i)}
		}
	}
	return rules, nil
}
