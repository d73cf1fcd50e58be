// SPDX-License-Identifier: MPL-2.0

package sdist

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/project"
)

// relocatedFields are the [package] keys holding paths relative to the
// crate that may point outside of it.
var relocatedFields = []string{"readme", "license-file"}

type depKey struct {
	section string
	target  string
	key     string
}

// rewriteManifest returns the manifest of the package at idx prepared for
// the archive, and the files outside the crate it still refers to.
func (b *planner) rewriteManifest(idx int) ([]byte, []archive.Entry, error) {
	pkg := b.desc.Packages[idx]
	doc := pkg.Document.Clone()

	local := make(map[depKey]int)
	for _, dep := range pkg.Dependencies {
		if dep.Local >= 0 {
			local[depKey{dep.Section, dep.Target, dep.Key}] = dep.Local
		}
	}

	for _, table := range doc.DependencyTables() {
		for key, raw := range table.Entries {
			entry, ok := raw.(map[string]any)
			if !ok || entry["path"] == nil {
				continue
			}
			if table.Section == "dev-dependencies" {
				// Dev path dependencies are not vendored; cargo ignores
				// them once they are gone from the manifest.
				delete(table.Entries, key)
				b.logger.Debug("dropped dev path dependency", "crate", pkg.Name, "dependency", key)
				continue
			}
			depIdx, ok := local[depKey{table.Section, table.Target, key}]
			if !ok {
				continue
			}
			entry["path"] = relativeDir(b.dirs[idx], b.dirs[depIdx])
		}
	}

	var extra []archive.Entry
	if pkgTable := doc.Table("package"); pkgTable != nil {
		delete(pkgTable, "workspace")
		for _, field := range relocatedFields {
			value := pkgTable.String(field)
			if value == "" {
				continue
			}
			src := filepath.Join(pkg.Dir(), filepath.FromSlash(value))
			if within(pkg.Dir(), src) {
				continue
			}
			base := path.Base(filepath.ToSlash(value))
			pkgTable[field] = base
			extra = append(extra, archive.Entry{Path: path.Join(b.dirs[idx], base), Source: src})
		}
	}

	if idx == 0 {
		// An empty workspace stops cargo from looking for the original
		// workspace above the unpacked archive.
		doc["workspace"] = map[string]any{}
	} else {
		delete(doc, "workspace")
	}

	data, err := doc.Marshal()
	if err != nil {
		return nil, nil, &project.ManifestError{Path: pkg.ManifestPath, Reason: "cannot encode rewritten manifest", Err: err}
	}
	return data, extra, nil
}

// relativeDir returns the slash path of to relative to from. Both are
// slash-separated and relative to the archive prefix.
func relativeDir(from, to string) string {
	if from == "" {
		from = "."
	}
	if to == "" {
		to = "."
	}
	rel, err := filepath.Rel(filepath.FromSlash(from), filepath.FromSlash(to))
	if err != nil {
		return to
	}
	return filepath.ToSlash(rel)
}

// relDir returns dir relative to base in slash form, "" when equal.
// ok is false when dir lies outside base.
func relDir(base, dir string) (rel string, ok bool) {
	r, err := filepath.Rel(base, dir)
	if err != nil {
		return "", false
	}
	r = filepath.ToSlash(r)
	if r == ".." || strings.HasPrefix(r, "../") {
		return "", false
	}
	if r == "." {
		return "", true
	}
	return r, true
}

func within(base, p string) bool {
	_, ok := relDir(base, p)
	return ok
}
