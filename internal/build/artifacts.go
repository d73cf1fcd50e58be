// SPDX-License-Identifier: MPL-2.0

package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/target"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

// Cargo profile output directories.
const (
	ReleaseProfile = "release"
	DebugProfile   = "debug"
)

// CargoTargetDir returns the cargo output directory of the project:
// $CARGO_TARGET_DIR, else target/ below the workspace root or the crate.
func CargoTargetDir(d *project.Descriptor) string {
	if dir := os.Getenv("CARGO_TARGET_DIR"); dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(d.ProjectDir, dir)
	}
	root := d.Root()
	if root.Workspace != nil {
		return filepath.Join(root.Workspace.Root, "target")
	}
	return filepath.Join(root.Dir(), "target")
}

// ArtifactDir returns the directory cargo writes profile outputs to. A
// cross build (explicit triple) nests them below the triple.
func ArtifactDir(d *project.Descriptor, crossTriple, profile string) string {
	dir := CargoTargetDir(d)
	if crossTriple != "" {
		dir = filepath.Join(dir, crossTriple)
	}
	return filepath.Join(dir, profile)
}

// LibraryFileName returns the file name cargo gives the cdylib of the root
// crate on the triple.
func LibraryFileName(d *project.Descriptor, triple target.Triple) string {
	root := d.Root()
	name := strings.ReplaceAll(root.Name, "-", "_")
	if root.Lib != nil && root.Lib.Name != "" {
		name = root.Lib.Name
	}
	prefix := "lib"
	if triple.OS == target.Windows || triple.OS == target.Wasi {
		prefix = ""
	}
	return prefix + name + triple.SharedLibraryExt()
}

// DiscoverArtifacts fills the artifacts given leaves unset with their
// default locations in dir. Missing files are left for the builder to
// report.
func DiscoverArtifacts(d *project.Descriptor, triple target.Triple, dir string, given wheel.Artifacts) wheel.Artifacts {
	out := given
	if d.Bridge.Kind == project.Binary {
		if len(out.Binaries) == 0 {
			out.Binaries = make(map[string]string, len(d.Root().Bins))
			for _, bin := range d.Root().Bins {
				out.Binaries[bin] = filepath.Join(dir, bin+triple.ExecutableExt())
			}
		}
		return out
	}
	if out.Library == "" {
		out.Library = filepath.Join(dir, LibraryFileName(d, triple))
	}
	return out
}
