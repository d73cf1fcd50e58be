// SPDX-License-Identifier: MPL-2.0

package wheel

import (
	"path"
	"path/filepath"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
)

// Names of the dist-info records.
const (
	MetadataFile    = "METADATA"
	WheelFile       = "WHEEL"
	RecordFile      = "RECORD"
	EntryPointsFile = "entry_points.txt"
	LicensesDir     = "licenses"
)

// DefaultGenerator is written to WHEEL when no generator is configured.
const DefaultGenerator = "maturin"

// MetadataEntries returns METADATA, entry_points.txt when entry points are
// declared, and the license files below distInfo.
func MetadataEntries(d *project.Descriptor, distInfo string) []archive.Entry {
	entries := []archive.Entry{
		{Path: path.Join(distInfo, MetadataFile), Data: []byte(d.Metadata.Render())},
	}
	if !d.EntryPoints.Empty() {
		entries = append(entries, archive.Entry{Path: path.Join(distInfo, EntryPointsFile), Data: []byte(d.EntryPoints.Render())})
	}
	for _, license := range d.LicenseFiles {
		entries = append(entries, archive.Entry{
			Path:   path.Join(distInfo, LicensesDir, filepath.Base(license)),
			Source: license,
		})
	}
	return entries
}

// WheelEntry returns the WHEEL record for the given full wheel tag.
func WheelEntry(distInfo, generator, tag string) archive.Entry {
	if generator == "" {
		generator = DefaultGenerator
	}
	info := pymeta.WheelInfo{Generator: generator, Tags: []string{tag}}
	return archive.Entry{Path: path.Join(distInfo, WheelFile), Data: []byte(info.Render())}
}

// FileName returns the wheel file name for the descriptor and full tag.
func FileName(d *project.Descriptor, tag string) string {
	return pymeta.EscapeName(d.Metadata.Name) + "-" + pymeta.EscapeVersion(d.Metadata.Version) + "-" + tag + ".whl"
}
