// SPDX-License-Identifier: MPL-2.0

package develop

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

// Uninstall removes every installed distribution named name from env: the
// files its RECORD lists, directories left empty by them and the dist-info
// directory. It returns the removed dist-info directory names.
func Uninstall(env *Environment, name string, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	entries, err := os.ReadDir(env.SitePackages)
	if err != nil {
		return nil, &archive.IOError{Op: "read", Path: env.SitePackages, Err: err}
	}

	want := pymeta.NormalizeName(name)
	var removed []string
	for _, entry := range entries {
		distName, ok := strings.CutSuffix(entry.Name(), ".dist-info")
		if !ok || !entry.IsDir() {
			continue
		}
		distName, _, _ = strings.Cut(distName, "-")
		if pymeta.NormalizeName(distName) != want {
			continue
		}
		distInfo := filepath.Join(env.SitePackages, entry.Name())
		if err := removeRecorded(env.SitePackages, distInfo, logger); err != nil {
			return nil, err
		}
		if err := os.RemoveAll(distInfo); err != nil {
			return nil, &archive.IOError{Op: "remove", Path: distInfo, Err: err}
		}
		logger.Info("removed previous install", "dist_info", entry.Name())
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

func removeRecorded(sitePackages, distInfo string, logger *log.Logger) error {
	data, err := os.ReadFile(filepath.Join(distInfo, wheel.RecordFile))
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("previous install has no RECORD, removing its dist-info only", "dist_info", distInfo)
		return nil
	}
	if err != nil {
		return &archive.IOError{Op: "read", Path: distInfo, Err: err}
	}
	records, err := archive.ParseRecord(data)
	if err != nil {
		return &archive.IOError{Op: "parse", Path: filepath.Join(distInfo, wheel.RecordFile), Err: err}
	}

	dirs := make(map[string]bool)
	for _, rec := range records {
		p := filepath.Join(sitePackages, filepath.FromSlash(rec.Path))
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &archive.IOError{Op: "remove", Path: p, Err: err}
		}
		for dir := filepath.Dir(p); dir != sitePackages && strings.HasPrefix(dir, sitePackages+string(filepath.Separator)); dir = filepath.Dir(dir) {
			dirs[dir] = true
		}
	}

	// Deepest first, so parents become empty before they are tried.
	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	slices.SortFunc(ordered, func(a, b string) int { return len(b) - len(a) })
	for _, dir := range ordered {
		_ = os.Remove(dir)
	}
	return nil
}
