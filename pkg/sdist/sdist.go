// SPDX-License-Identifier: MPL-2.0

package sdist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/listing"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
)

const (
	// VendorDir is the archive directory holding vendored path dependencies.
	VendorDir = "local_dependencies"
	// MarkerName is the archive file recording the rewritten root manifest.
	MarkerName = ".sdist-manifest.toml"
	// PkgInfoName is the core metadata file of a source distribution.
	PkgInfoName = "PKG-INFO"
)

type (
	// Options configures NewPlan and Build.
	Options struct {
		Descriptor *project.Descriptor
		// Strategy overrides the project's sdist-generator setting.
		Strategy listing.Strategy
		// FallbackToFilesystem switches the git strategy to a directory
		// walk when the project is not inside a repository.
		FallbackToFilesystem bool
		Compression          archive.Compression
		Timestamps           archive.Timestamps
		// OutDir receives the archive. It is created when missing.
		OutDir string
		Logger *log.Logger
	}

	// Plan is the complete content of a source distribution.
	Plan struct {
		// Prefix is the top-level directory, "{name}-{version}".
		Prefix   string
		Strategy listing.Strategy
		// Entries are the archive files, paths including Prefix.
		Entries []archive.Entry
		// Dirs maps each arena index to its directory below Prefix.
		Dirs []string
		// RootManifest is the rewritten root Cargo.toml.
		RootManifest []byte
	}

	planner struct {
		desc     *project.Descriptor
		logger   *log.Logger
		strategy listing.Strategy
		exclude  listing.Patterns
		dirs     []string
		files    map[string]archive.Entry
	}
)

// FileName returns the archive file name for the compression.
func (p *Plan) FileName(c archive.Compression) string {
	return p.Prefix + c.Extension()
}

// Paths returns the archive paths in sorted order.
func (p *Plan) Paths() []string {
	out := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Path
	}
	return out
}

// NewPlan computes the files of the source distribution without writing
// anything.
func NewPlan(opts Options) (*Plan, error) {
	d := opts.Descriptor
	if d == nil {
		return nil, errors.New("sdist: no project descriptor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	strategy := opts.Strategy
	if strategy == "" {
		var err error
		if strategy, err = listing.ParseStrategy(d.SdistGenerator); err != nil {
			return nil, &project.ManifestError{Path: d.PyProjectPath, Reason: "invalid tool.maturin.sdist-generator", Err: err}
		}
	}

	b := &planner{
		desc:     d,
		logger:   logger,
		strategy: strategy,
		files:    make(map[string]archive.Entry),
	}
	var err error
	if b.exclude, err = listing.CompilePatterns(rulePatterns(d.Exclude)); err != nil {
		return nil, err
	}
	if err = b.layout(); err != nil {
		return nil, err
	}

	if b.strategy == listing.StrategyGit {
		err = b.addTracked(opts.FallbackToFilesystem)
	}
	if err == nil && b.strategy == listing.StrategyFilesystem {
		err = b.addWalked()
	}
	if err != nil {
		return nil, err
	}
	for _, idx := range d.Order {
		if idx == 0 {
			continue
		}
		if err = b.addPackage(idx, b.dirs[idx]); err != nil {
			return nil, err
		}
	}

	rootManifest, err := b.addGenerated()
	if err != nil {
		return nil, err
	}

	prefix := pymeta.EscapeName(d.Metadata.Name) + "-" + pymeta.EscapeVersion(d.Metadata.Version)
	plan := &Plan{Prefix: prefix, Strategy: b.strategy, Dirs: b.dirs, RootManifest: rootManifest}
	keys := make([]string, 0, len(b.files))
	for k := range b.files {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		e := b.files[k]
		e.Path = path.Join(prefix, k)
		plan.Entries = append(plan.Entries, e)
	}
	logger.Debug("planned source distribution", "prefix", prefix, "strategy", string(b.strategy), "files", len(plan.Entries))
	return plan, nil
}

// Build writes the source distribution to opts.OutDir and returns its path.
func Build(opts Options) (string, error) {
	plan, err := NewPlan(opts)
	if err != nil {
		return "", err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	compression := opts.Compression
	if compression == "" {
		compression = archive.Gzip
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err = os.MkdirAll(outDir, 0o755); err != nil {
		return "", &archive.IOError{Op: "create", Path: outDir, Err: err}
	}
	dest := filepath.Join(outDir, plan.FileName(compression))

	tmp, err := os.CreateTemp(outDir, ".sdist-*")
	if err != nil {
		return "", &archive.IOError{Op: "create", Path: outDir, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err = archive.WriteTar(tmp, plan.Entries, archive.TarOptions{Timestamps: opts.Timestamps, Compression: compression}); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", &archive.IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return "", &archive.IOError{Op: "rename", Path: dest, Err: err}
	}

	logger.Info("built source distribution", "path", dest, "files", len(plan.Entries))
	return dest, nil
}

// layout assigns every package its directory inside the archive. The root
// crate keeps its place relative to the project; every local dependency
// moves to local_dependencies/<name>.
func (b *planner) layout() error {
	d := b.desc
	rootRel, ok := relDir(d.ProjectDir, d.Root().Dir())
	if !ok {
		return &project.ManifestError{
			Path:   d.Root().ManifestPath,
			Reason: fmt.Sprintf("crate directory lies outside the project directory %s", d.ProjectDir),
		}
	}
	b.dirs = make([]string, len(d.Packages))
	b.dirs[0] = rootRel
	for _, pkg := range d.Packages[1:] {
		b.dirs[pkg.Index] = VendorDir + "/" + pkg.Name
	}
	return nil
}

// addTracked lists the project through git. Files of vendored crates that
// live inside the project are dropped from their original location.
func (b *planner) addTracked(fallback bool) error {
	d := b.desc
	l, err := listing.List(listing.Options{
		Root:           d.ProjectDir,
		Strategy:       listing.StrategyGit,
		Exclude:        b.exclude,
		Extra:          rulePatterns(d.Include),
		NestedPackages: true,
		Logger:         b.logger,
	})
	if err != nil {
		if fallback && errors.Is(err, listing.ErrNotInRepository) {
			b.logger.Warn("project is not in a git repository, using the filesystem listing", "dir", d.ProjectDir)
			b.strategy = listing.StrategyFilesystem
			return nil
		}
		return err
	}

	var vendored []string
	for _, pkg := range d.Packages[1:] {
		if rel, ok := relDir(d.ProjectDir, pkg.Dir()); ok && rel != "" {
			vendored = append(vendored, rel+"/")
		}
	}
	for _, f := range l.Files {
		if slices.ContainsFunc(vendored, func(dir string) bool { return strings.HasPrefix(f.Path, dir) }) {
			continue
		}
		b.add(f.Path, f.Source)
	}
	return nil
}

// addWalked lists the root crate like cargo package, plus the python
// sources and the project files the metadata refers to.
func (b *planner) addWalked() error {
	d := b.desc
	if err := b.addPackage(0, b.dirs[0]); err != nil {
		return err
	}

	if src := d.PythonSource; src != "" && !within(d.Root().Dir(), src) {
		var roots []string
		if src != d.ProjectDir {
			roots = append(roots, src)
		} else {
			for _, name := range append([]string{d.TopLevelPackage()}, d.PythonPackages...) {
				roots = append(roots, filepath.Join(src, name))
			}
		}
		for _, root := range roots {
			if info, err := os.Stat(root); err != nil || !info.IsDir() {
				continue
			}
			rel, _ := relDir(d.ProjectDir, root)
			if err := b.addListing(listing.Options{Root: root}, rel); err != nil {
				return err
			}
		}
	}

	for _, f := range append([]string{d.ReadmePath}, d.LicenseFiles...) {
		if f == "" {
			continue
		}
		if rel, ok := relDir(d.ProjectDir, f); ok && rel != "" {
			b.add(rel, f)
		}
	}

	if includes := rulePatterns(d.Include); len(includes) > 0 {
		opts := listing.Options{Root: d.ProjectDir, Include: includes, Extra: includes, NestedPackages: true}
		if err := b.addListing(opts, ""); err != nil {
			return err
		}
	}
	return nil
}

// addPackage lists one crate with its own include and exclude rules and
// places the files under dir.
func (b *planner) addPackage(idx int, dir string) error {
	pkg := b.desc.Packages[idx]
	return b.addListing(listing.Options{Root: pkg.Dir(), Include: pkg.Include, Exclude: pkg.Exclude}, dir)
}

func (b *planner) addListing(opts listing.Options, dir string) error {
	opts.Logger = b.logger
	l, err := listing.List(opts)
	if err != nil {
		return err
	}
	for _, f := range l.Files {
		b.add(path.Join(dir, f.Path), f.Source)
	}
	return nil
}

// add records a listed file unless a project exclude rule matches it.
func (b *planner) add(rel, src string) {
	if b.exclude.Match(rel) {
		b.logger.Debug("excluded from source distribution", "path", rel)
		return
	}
	b.files[rel] = archive.Entry{Source: src}
}

// addGenerated writes the rewritten manifests, the lockfile, pyproject.toml,
// PKG-INFO and the marker. Generated files replace listed ones.
func (b *planner) addGenerated() ([]byte, error) {
	d := b.desc
	var rootManifest []byte
	for idx := range d.Packages {
		data, extra, err := b.rewriteManifest(idx)
		if err != nil {
			return nil, err
		}
		b.files[path.Join(b.dirs[idx], project.CargoManifestName)] = archive.Entry{Data: data}
		for _, e := range extra {
			b.files[e.Path] = archive.Entry{Source: e.Source}
		}
		if idx == 0 {
			rootManifest = data
		}
	}

	if d.Lock.Present() {
		b.files[path.Join(b.dirs[0], project.CargoLockName)] = archive.Entry{Source: d.Lock.Path}
	}
	if d.PyProjectPath != "" {
		b.files[project.PyProjectName] = archive.Entry{Source: d.PyProjectPath}
	}
	b.files[PkgInfoName] = archive.Entry{Data: []byte(d.Metadata.Render())}
	b.files[MarkerName] = archive.Entry{Data: rootManifest}
	return rootManifest, nil
}

// rulePatterns returns the patterns of the rules that apply to sdists.
func rulePatterns(rules []project.GlobRule) []string {
	var out []string
	for _, r := range rules {
		if r.Applies(project.FormatSdist) {
			out = append(out, r.Pattern)
		}
	}
	return out
}
