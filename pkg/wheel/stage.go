// SPDX-License-Identifier: MPL-2.0

package wheel

import (
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
	"github.com/zhaixiaojuan/maturin/pkg/platform"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
	"github.com/zhaixiaojuan/maturin/pkg/target"
)

// dataSchemes are the subdirectories allowed in a wheel .data directory.
var dataSchemes = []string{"data", "headers", "platlib", "purelib", "scripts"}

// nativeSuffixes mark compiled leftovers in a python source tree.
var nativeSuffixes = []string{".so", ".pyd", ".dylib", ".dll"}

type (
	// Artifacts are the compiled outputs of the native build.
	Artifacts struct {
		// Library is the cdylib of the extension module, cffi and uniffi
		// bridges.
		Library string
		// Bindings is the generated python glue of the cffi (ffi.py) and
		// uniffi bridges.
		Bindings string
		// Binaries maps executable names to paths for the bin bridge.
		Binaries map[string]string
	}

	// StageOptions configures Stage.
	StageOptions struct {
		Descriptor  *project.Descriptor
		Artifacts   Artifacts
		Triple      target.Triple
		Interpreter target.InterpreterTag
		Logger      *log.Logger
	}

	// Layout is the staged install tree. Paths are relative to the wheel
	// root.
	Layout struct {
		// DistInfo and Data are the metadata and data directory names.
		DistInfo string
		Data     string
		// Native are the compiled modules and their generated glue.
		Native []archive.Entry
		// Python are the files of the python source packages.
		Python []archive.Entry
		// Other are data directory files, executables and wheel includes.
		Other []archive.Entry
	}

	stager struct {
		opts    StageOptions
		desc    *project.Descriptor
		logger  *log.Logger
		exclude listing.Patterns
		layout  *Layout
	}
)

// Entries returns every staged file sorted by path.
func (l *Layout) Entries() []archive.Entry {
	out := make([]archive.Entry, 0, len(l.Native)+len(l.Python)+len(l.Other))
	out = append(out, l.Native...)
	out = append(out, l.Python...)
	out = append(out, l.Other...)
	slices.SortFunc(out, func(a, b archive.Entry) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Stage places the artifacts and project files of a wheel. Nothing is
// written to disk.
func Stage(opts StageOptions) (*Layout, error) {
	d := opts.Descriptor
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	exclude, err := listing.CompilePatterns(wheelPatterns(d.Exclude))
	if err != nil {
		return nil, err
	}
	s := &stager{
		opts:    opts,
		desc:    d,
		logger:  opts.Logger,
		exclude: exclude,
		layout: &Layout{
			DistInfo: pymeta.DistInfoDir(d.Metadata.Name, d.Metadata.Version),
			Data:     pymeta.DataDir(d.Metadata.Name, d.Metadata.Version),
		},
	}

	switch d.Bridge.Kind {
	case project.ExtensionModule:
		err = s.stageExtension()
	case project.ForeignFunction:
		err = s.stageCffi()
	case project.UniversalInterface:
		err = s.stageUniffi()
	case project.Binary:
		err = s.stageBinaries()
	default:
		err = fmt.Errorf("unsupported bridge %s", d.Bridge.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err = s.stagePython(); err != nil {
		return nil, err
	}
	if err = s.stageData(); err != nil {
		return nil, err
	}
	if err = s.stageIncludes(); err != nil {
		return nil, err
	}

	for _, e := range s.layout.Entries() {
		if component := platform.ReservedPathComponent(e.Path); component != "" {
			return nil, &ReservedPathError{Path: e.Path, Component: component}
		}
	}
	s.logger.Debug("staged wheel", "native", len(s.layout.Native), "python", len(s.layout.Python), "other", len(s.layout.Other))
	return s.layout, nil
}

// modulePath splits the module name into its package directory and base.
func (s *stager) modulePath() (dir, base string) {
	parts := strings.Split(s.desc.ModuleName, ".")
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}

func (s *stager) mixed() bool {
	return s.desc.PythonSource != ""
}

func (s *stager) stageExtension() error {
	lib, err := s.require("library", s.opts.Artifacts.Library)
	if err != nil {
		return err
	}
	dir, base := s.modulePath()
	file := base + target.ExtensionSuffix(s.opts.Triple, s.opts.Interpreter)

	if dir != "" {
		s.native(path.Join(dir, file), lib)
		return nil
	}
	s.native(path.Join(base, file), lib)
	if s.mixed() {
		// The python package named after the module imports the
		// extension from inside itself.
		return nil
	}

	// A pure layout gets a package re-exporting the extension.
	s.generated(path.Join(base, "__init__.py"), fmt.Sprintf(
		"from .%[1]s import *\n\n__doc__ = %[1]s.__doc__\nif hasattr(%[1]s, \"__all__\"):\n    __all__ = %[1]s.__all__\n", base))
	stub := filepath.Join(s.desc.Root().Dir(), base+".pyi")
	if info, err := os.Stat(stub); err == nil && !info.IsDir() {
		s.layout.Native = append(s.layout.Native, archive.Entry{Path: path.Join(base, "__init__.pyi"), Source: stub})
		s.generated(path.Join(base, "py.typed"), "")
	}
	return nil
}

func (s *stager) stageCffi() error {
	lib, err := s.require("library", s.opts.Artifacts.Library)
	if err != nil {
		return err
	}
	bindings, err := s.require("bindings", s.opts.Artifacts.Bindings)
	if err != nil {
		return err
	}
	dir, base := s.modulePath()
	pkg := path.Join(dir, base)
	libName := filepath.Base(lib)

	s.native(path.Join(pkg, libName), lib)
	s.native(path.Join(pkg, "ffi.py"), bindings)
	if !s.mixed() {
		s.generated(path.Join(pkg, "__init__.py"), fmt.Sprintf(
			"__all__ = [\"lib\", \"ffi\"]\n\nimport os\nfrom .ffi import ffi\n\nlib = ffi.dlopen(os.path.join(os.path.dirname(__file__), %q))\ndel os\n", libName))
	}
	return nil
}

func (s *stager) stageUniffi() error {
	lib, err := s.require("library", s.opts.Artifacts.Library)
	if err != nil {
		return err
	}
	bindings, err := s.require("bindings", s.opts.Artifacts.Bindings)
	if err != nil {
		return err
	}
	dir, base := s.modulePath()
	pkg := path.Join(dir, base)
	glue := filepath.Base(bindings)

	s.native(path.Join(pkg, filepath.Base(lib)), lib)
	s.native(path.Join(pkg, glue), bindings)
	if !s.mixed() {
		s.generated(path.Join(pkg, "__init__.py"), fmt.Sprintf("from .%s import *  # NOQA\n", strings.TrimSuffix(glue, ".py")))
	}
	return nil
}

func (s *stager) stageBinaries() error {
	bins := s.opts.Artifacts.Binaries
	if len(bins) == 0 {
		return &MissingArtifactError{Bridge: s.desc.Bridge.Kind, Artifact: "binary"}
	}
	names := make([]string, 0, len(bins))
	for name := range bins {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		src, err := s.require(name, bins[name])
		if err != nil {
			return err
		}
		exe := strings.TrimSuffix(name, s.opts.Triple.ExecutableExt()) + s.opts.Triple.ExecutableExt()
		s.layout.Native = append(s.layout.Native, archive.Entry{
			Path:       path.Join(s.layout.Data, "scripts", exe),
			Source:     src,
			Executable: true,
		})
	}
	return nil
}

// stagePython adds the python packages of a mixed layout. Compiled
// leftovers of earlier editable installs next to the native module are
// skipped.
func (s *stager) stagePython() error {
	if !s.mixed() {
		return nil
	}
	dir, base := s.modulePath()
	staged := make(map[string]bool, len(s.layout.Native))
	for _, e := range s.layout.Native {
		staged[e.Path] = true
	}

	for _, pkg := range append([]string{s.desc.TopLevelPackage()}, s.desc.PythonPackages...) {
		root := filepath.Join(s.desc.PythonSource, filepath.FromSlash(pkg))
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			s.logger.Debug("python package not found", "package", pkg, "dir", root)
			continue
		}
		l, err := listing.List(listing.Options{Root: root, Logger: s.logger})
		if err != nil {
			return err
		}
		for _, f := range l.Files {
			rel := path.Join(pkg, f.Path)
			if staged[rel] || s.excluded(rel) || isNativeLeftover(rel, dir, base) {
				continue
			}
			s.layout.Python = append(s.layout.Python, archive.Entry{Path: rel, Source: f.Source})
		}
	}
	return nil
}

func isNativeLeftover(rel, dir, base string) bool {
	parent := path.Dir(rel)
	if parent != path.Join(".", dir) && parent != path.Join(dir, base) {
		return false
	}
	return slices.ContainsFunc(nativeSuffixes, func(suffix string) bool { return strings.HasSuffix(rel, suffix) })
}

// stageData maps <module>.data/<scheme>/... to <dist>-<version>.data/<scheme>/....
func (s *stager) stageData() error {
	if s.desc.DataDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.desc.DataDir)
	if err != nil {
		return &archive.IOError{Op: "read", Path: s.desc.DataDir, Err: err}
	}
	for _, entry := range entries {
		if !entry.IsDir() || !slices.Contains(dataSchemes, entry.Name()) {
			return &project.ManifestError{
				Path:   s.desc.DataDir,
				Reason: fmt.Sprintf("%q is not a wheel data scheme (expected one of %s)", entry.Name(), strings.Join(dataSchemes, ", ")),
			}
		}
		l, err := listing.List(listing.Options{
			Root:           filepath.Join(s.desc.DataDir, entry.Name()),
			NestedPackages: true,
			Logger:         s.logger,
		})
		if err != nil {
			return err
		}
		for _, f := range l.Files {
			rel := path.Join(s.layout.Data, entry.Name(), f.Path)
			if s.excluded(rel) {
				continue
			}
			s.layout.Other = append(s.layout.Other, archive.Entry{Path: rel, Source: f.Source, Executable: entry.Name() == "scripts"})
		}
	}
	return nil
}

// stageIncludes places the files matched by wheel include rules at the
// wheel root, relative to the project directory.
func (s *stager) stageIncludes() error {
	includes := wheelPatterns(s.desc.Include)
	if len(includes) == 0 {
		return nil
	}
	l, err := listing.List(listing.Options{
		Root:           s.desc.ProjectDir,
		Include:        includes,
		Extra:          includes,
		Exclude:        s.exclude,
		NestedPackages: true,
		Logger:         s.logger,
	})
	if err != nil {
		return err
	}
	staged := make(map[string]bool)
	for _, e := range s.layout.Entries() {
		staged[e.Path] = true
	}
	for _, f := range l.Files {
		if staged[f.Path] {
			s.logger.Debug("include already staged", "path", f.Path)
			continue
		}
		staged[f.Path] = true
		s.layout.Other = append(s.layout.Other, archive.Entry{Path: f.Path, Source: f.Source})
	}
	return nil
}

func (s *stager) require(artifact, p string) (string, error) {
	kind := s.desc.Bridge.Kind
	if p == "" {
		return "", &MissingArtifactError{Bridge: kind, Artifact: artifact}
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", &MissingArtifactError{Bridge: kind, Artifact: artifact, Path: p, Err: err}
	}
	if info.IsDir() {
		return "", &MissingArtifactError{Bridge: kind, Artifact: artifact, Path: p, Err: fmt.Errorf("is a directory")}
	}
	return p, nil
}

func (s *stager) native(rel, src string) {
	s.layout.Native = append(s.layout.Native, archive.Entry{Path: rel, Source: src})
}

func (s *stager) generated(rel, content string) {
	s.layout.Native = append(s.layout.Native, archive.Entry{Path: rel, Data: []byte(content)})
}

func (s *stager) excluded(rel string) bool {
	if s.exclude.Match(rel) {
		s.logger.Debug("excluded from wheel", "path", rel)
		return true
	}
	return false
}

// wheelPatterns returns the patterns of the rules that apply to wheels.
func wheelPatterns(rules []project.GlobRule) []string {
	var out []string
	for _, r := range rules {
		if r.Applies(project.FormatWheel) {
			out = append(out, r.Pattern)
		}
	}
	return out
}
