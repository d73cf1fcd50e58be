// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/internal/dag"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type (
	// Options configures Resolve.
	Options struct {
		// Path is a project directory, a pyproject.toml or a Cargo.toml.
		Path string
		// Features are extra Cargo features requested for the build.
		Features []string
		// Locked requires a Cargo.lock to exist.
		Locked bool
		// Logger receives resolution diagnostics. Nil discards them.
		Logger *log.Logger
	}

	// LockState records the Cargo.lock that pins the dependency graph.
	LockState struct {
		// Path is the absolute lockfile path, empty when none was found.
		Path string
	}

	// Descriptor is the fully resolved, read-only view of a project.
	Descriptor struct {
		// ProjectDir is the directory holding pyproject.toml, or the crate
		// directory when there is none.
		ProjectDir string
		// PyProjectPath is the pyproject.toml path, empty when absent.
		PyProjectPath string
		PyProject     *PyProject
		// Packages is the arena of local crates; index 0 is the root crate.
		Packages []*Package
		// Order lists arena indices with each dependent before its dependencies.
		Order []int
		Lock  LockState
		// Locked is set when the build must use Cargo.lock as-is.
		Locked bool

		Bridge Bridge
		// ModuleName is the dotted import path of the native module.
		ModuleName string
		// PythonSource is the absolute directory containing the python
		// package of a mixed project, empty for pure Rust layouts.
		PythonSource   string
		PythonPackages []string
		// DataDir is the absolute wheel data directory, empty when absent.
		DataDir string
		Include []GlobRule
		Exclude []GlobRule
		// Features are the Cargo features requested on top of the defaults.
		Features      []string
		Compatibility string
		// SdistGenerator is the per-project listing strategy override.
		SdistGenerator string

		Metadata    pymeta.Metadata
		EntryPoints pymeta.EntryPoints
		// LicenseFiles are the absolute license file paths.
		LicenseFiles []string
		// ReadmePath is the absolute readme path, empty when none is used.
		ReadmePath string
	}

	resolver struct {
		logger     *log.Logger
		packages   []*Package
		byPath     map[string]int
		byName     map[string]int
		inProgress map[string]bool
		stack      []string
		// requirements records the first version requirement seen per manifest.
		requirements map[string]string
		graph        *dag.Graph
	}
)

// Present reports whether a lockfile was found.
func (l LockState) Present() bool {
	return l.Path != ""
}

// Root returns the root crate.
func (d *Descriptor) Root() *Package {
	return d.Packages[0]
}

// LocalDependencies returns the distinct local crates pkg depends on,
// excluding dev-dependencies, in declaration order.
func (d *Descriptor) LocalDependencies(pkg *Package) []*Package {
	seen := map[int]bool{}
	var out []*Package
	for _, dep := range pkg.Dependencies {
		if dep.Local < 0 || seen[dep.Local] {
			continue
		}
		seen[dep.Local] = true
		out = append(out, d.Packages[dep.Local])
	}
	return out
}

// ModuleBaseName returns the last component of the dotted module name.
func (d *Descriptor) ModuleBaseName() string {
	return d.ModuleName[strings.LastIndex(d.ModuleName, ".")+1:]
}

// TopLevelPackage returns the first component of the dotted module name.
func (d *Descriptor) TopLevelPackage() string {
	top, _, _ := strings.Cut(d.ModuleName, ".")
	return top
}

// Resolve reads the project at opts.Path and resolves the complete local
// dependency graph.
func Resolve(opts Options) (*Descriptor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	d, manifestPath, err := locate(opts.Path)
	if err != nil {
		return nil, err
	}

	r := &resolver{
		logger:       logger,
		byPath:       map[string]int{},
		byName:       map[string]int{},
		inProgress:   map[string]bool{},
		requirements: map[string]string{},
		graph:        dag.New(),
	}
	if _, err = r.load(manifestPath); err != nil {
		return nil, err
	}
	d.Packages = r.packages

	order, err := r.graph.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CyclicDependencyError{Chain: cycleErr.Cycle}
		}
		return nil, err
	}
	for _, path := range order {
		d.Order = append(d.Order, r.byPath[path])
	}

	root := d.Root()
	tool := d.PyProject.Maturin()
	d.Features = append(append([]string(nil), tool.Features...), opts.Features...)
	d.Locked = opts.Locked || tool.Locked
	d.Lock = findLock(root)
	if d.Locked && !d.Lock.Present() {
		return nil, &MissingLockfileError{ManifestPath: root.ManifestPath}
	}

	if d.Bridge, err = detectBridge(root, tool.Bindings, d.Features); err != nil {
		return nil, err
	}
	if d.Bridge.Abi3 {
		logger.Debug("stable ABI enabled", "crate", d.Bridge.Crate, "min", d.Bridge.Abi3Min)
	}

	if err = d.resolveLayout(tool, logger); err != nil {
		return nil, err
	}

	if d.Include, err = parseGlobRules(d.PyProjectPath, "include", tool.Include); err != nil {
		return nil, err
	}
	if d.Exclude, err = parseGlobRules(d.PyProjectPath, "exclude", tool.Exclude); err != nil {
		return nil, err
	}
	d.Compatibility = tool.Compatibility
	d.SdistGenerator = tool.SdistGenerator
	d.PythonPackages = tool.PythonPackages

	if err = d.buildMetadata(); err != nil {
		return nil, err
	}

	logger.Info("resolved project",
		"name", d.Metadata.Name,
		"version", d.Metadata.Version,
		"bindings", d.Bridge.Kind,
		"local_dependencies", len(d.Packages)-1)
	return d, nil
}

// locate finds the project directory, the optional pyproject.toml and the
// root Cargo manifest for path.
func locate(path string) (*Descriptor, string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", &ManifestError{Path: path, Reason: "cannot resolve path", Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", &ManifestError{Path: abs, Reason: "project path not found", Err: err}
	}

	d := &Descriptor{}
	var manifestPath string
	switch {
	case info.IsDir():
		d.ProjectDir = abs
	case filepath.Base(abs) == PyProjectName:
		d.ProjectDir = filepath.Dir(abs)
	default:
		d.ProjectDir = filepath.Dir(abs)
		manifestPath = abs
	}
	d.ProjectDir = canonicalPath(d.ProjectDir)

	pyPath := filepath.Join(d.ProjectDir, PyProjectName)
	if _, statErr := os.Stat(pyPath); statErr == nil {
		if d.PyProject, err = ReadPyProject(pyPath); err != nil {
			return nil, "", err
		}
		d.PyProjectPath = pyPath
	}

	if manifestPath == "" {
		manifestPath = filepath.Join(d.ProjectDir, CargoManifestName)
		if custom := d.PyProject.Maturin().ManifestPath; custom != "" {
			manifestPath = filepath.Join(d.ProjectDir, filepath.FromSlash(custom))
		}
	}
	return d, canonicalPath(manifestPath), nil
}

// load parses one manifest and, recursively, its local path dependencies.
// inProgress holds the manifests on the current resolution path so that a
// cycle is reported instead of recursing forever.
func (r *resolver) load(manifestPath string) (int, error) {
	if r.inProgress[manifestPath] {
		start := 0
		for i, p := range r.stack {
			if p == manifestPath {
				start = i
				break
			}
		}
		chain := append(append([]string(nil), r.stack[start:]...), manifestPath)
		return -1, &CyclicDependencyError{Chain: chain}
	}
	if idx, ok := r.byPath[manifestPath]; ok {
		return idx, nil
	}

	r.inProgress[manifestPath] = true
	r.stack = append(r.stack, manifestPath)
	defer func() {
		delete(r.inProgress, manifestPath)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	doc, err := ReadDocument(manifestPath)
	if err != nil {
		return -1, err
	}
	ws, err := findWorkspace(manifestPath, doc)
	if err != nil {
		return -1, err
	}
	if err = resolveInheritance(manifestPath, doc, ws); err != nil {
		return -1, err
	}
	pkg, err := parsePackage(manifestPath, doc, ws)
	if err != nil {
		return -1, err
	}

	if other, exists := r.byName[pkg.Name]; exists {
		return -1, &ManifestError{
			Path:   manifestPath,
			Reason: fmt.Sprintf("local crate name %q is also used by %s", pkg.Name, r.packages[other].ManifestPath),
		}
	}

	pkg.Index = len(r.packages)
	r.packages = append(r.packages, pkg)
	r.byPath[manifestPath] = pkg.Index
	r.byName[pkg.Name] = pkg.Index
	r.graph.AddNode(manifestPath)
	r.logger.Debug("loaded crate", "name", pkg.Name, "manifest", manifestPath)

	for i := range pkg.Dependencies {
		dep := &pkg.Dependencies[i]
		if dep.Path == "" || dep.IsDev() {
			continue
		}
		depManifest := canonicalPath(filepath.Join(pkg.Dir(), filepath.FromSlash(dep.Path), CargoManifestName))
		if err := r.checkRequirement(depManifest, *dep); err != nil {
			return -1, err
		}
		depIdx, err := r.load(depManifest)
		if err != nil {
			return -1, err
		}
		dep.Local = depIdx
		r.graph.AddEdge(manifestPath, depManifest)
	}

	return pkg.Index, nil
}

func (r *resolver) checkRequirement(manifestPath string, dep Dependency) error {
	if dep.Version == "" {
		return nil
	}
	previous, seen := r.requirements[manifestPath]
	if !seen {
		r.requirements[manifestPath] = dep.Version
		return nil
	}
	if previous != dep.Version {
		return &ConflictingRequirementError{
			Crate:        dep.Package,
			ManifestPath: manifestPath,
			Requirements: []string{previous, dep.Version},
		}
	}
	return nil
}

// resolveLayout decides the module name, the python source directory and
// the data directory.
func (d *Descriptor) resolveLayout(tool *ToolMaturin, logger *log.Logger) error {
	root := d.Root()
	switch {
	case tool.ModuleName != "":
		d.ModuleName = tool.ModuleName
	case d.Bridge.Kind != Binary && root.Lib != nil:
		d.ModuleName = root.Lib.Name
	default:
		d.ModuleName = strings.ReplaceAll(root.Name, "-", "_")
	}
	for _, part := range strings.Split(d.ModuleName, ".") {
		if !identifierPattern.MatchString(part) {
			return &ManifestError{Path: d.PyProjectPath, Reason: fmt.Sprintf("module name %q is not a valid python import path", d.ModuleName)}
		}
	}

	source := d.ProjectDir
	if tool.PythonSource != "" {
		source = filepath.Join(d.ProjectDir, filepath.FromSlash(tool.PythonSource))
		if !isDir(source) {
			logger.Warn("python-source does not exist, using a pure Rust layout", "python_source", source)
			source = ""
		}
	}
	if source != "" && isDir(filepath.Join(source, d.TopLevelPackage())) {
		d.PythonSource = source
	} else if tool.PythonSource != "" && source != "" {
		logger.Warn("python-source has no package named after the module, using a pure Rust layout",
			"python_source", source, "package", d.TopLevelPackage())
	}

	switch {
	case tool.Data != "":
		d.DataDir = filepath.Join(d.ProjectDir, filepath.FromSlash(tool.Data))
		if !isDir(d.DataDir) {
			return &ManifestError{Path: d.PyProjectPath, Reason: "tool.maturin.data directory does not exist: " + d.DataDir}
		}
	default:
		candidate := filepath.Join(d.ProjectDir, d.TopLevelPackage()+".data")
		if isDir(candidate) {
			d.DataDir = candidate
		}
	}
	return nil
}

// findLock looks for Cargo.lock at the workspace root, then next to the crate.
func findLock(root *Package) LockState {
	var candidates []string
	if root.Workspace != nil {
		candidates = append(candidates, filepath.Join(root.Workspace.Root, CargoLockName))
	}
	candidates = append(candidates, filepath.Join(root.Dir(), CargoLockName))
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return LockState{Path: candidate}
		}
	}
	return LockState{}
}

// canonicalPath cleans path and resolves symlinks when possible, so one crate
// reached through different relative paths maps to one arena entry.
func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
