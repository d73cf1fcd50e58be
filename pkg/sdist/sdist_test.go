// SPDX-License-Identifier: MPL-2.0

package sdist

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/zhaixiaojuan/maturin/internal/testutil"
	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/listing"
	"github.com/zhaixiaojuan/maturin/pkg/project"
)

const cdylib = `
[lib]
crate-type = ["cdylib"]
`

func resolve(t *testing.T, path string) *project.Descriptor {
	t.Helper()
	d, err := project.Resolve(project.Options{Path: path})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return d
}

func plan(t *testing.T, opts Options) *Plan {
	t.Helper()
	p, err := NewPlan(opts)
	if err != nil {
		t.Fatalf("NewPlan() error: %v", err)
	}
	return p
}

func withPrefix(prefix string, paths ...string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = prefix + "/" + p
	}
	slices.Sort(out)
	return out
}

type tarFile struct {
	data    []byte
	mode    int64
	modTime time.Time
}

func readSdist(t *testing.T, path string) map[string]tarFile {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.MustClose(t, f)
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error: %v", err)
	}
	tr := tar.NewReader(gz)
	out := map[string]tarFile{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next() error: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		out[hdr.Name] = tarFile{data: data, mode: hdr.Mode, modTime: hdr.ModTime}
	}
	return out
}

func parseManifest(t *testing.T, data []byte) project.Document {
	t.Helper()
	doc, err := project.ParseDocument("Cargo.toml", data)
	if err != nil {
		t.Fatalf("rewritten manifest does not parse: %v", err)
	}
	return doc
}

// nestedProject has one path dependency two directories deep and a shared
// crate reached through two different relative paths.
func nestedProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml": "[project]\nname = \"my-project\"\n",
		"Cargo.toml": `[package]
name = "my-project"
version = "0.1.0"
` + cdylib + `
[dependencies]
pyo3 = "0.22"
inner = { path = "crates/deep/inner" }

[target.'cfg(unix)'.dependencies]
unix_dep = { path = "vendor/unix_dep" }

[dev-dependencies]
testing = { path = "../testing" }
`,
		"Cargo.lock":                     "version = 3\n",
		"src/lib.rs":                     "",
		"crates/deep/inner/Cargo.toml":   "[package]\nname = \"inner\"\nversion = \"0.1.0\"\n\n[dependencies]\nshared = { path = \"../../../shared\" }\n",
		"crates/deep/inner/src/lib.rs":   "",
		"vendor/unix_dep/Cargo.toml":     "[package]\nname = \"unix_dep\"\nversion = \"0.1.0\"\n\n[dependencies]\nshared = { path = \"../../shared\" }\n",
		"vendor/unix_dep/src/lib.rs":     "",
		"shared/Cargo.toml":              "[package]\nname = \"shared\"\nversion = \"0.1.0\"\n",
		"shared/src/lib.rs":              "",
		"target/wheels/stale.whl":        "",
		"src/__pycache__/cached.cpython": "",
	})
	return dir
}

// =============================================================================
// Vendoring
// =============================================================================

func TestBuild_VendorsLocalDependencies(t *testing.T) {
	t.Parallel()

	dir := nestedProject(t)
	out, err := Build(Options{
		Descriptor: resolve(t, dir),
		OutDir:     filepath.Join(dir, "target", "wheels"),
		Timestamps: archive.Timestamps{Reproducible: true},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if filepath.Base(out) != "my_project-0.1.0.tar.gz" {
		t.Errorf("archive name = %s", filepath.Base(out))
	}

	files := readSdist(t, out)
	var names []string
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	want := withPrefix("my_project-0.1.0",
		".sdist-manifest.toml",
		"Cargo.lock",
		"Cargo.toml",
		"PKG-INFO",
		"local_dependencies/inner/Cargo.toml",
		"local_dependencies/inner/src/lib.rs",
		"local_dependencies/shared/Cargo.toml",
		"local_dependencies/shared/src/lib.rs",
		"local_dependencies/unix_dep/Cargo.toml",
		"local_dependencies/unix_dep/src/lib.rs",
		"pyproject.toml",
		"src/lib.rs",
	)
	if !slices.Equal(names, want) {
		t.Fatalf("archive files =\n%s\nwant\n%s", strings.Join(names, "\n"), strings.Join(want, "\n"))
	}

	root := parseManifest(t, files["my_project-0.1.0/Cargo.toml"].data)
	if got := root.Table("dependencies").Table("inner").String("path"); got != "local_dependencies/inner" {
		t.Errorf("inner path = %q, want local_dependencies/inner", got)
	}
	unix := root.Table("target").Table("cfg(unix)").Table("dependencies").Table("unix_dep")
	if got := unix.String("path"); got != "local_dependencies/unix_dep" {
		t.Errorf("target-specific path = %q", got)
	}
	if _, ok := root.Table("dev-dependencies")["testing"]; ok {
		t.Error("dev path dependency should be dropped")
	}
	if root.Table("workspace") == nil {
		t.Error("root manifest should declare its own workspace")
	}

	for _, dependent := range []string{"inner", "unix_dep"} {
		doc := parseManifest(t, files["my_project-0.1.0/local_dependencies/"+dependent+"/Cargo.toml"].data)
		if got := doc.Table("dependencies").Table("shared").String("path"); got != "../shared" {
			t.Errorf("%s -> shared path = %q, want ../shared", dependent, got)
		}
	}

	if !bytes.Equal(files["my_project-0.1.0/"+MarkerName].data, files["my_project-0.1.0/Cargo.toml"].data) {
		t.Error("marker does not record the rewritten root manifest")
	}
	pkgInfo := string(files["my_project-0.1.0/PKG-INFO"].data)
	if !strings.Contains(pkgInfo, "Name: my-project\n") || !strings.Contains(pkgInfo, "Version: 0.1.0\n") {
		t.Errorf("PKG-INFO = %q", pkgInfo)
	}
	if mode := files["my_project-0.1.0/src/lib.rs"].mode; mode != 0o644 {
		t.Errorf("src/lib.rs mode = %o, want 644", mode)
	}
	for name, f := range files {
		if !f.modTime.Equal(archive.DefaultEpoch) {
			t.Errorf("%s mtime = %v, want %v", name, f.modTime, archive.DefaultEpoch)
		}
	}
}

func TestNewPlan_VendorsSharedDependencyOnce(t *testing.T) {
	t.Parallel()

	d := resolve(t, nestedProject(t))
	p := plan(t, Options{Descriptor: d})

	shared := 0
	for _, path := range p.Paths() {
		if strings.HasSuffix(path, "/shared/Cargo.toml") {
			shared++
		}
	}
	if shared != 1 {
		t.Errorf("shared crate vendored %d times, want 1", shared)
	}
	if !slices.Contains(p.Dirs, "local_dependencies/shared") {
		t.Errorf("Dirs = %v", p.Dirs)
	}
	if p.Dirs[0] != "" {
		t.Errorf("root dir = %q, want archive root", p.Dirs[0])
	}
}

func TestNewPlan_WorkspaceMember(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml": "[project]\nname = \"workspace-member\"\n\n[tool.maturin]\nmanifest-path = \"python/Cargo.toml\"\n",
		"Cargo.toml": `[workspace]
members = ["python", "generic_lib", "dont_include_in_sdist"]

[workspace.package]
version = "0.3.0"
readme = "README.md"

[workspace.dependencies]
generic_lib = { path = "generic_lib" }
`,
		"README.md": "workspace readme",
		"python/Cargo.toml": `[package]
name = "workspace-member"
version.workspace = true
readme.workspace = true
` + cdylib + `
[dependencies]
pyo3 = "0.22"
generic_lib.workspace = true
`,
		"python/src/lib.rs":                "",
		"generic_lib/Cargo.toml":           "[package]\nname = \"generic_lib\"\nversion.workspace = true\n",
		"generic_lib/src/lib.rs":           "",
		"dont_include_in_sdist/Cargo.toml": "[package]\nname = \"unrelated\"\n",
		"dont_include_in_sdist/src/lib.rs": "",
		"Cargo.lock":                       "version = 3\n",
	})

	d := resolve(t, dir)
	p := plan(t, Options{Descriptor: d})

	want := withPrefix("workspace_member-0.3.0",
		".sdist-manifest.toml",
		"PKG-INFO",
		"README.md",
		"local_dependencies/generic_lib/Cargo.toml",
		"local_dependencies/generic_lib/src/lib.rs",
		"pyproject.toml",
		"python/Cargo.lock",
		"python/Cargo.toml",
		"python/README.md",
		"python/src/lib.rs",
	)
	if got := p.Paths(); !slices.Equal(got, want) {
		t.Fatalf("Paths() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	root := parseManifest(t, p.RootManifest)
	pkg := root.Table("package")
	if pkg.String("version") != "0.3.0" {
		t.Errorf("version = %v, want inherited 0.3.0", pkg["version"])
	}
	if pkg.String("readme") != "README.md" {
		t.Errorf("readme = %v, want relocated README.md", pkg["readme"])
	}
	if got := root.Table("dependencies").Table("generic_lib").String("path"); got != "../local_dependencies/generic_lib" {
		t.Errorf("generic_lib path = %q", got)
	}
	if workspace := root.Table("workspace"); workspace == nil || len(workspace) != 0 {
		t.Errorf("workspace = %v, want an empty table", root["workspace"])
	}

	var lib []byte
	for _, e := range p.Entries {
		if e.Path == "workspace_member-0.3.0/local_dependencies/generic_lib/Cargo.toml" {
			lib = e.Data
		}
	}
	member := parseManifest(t, lib)
	if _, ok := member["workspace"]; ok {
		t.Error("vendored manifest should not declare a workspace")
	}
	if member.Table("package").String("version") != "0.3.0" {
		t.Errorf("vendored version = %v", member.Table("package")["version"])
	}
}

// =============================================================================
// Project layout
// =============================================================================

func TestNewPlan_SrcLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml": `[project]
name = "mixed-src"
readme = "README.md"

[tool.maturin]
manifest-path = "rust/Cargo.toml"
python-source = "src"
`,
		"README.md":                   "# mixed\n",
		"notes/unrelated.txt":         "",
		"rust/Cargo.toml":             "[package]\nname = \"mixed_src\"\nversion = \"2.1.3\"\n" + cdylib + "\n[dependencies]\npyo3 = \"0.22\"\n",
		"rust/Cargo.lock":             "version = 3\n",
		"rust/src/lib.rs":             "",
		"src/mixed_src/__init__.py":   "",
		"src/mixed_src/py.typed":      "",
		"src/tests/test_mixed_src.py": "",
	})

	p := plan(t, Options{Descriptor: resolve(t, dir)})
	want := withPrefix("mixed_src-2.1.3",
		".sdist-manifest.toml",
		"PKG-INFO",
		"README.md",
		"pyproject.toml",
		"rust/Cargo.lock",
		"rust/Cargo.toml",
		"rust/src/lib.rs",
		"src/mixed_src/__init__.py",
		"src/mixed_src/py.typed",
		"src/tests/test_mixed_src.py",
	)
	if got := p.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestNewPlan_ProjectIncludeExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml": `[project]
name = "rules"

[tool.maturin]
include = [{ path = "target/extra/*.txt", format = "sdist" }, { path = "wheel-only.txt", format = "wheel" }]
exclude = [{ path = "src/secret.rs", format = "sdist" }, "tests/**"]
`,
		"Cargo.toml":           "[package]\nname = \"rules\"\nversion = \"1.0.0\"\n" + cdylib + "\n[dependencies]\npyo3 = \"0.22\"\n",
		"src/lib.rs":           "",
		"src/secret.rs":        "",
		"tests/test_rules.py":  "",
		"target/extra/doc.txt": "",
		"wheel-only.txt":       "",
	})

	p := plan(t, Options{Descriptor: resolve(t, dir)})
	got := p.Paths()
	for _, path := range []string{"rules-1.0.0/src/secret.rs", "rules-1.0.0/tests/test_rules.py"} {
		if slices.Contains(got, path) {
			t.Errorf("%s should be excluded", path)
		}
	}
	if !slices.Contains(got, "rules-1.0.0/target/extra/doc.txt") {
		t.Error("sdist include rule should add files below target/")
	}
	if !slices.Contains(got, "rules-1.0.0/wheel-only.txt") {
		t.Error("files of the crate are listed regardless of wheel-only rules")
	}
}

func TestNewPlan_CrateOutsideProject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"python/pyproject.toml": "[tool.maturin]\nmanifest-path = \"../Cargo.toml\"\n",
		"Cargo.toml":            "[package]\nname = \"outside\"\nversion = \"0.1.0\"\n" + cdylib + "\n[dependencies]\npyo3 = \"0.22\"\n",
		"src/lib.rs":            "",
	})

	_, err := NewPlan(Options{Descriptor: resolve(t, filepath.Join(dir, "python"))})
	if !errors.Is(err, project.ErrManifest) {
		t.Fatalf("expected ErrManifest, got %v", err)
	}
}

// =============================================================================
// Git strategy
// =============================================================================

func TestNewPlan_GitStrategy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml":         "[project]\nname = \"tracked\"\n",
		"Cargo.toml":             "[package]\nname = \"tracked\"\nversion = \"0.2.0\"\n" + cdylib + "\n[dependencies]\npyo3 = \"0.22\"\nhelper = { path = \"libs/helper\" }\n",
		"src/lib.rs":             "",
		"notes.txt":              "",
		"scratch.txt":            "",
		"libs/helper/Cargo.toml": "[package]\nname = \"helper\"\nversion = \"0.1.0\"\n",
		"libs/helper/src/lib.rs": "",
	})
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"pyproject.toml", "Cargo.toml", "src/lib.rs", "notes.txt", "libs/helper/Cargo.toml", "libs/helper/src/lib.rs"} {
		if _, err := wt.Add(p); err != nil {
			t.Fatalf("Add(%q) error: %v", p, err)
		}
	}

	p := plan(t, Options{Descriptor: resolve(t, dir), Strategy: listing.StrategyGit})
	if p.Strategy != listing.StrategyGit {
		t.Errorf("Strategy = %q", p.Strategy)
	}
	want := withPrefix("tracked-0.2.0",
		".sdist-manifest.toml",
		"Cargo.toml",
		"PKG-INFO",
		"local_dependencies/helper/Cargo.toml",
		"local_dependencies/helper/src/lib.rs",
		"notes.txt",
		"pyproject.toml",
		"src/lib.rs",
	)
	if got := p.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestNewPlan_GitFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"Cargo.toml": "[package]\nname = \"untracked\"\nversion = \"0.1.0\"\n" + cdylib + "\n[dependencies]\npyo3 = \"0.22\"\n",
		"src/lib.rs": "",
	})
	d := resolve(t, dir)

	if _, err := NewPlan(Options{Descriptor: d, Strategy: listing.StrategyGit}); !errors.Is(err, listing.ErrNotInRepository) {
		t.Fatalf("expected ErrNotInRepository, got %v", err)
	}

	p := plan(t, Options{Descriptor: d, Strategy: listing.StrategyGit, FallbackToFilesystem: true})
	if p.Strategy != listing.StrategyFilesystem {
		t.Errorf("Strategy = %q, want filesystem fallback", p.Strategy)
	}
	if !slices.Contains(p.Paths(), "untracked-0.1.0/src/lib.rs") {
		t.Errorf("Paths() = %v", p.Paths())
	}
}

// =============================================================================
// Reproducibility
// =============================================================================

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	dir := nestedProject(t)
	pinned := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	build := func(outDir string, c archive.Compression) []byte {
		t.Helper()
		out, err := Build(Options{
			Descriptor:  resolve(t, dir),
			OutDir:      outDir,
			Compression: c,
			Timestamps:  archive.Timestamps{Pinned: pinned},
		})
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		return testutil.ReadFile(t, out)
	}

	for _, c := range []archive.Compression{archive.Gzip, archive.Xz} {
		first := build(t.TempDir(), c)
		second := build(t.TempDir(), c)
		if !bytes.Equal(first, second) {
			t.Errorf("%s: archives differ between identical builds", c)
		}
	}

	out, err := Build(Options{Descriptor: resolve(t, dir), OutDir: t.TempDir(), Timestamps: archive.Timestamps{Pinned: pinned}})
	if err != nil {
		t.Fatal(err)
	}
	for name, f := range readSdist(t, out) {
		if !f.modTime.Equal(pinned) {
			t.Errorf("%s mtime = %v, want %v", name, f.modTime, pinned)
		}
	}
}

func TestBuild_XzFileName(t *testing.T) {
	t.Parallel()

	out, err := Build(Options{Descriptor: resolve(t, nestedProject(t)), OutDir: t.TempDir(), Compression: archive.Xz})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !strings.HasSuffix(out, "my_project-0.1.0.tar.xz") {
		t.Errorf("archive path = %s", out)
	}
}
