// SPDX-License-Identifier: MPL-2.0

package develop

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/zhaixiaojuan/maturin/internal/testutil"
	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/target"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

const (
	distInfo = "my_project-0.1.0.dist-info"
	linuxSo  = ".cpython-312-x86_64-linux-gnu.so"
	manifest = `[package]
name = "my-project"
version = "0.1.0"

[lib]
crate-type = ["cdylib"]

[dependencies]
pyo3 = "0.22"
`
)

func linuxTarget(t *testing.T) *target.Target {
	t.Helper()
	tgt, err := target.Resolve(target.Options{Triple: "x86_64-unknown-linux-gnu"})
	if err != nil {
		t.Fatal(err)
	}
	return tgt
}

// venv creates a POSIX virtualenv layout for each python version.
func venv(t *testing.T, versions ...string) string {
	t.Helper()
	prefix := t.TempDir()
	for _, v := range versions {
		testutil.MustMkdirAll(t, filepath.Join(prefix, "lib", "python"+v, "site-packages"), 0o755)
	}
	testutil.MustMkdirAll(t, filepath.Join(prefix, "bin"), 0o755)
	return prefix
}

func newProject(t *testing.T, files map[string]string) *project.Descriptor {
	t.Helper()
	dir := t.TempDir()
	all := map[string]string{
		"pyproject.toml": "[project]\nname = \"my-project\"\n\n[project.scripts]\nhello = \"my_project:main\"\n",
		"Cargo.toml":     manifest,
		"src/lib.rs":     "",
	}
	for k, v := range files {
		all[k] = v
	}
	testutil.WriteFiles(t, dir, all)
	d, err := project.Resolve(project.Options{Path: dir})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return d
}

func library(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libmy_project.so")
	testutil.WriteFile(t, path, []byte(content), 0o755)
	return path
}

func install(t *testing.T, opts Options) *Result {
	t.Helper()
	if opts.Target == nil {
		opts.Target = linuxTarget(t)
	}
	r, err := Install(opts)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	return r
}

// =============================================================================
// Environment discovery
// =============================================================================

func TestFindEnvironment(t *testing.T) {
	t.Parallel()

	triple := linuxTarget(t).Triple
	tests := []struct {
		name        string
		versions    []string
		interpreter string
		want        string
		wantErr     bool
	}{
		{name: "single version", versions: []string{"3.12"}, want: "3.12"},
		{name: "selected version", versions: []string{"3.11", "3.12"}, interpreter: "3.11", want: "3.11"},
		{name: "ambiguous", versions: []string{"3.11", "3.12"}, wantErr: true},
		{name: "missing version", versions: []string{"3.12"}, interpreter: "3.10", wantErr: true},
		{name: "no site-packages", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prefix := venv(t, tt.versions...)
			env, err := FindEnvironment(prefix, triple, tt.interpreter)
			if tt.wantErr {
				if !errors.Is(err, ErrEnvironmentNotFound) {
					t.Fatalf("FindEnvironment() error = %v, want ErrEnvironmentNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindEnvironment() error: %v", err)
			}
			if env.Python.String() != tt.want {
				t.Errorf("Python = %s, want %s", env.Python, tt.want)
			}
			wantSP := filepath.Join(prefix, "lib", "python"+tt.want, "site-packages")
			if env.SitePackages != wantSP {
				t.Errorf("SitePackages = %q, want %q", env.SitePackages, wantSP)
			}
			if env.Scripts != filepath.Join(prefix, "bin") {
				t.Errorf("Scripts = %q", env.Scripts)
			}
		})
	}
}

func TestFindEnvironment_Windows(t *testing.T) {
	t.Parallel()

	prefix := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(prefix, "Lib", "site-packages"), 0o755)
	triple, err := target.ParseTriple("x86_64-pc-windows-msvc")
	if err != nil {
		t.Fatal(err)
	}
	env, err := FindEnvironment(prefix, triple, "")
	if err != nil {
		t.Fatalf("FindEnvironment() error: %v", err)
	}
	if !env.Windows || env.Scripts != filepath.Join(prefix, "Scripts") {
		t.Errorf("env = %+v", env)
	}
}

func TestFindEnvironment_ActiveVirtualenv(t *testing.T) {
	prefix := venv(t, "3.12")
	t.Setenv("VIRTUAL_ENV", prefix)
	t.Setenv("CONDA_PREFIX", "")

	env, err := FindEnvironment("", linuxTarget(t).Triple, "")
	if err != nil {
		t.Fatalf("FindEnvironment() error: %v", err)
	}
	if env.Prefix != prefix {
		t.Errorf("Prefix = %q, want %q", env.Prefix, prefix)
	}
}

func TestFindEnvironment_NoneActive(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	t.Setenv("CONDA_PREFIX", "")

	_, err := FindEnvironment("", linuxTarget(t).Triple, "")
	var ene *EnvironmentNotFoundError
	if !errors.As(err, &ene) || ene.Environment != "" {
		t.Fatalf("FindEnvironment() error = %v, want EnvironmentNotFoundError", err)
	}
}

// =============================================================================
// Install
// =============================================================================

func TestInstall_PureLayout(t *testing.T) {
	t.Parallel()

	prefix := venv(t, "3.12")
	d := newProject(t, map[string]string{"LICENSE": "MIT\n"})
	r := install(t, Options{Descriptor: d, Artifacts: wheel.Artifacts{Library: library(t, "native")}, Environment: prefix})

	sp := r.Environment.SitePackages
	if got := testutil.ReadFile(t, filepath.Join(sp, "my_project", "my_project"+linuxSo)); string(got) != "native" {
		t.Errorf("extension module content = %q", got)
	}
	for _, p := range []string{
		"my_project/__init__.py",
		distInfo + "/METADATA",
		distInfo + "/WHEEL",
		distInfo + "/INSTALLER",
		distInfo + "/entry_points.txt",
		distInfo + "/licenses/LICENSE",
		distInfo + "/RECORD",
	} {
		if _, err := os.Stat(filepath.Join(sp, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not installed: %v", p, err)
		}
	}

	script := filepath.Join(prefix, "bin", "hello")
	info, err := os.Stat(script)
	if err != nil {
		t.Fatalf("launcher not installed: %v", err)
	}
	if info.Mode()&0o111 == 0 {
		t.Errorf("launcher mode = %v, want executable", info.Mode())
	}
	launcher := string(testutil.ReadFile(t, script))
	if !strings.HasPrefix(launcher, "#!"+filepath.Join(prefix, "bin", "python")+"\n") || !strings.Contains(launcher, "from my_project import main\n") {
		t.Errorf("launcher = %q", launcher)
	}

	records, err := archive.ParseRecord(testutil.ReadFile(t, filepath.Join(sp, distInfo, "RECORD")))
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, rec := range records {
		paths = append(paths, rec.Path)
	}
	if !slices.Contains(paths, "../../../bin/hello") {
		t.Errorf("RECORD does not list the launcher: %v", paths)
	}
	if !slices.Equal(paths, r.Files) {
		t.Errorf("RECORD = %v, Result.Files = %v", paths, r.Files)
	}
	if wheelFile := string(testutil.ReadFile(t, filepath.Join(sp, distInfo, "WHEEL"))); !strings.Contains(wheelFile, "Tag: cp312-cp312-manylinux_2_17_x86_64\n") {
		t.Errorf("WHEEL = %q", wheelFile)
	}
}

func TestInstall_ReplacesPreviousInstall(t *testing.T) {
	t.Parallel()

	prefix := venv(t, "3.12")
	d := newProject(t, map[string]string{"my_project/__init__.py": "", "my_project/old.py": ""})
	first := install(t, Options{Descriptor: d, Artifacts: wheel.Artifacts{Library: library(t, "v1")}, Environment: prefix})
	sp := first.Environment.SitePackages

	// A stale dist-info with another version of the same distribution.
	testutil.WriteFiles(t, sp, map[string]string{
		"My.Project-0.0.9.dist-info/METADATA": "",
		"other-1.0.dist-info/METADATA":        "",
	})
	if err := os.Remove(filepath.Join(d.PythonSource, "my_project", "old.py")); err != nil {
		t.Fatal(err)
	}

	second := install(t, Options{Descriptor: d, Artifacts: wheel.Artifacts{Library: library(t, "v2")}, Environment: prefix})
	slices.Sort(second.Replaced)
	if want := []string{"My.Project-0.0.9.dist-info", distInfo}; !slices.Equal(second.Replaced, want) {
		t.Errorf("Replaced = %v, want %v", second.Replaced, want)
	}
	if _, err := os.Stat(filepath.Join(sp, "my_project", "old.py")); !os.IsNotExist(err) {
		t.Errorf("file of the previous install survived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sp, "other-1.0.dist-info")); err != nil {
		t.Errorf("unrelated distribution removed: %v", err)
	}
	if got := testutil.ReadFile(t, filepath.Join(sp, "my_project", "my_project"+linuxSo)); string(got) != "v2" {
		t.Errorf("extension module content = %q, want v2", got)
	}
}

func TestInstall_Editable(t *testing.T) {
	t.Parallel()

	prefix := venv(t, "3.12")
	d := newProject(t, map[string]string{
		"pyproject.toml":                "[project]\nname = \"my-project\"\n\n[tool.maturin]\npython-source = \"python\"\n",
		"python/my_project/__init__.py": "from .my_project import *\n",
	})
	r := install(t, Options{Descriptor: d, Artifacts: wheel.Artifacts{Library: library(t, "native")}, Environment: prefix, Editable: true})
	sp := r.Environment.SitePackages

	pth := testutil.ReadFile(t, filepath.Join(sp, "my_project.pth"))
	if string(pth) != d.PythonSource+"\n" {
		t.Errorf(".pth = %q, want %q", pth, d.PythonSource+"\n")
	}
	if _, err := os.Stat(filepath.Join(d.PythonSource, "my_project", "my_project"+linuxSo)); err != nil {
		t.Errorf("extension module not copied into the python source: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sp, "my_project")); !os.IsNotExist(err) {
		t.Errorf("python package copied into site-packages in editable mode: %v", err)
	}
	if !slices.Contains(r.Files, "my_project.pth") {
		t.Errorf("RECORD does not list the .pth file: %v", r.Files)
	}
}

func TestInstall_DataDirectory(t *testing.T) {
	t.Parallel()

	prefix := venv(t, "3.12")
	d := newProject(t, map[string]string{
		"my_project.data/scripts/tool.sh":      "#!/bin/sh\n",
		"my_project.data/data/share/notes.txt": "notes",
		"my_project.data/headers/api.h":        "",
		"my_project.data/purelib/extra.py":     "",
	})
	install(t, Options{Descriptor: d, Artifacts: wheel.Artifacts{Library: library(t, "native")}, Environment: prefix})

	for _, p := range []string{
		"bin/tool.sh",
		"share/notes.txt",
		"include/site/python3.12/my_project/api.h",
		"lib/python3.12/site-packages/extra.py",
	} {
		if _, err := os.Stat(filepath.Join(prefix, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not installed: %v", p, err)
		}
	}
}

func TestInstall_MissingEnvironment(t *testing.T) {
	t.Parallel()

	d := newProject(t, nil)
	_, err := Install(Options{
		Descriptor:  d,
		Artifacts:   wheel.Artifacts{Library: library(t, "native")},
		Target:      linuxTarget(t),
		Environment: filepath.Join(t.TempDir(), "missing"),
	})
	if !errors.Is(err, ErrEnvironmentNotFound) {
		t.Errorf("Install() error = %v, want ErrEnvironmentNotFound", err)
	}
}

func TestInstall_MissingArtifactWritesNothing(t *testing.T) {
	t.Parallel()

	prefix := venv(t, "3.12")
	_, err := Install(Options{Descriptor: newProject(t, nil), Target: linuxTarget(t), Environment: prefix})
	if !errors.Is(err, wheel.ErrMissingArtifact) {
		t.Fatalf("Install() error = %v, want ErrMissingArtifact", err)
	}
	entries, err := os.ReadDir(filepath.Join(prefix, "lib", "python3.12", "site-packages"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("site-packages not empty after a failed install: %v", entries)
	}
}

func TestLauncher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref     string
		want    []string
		wantErr bool
	}{
		{ref: "pkg.cli:main", want: []string{"from pkg.cli import main\n", "sys.exit(main())"}},
		{ref: "pkg:app.run", want: []string{"from pkg import app\n", "sys.exit(app.run())"}},
		{ref: "pkg", wantErr: true},
		{ref: ":main", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Launcher("/venv/bin/python", tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Launcher(%q) succeeded", tt.ref)
			}
			continue
		}
		if err != nil {
			t.Errorf("Launcher(%q) error: %v", tt.ref, err)
			continue
		}
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("Launcher(%q) missing %q:\n%s", tt.ref, w, got)
			}
		}
	}
}
