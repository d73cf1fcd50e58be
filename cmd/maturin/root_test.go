// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"debug/elf"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhaixiaojuan/maturin/internal/config"
	"github.com/zhaixiaojuan/maturin/internal/testutil"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

const projectManifest = `[package]
name = "my-project"
version = "0.1.0"

[lib]
crate-type = ["cdylib"]

[dependencies]
pyo3 = { version = "0.22", features = ["abi3-py38"] }
`

// staticConfig is a ConfigProvider returning a fixed configuration.
type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cfg, nil
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{Config: staticConfig{cfg: cfg}, Stdout: &out, Stderr: &errOut})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"pyproject.toml": "[project]\nname = \"my-project\"\nrequires-python = \">=3.8\"\n",
		"Cargo.toml":     projectManifest,
		"src/lib.rs":     "",
	})
	return dir
}

func writeLibrary(t *testing.T, path string) {
	t.Helper()
	testutil.WriteELF(t, path, testutil.ELFSpec{
		Machine: elf.EM_X86_64,
		Needed:  []string{"libc.so.6"},
		Symbols: []testutil.ELFSymbol{{Name: "printf", Library: "libc.so.6", Version: "GLIBC_2.2.5"}},
	})
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		// Test binaries report Main.Version == "(devel)".
		Version = "dev"
		Commit = "unknown"
		BuildDate = "unknown"

		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

// =============================================================================
// Commands
// =============================================================================

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{Config: staticConfig{cfg: config.DefaultConfig()}}))
	for _, name := range []string{"build", "sdist", "develop", "inspect", "audit", "config"} {
		if sub, _, err := root.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, sub, err)
		}
	}
	for _, flag := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	lib := filepath.Join(t.TempDir(), "libmy_project.so")
	writeLibrary(t, lib)
	out := filepath.Join(t.TempDir(), "wheels")

	stdout, _, err := runCLI(t, nil,
		"build", "-m", dir, "--target", "x86_64-unknown-linux-gnu", "--artifact", lib, "--out", out)
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	want := filepath.Join(out, "my_project-0.1.0-cp38-abi3-manylinux_2_5_x86_64.manylinux1_x86_64.whl")
	if !strings.Contains(stdout, want) {
		t.Errorf("stdout = %q, want %q", stdout, want)
	}
}

func TestBuildCommand_MissingArtifact(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	_, stderr, err := runCLI(t, nil,
		"build", "-m", dir, "--target", "x86_64-unknown-linux-gnu", "--artifact", filepath.Join(dir, "missing.so"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("build error = %v, want ExitError", err)
	}
	if !errors.Is(err, wheel.ErrMissingArtifact) {
		t.Errorf("build error = %v, want ErrMissingArtifact", err)
	}
	if !strings.Contains(stderr, "build wheel") {
		t.Errorf("stderr = %q, want the failed operation", stderr)
	}
}

func TestInspectCommand(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	stdout, _, err := runCLI(t, nil, "inspect", "-m", dir, "--target", "x86_64-unknown-linux-gnu", "--format", "yaml")
	if err != nil {
		t.Fatalf("inspect error: %v", err)
	}
	for _, want := range []string{"bridge: pyo3", "module_name: my_project", "name: my-project", "abi3: abi3 (>= 3.8)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := runCLI(t, nil, "inspect", "-m", dir, "--format", "json"); err == nil {
		t.Error("inspect accepted an unknown format")
	}
}

func TestAuditCommand(t *testing.T) {
	t.Parallel()

	dir := newProject(t)
	lib := filepath.Join(t.TempDir(), "libmy_project.so")
	writeLibrary(t, lib)

	stdout, _, err := runCLI(t, nil, "audit", "-m", dir, "--target", "x86_64-unknown-linux-gnu", lib)
	if err != nil {
		t.Fatalf("audit error: %v", err)
	}
	if !strings.Contains(stdout, "manylinux_2_5_x86_64") {
		t.Errorf("audit output = %q", stdout)
	}
}

func TestCommand_ConfigError(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	app := NewApp(Dependencies{Config: staticConfig{err: config.ErrInvalidConfig}, Stdout: &out, Stderr: &errOut})
	root := NewRootCommand(app)
	root.SetArgs([]string{"inspect", "-m", newProject(t)})
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("inspect error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(errOut.String(), "invalid") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain failure")
	if got := formatErrorForDisplay(plain, false); got != "plain failure" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}
}
