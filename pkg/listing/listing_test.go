// SPDX-License-Identifier: MPL-2.0

package listing

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/go-git/go-git/v5"

	"github.com/zhaixiaojuan/maturin/internal/testutil"
)

func listPaths(t *testing.T, opts Options) []string {
	t.Helper()
	l, err := List(opts)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	return l.Paths()
}

// =============================================================================
// Filesystem strategy
// =============================================================================

func TestList_IncludeExclude(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"a.txt":      "a",
		"secret.txt": "s",
		"b.py":       "b",
	})

	got := listPaths(t, Options{Root: root, Include: []string{"*.txt"}, Exclude: []string{"secret.txt"}})
	if !slices.Equal(got, []string{"a.txt"}) {
		t.Errorf("List() = %v, want [a.txt]", got)
	}
}

func TestList_ExcludeWinsOverExtra(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"Cargo.toml":        "[package]\n",
		"src/lib.rs":        "",
		"target/debug/x.so": "",
		"target/keep.txt":   "",
		"target/secret.txt": "",
	})

	got := listPaths(t, Options{
		Root:    root,
		Extra:   []string{"target/*.txt"},
		Exclude: []string{"**/secret.txt"},
	})
	want := []string{"Cargo.toml", "src/lib.rs", "target/keep.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_DefaultIgnores(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"Cargo.toml":                       "[package]\n",
		"src/lib.rs":                       "",
		".git/HEAD":                        "ref: refs/heads/main\n",
		"target/release/libfoo.so":         "",
		"python/foo/__init__.py":           "",
		"python/foo/__pycache__/x.pyc":     "",
		"python/foo/stale.pyc":             "",
		"nested/Cargo.toml":                "[package]\n",
		"nested/src/lib.rs":                "",
		"docs/target/index.md":             "",
		"python/foo/target/still_here.txt": "",
	})

	got := listPaths(t, Options{Root: root})
	want := []string{
		"Cargo.toml",
		"docs/target/index.md",
		"python/foo/__init__.py",
		"python/foo/target/still_here.txt",
		"src/lib.rs",
	}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_DirectoryPatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"docs/guide/index.md": "",
		"docs/README.md":      "",
		"src/lib.rs":          "",
		"tests/data/big.bin":  "",
	})

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{"exclude dir", nil, []string{"docs"}, []string{"src/lib.rs", "tests/data/big.bin"}},
		{"exclude dir with slash", nil, []string{"/tests/"}, []string{"docs/README.md", "docs/guide/index.md", "src/lib.rs"}},
		{"include doublestar", []string{"docs/**"}, nil, []string{"docs/README.md", "docs/guide/index.md"}},
		{"base name anywhere", []string{"*.md"}, []string{"guide"}, []string{"docs/README.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := listPaths(t, Options{Root: root, Include: tt.include, Exclude: tt.exclude})
			if !slices.Equal(got, tt.want) {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestList_SymlinkCycle(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"pkg/mod.py":  "",
		"shared/a.py": "",
	})
	if err := os.Symlink("..", filepath.Join(root, "pkg", "loop")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "shared"), filepath.Join(root, "pkg", "shared")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("missing", filepath.Join(root, "dangling")); err != nil {
		t.Fatal(err)
	}

	got := listPaths(t, Options{Root: root})
	want := []string{"pkg/mod.py", "pkg/shared/a.py"}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := List(Options{Root: t.TempDir(), Exclude: []string{"[unclosed"}})
	var patErr *InvalidPatternError
	if !errors.As(err, &patErr) {
		t.Fatalf("expected InvalidPatternError, got %v", err)
	}
	if patErr.Pattern != "[unclosed" {
		t.Errorf("Pattern = %q", patErr.Pattern)
	}
}

func TestList_Contains(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"a/b.txt": "", "c.txt": ""})
	l, err := List(Options{Root: root})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if !l.Contains("a/b.txt") || !l.Contains("c.txt") || l.Contains("b.txt") {
		t.Errorf("Contains mismatch for %v", l.Paths())
	}
	if l.Files[0].Source != filepath.Join(l.Root, "a", "b.txt") {
		t.Errorf("Source = %q", l.Files[0].Source)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyFilesystem, false},
		{"cargo", StrategyFilesystem, false},
		{"git", StrategyGit, false},
		{"svn", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

// =============================================================================
// Git strategy
// =============================================================================

func initRepo(t *testing.T, dir string, tracked ...string) {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error: %v", err)
	}
	for _, p := range tracked {
		if _, err := wt.Add(p); err != nil {
			t.Fatalf("Add(%q) error: %v", p, err)
		}
	}
}

func TestList_GitTrackedOnly(t *testing.T) {
	t.Parallel()

	repoDir := t.TempDir()
	testutil.WriteFiles(t, repoDir, map[string]string{
		"README.md":                 "",
		"crate/Cargo.toml":          "[package]\n",
		"crate/src/lib.rs":          "",
		"crate/untracked.rs":        "",
		"crate/sub/Cargo.toml":      "[package]\n",
		"crate/sub/src/lib.rs":      "",
		"crate/tests/fixture.txt":   "",
		"crate/tests/generated.txt": "",
	})
	initRepo(t, repoDir,
		"README.md",
		"crate/Cargo.toml",
		"crate/src/lib.rs",
		"crate/sub/Cargo.toml",
		"crate/sub/src/lib.rs",
		"crate/tests/fixture.txt",
	)

	got := listPaths(t, Options{
		Root:     filepath.Join(repoDir, "crate"),
		Strategy: StrategyGit,
		Extra:    []string{"tests/generated.txt"},
	})
	want := []string{"Cargo.toml", "src/lib.rs", "tests/fixture.txt", "tests/generated.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestList_NestedPackages(t *testing.T) {
	t.Parallel()

	repoDir := t.TempDir()
	testutil.WriteFiles(t, repoDir, map[string]string{
		"pyproject.toml":         "",
		"rust/Cargo.toml":        "[package]\n",
		"rust/src/lib.rs":        "",
		"rust/target/debug/x":    "",
		"python/pkg/__init__.py": "",
	})
	initRepo(t, repoDir, "pyproject.toml", "rust/Cargo.toml", "rust/src/lib.rs", "python/pkg/__init__.py")

	want := []string{"pyproject.toml", "python/pkg/__init__.py", "rust/Cargo.toml", "rust/src/lib.rs"}
	for _, strategy := range []Strategy{StrategyFilesystem, StrategyGit} {
		got := listPaths(t, Options{Root: repoDir, Strategy: strategy, NestedPackages: true})
		if !slices.Equal(got, want) {
			t.Errorf("%s: List() = %v, want %v", strategy, got, want)
		}
	}
}

func TestList_GitSkipsDeletedFiles(t *testing.T) {
	t.Parallel()

	repoDir := t.TempDir()
	testutil.WriteFiles(t, repoDir, map[string]string{"a.py": "", "gone.py": ""})
	initRepo(t, repoDir, "a.py", "gone.py")
	if err := os.Remove(filepath.Join(repoDir, "gone.py")); err != nil {
		t.Fatal(err)
	}

	got := listPaths(t, Options{Root: repoDir, Strategy: StrategyGit})
	if !slices.Equal(got, []string{"a.py"}) {
		t.Errorf("List() = %v, want [a.py]", got)
	}
}

func TestList_GitOutsideRepository(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{"Cargo.toml": "", "src/lib.rs": ""})

	_, err := List(Options{Root: root, Strategy: StrategyGit})
	if !errors.Is(err, ErrNotInRepository) {
		t.Fatalf("expected ErrNotInRepository, got %v", err)
	}
	var listErr *ListingError
	if !errors.As(err, &listErr) || listErr.Strategy != StrategyGit {
		t.Errorf("expected ListingError for git strategy, got %v", err)
	}

	got := listPaths(t, Options{Root: root, Strategy: StrategyGit, FallbackToFilesystem: true})
	if !slices.Equal(got, []string{"Cargo.toml", "src/lib.rs"}) {
		t.Errorf("fallback List() = %v", got)
	}
}
