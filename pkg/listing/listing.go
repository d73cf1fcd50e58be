// SPDX-License-Identifier: MPL-2.0

package listing

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
)

// Listing strategies.
const (
	// StrategyFilesystem walks the package directory.
	StrategyFilesystem Strategy = "cargo"
	// StrategyGit lists files tracked by the enclosing git repository.
	StrategyGit Strategy = "git"
)

// defaultIgnores are never part of a listing produced by a directory walk.
var defaultIgnores = []string{".git", "**/__pycache__", "**/*.pyc"}

type (
	// Strategy selects how candidate files are enumerated.
	Strategy string

	// Options configures List.
	Options struct {
		// Root is the directory whose files are listed.
		Root     string
		Strategy Strategy
		// Include restricts the listing to matching files when non-empty.
		Include []string
		// Exclude removes matching files. Exclude always wins.
		Exclude []string
		// Extra adds matching files found under Root that the strategy
		// would otherwise skip (untracked or outside Include).
		Extra []string
		// FallbackToFilesystem lets the git strategy fall back to a
		// directory walk when Root is not inside a repository.
		FallbackToFilesystem bool
		// NestedPackages keeps the files of crates nested below Root.
		NestedPackages bool
		// Logger receives diagnostics. Nil discards.
		Logger *log.Logger
	}

	// Entry is one listed file.
	Entry struct {
		// Path is slash-separated and relative to the listing root.
		Path string
		// Source is the file's location on disk.
		Source string
	}

	// Listing is the sorted file set of one package.
	Listing struct {
		Root  string
		Files []Entry
	}
)

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyFilesystem:
		return StrategyFilesystem, nil
	case StrategyGit:
		return StrategyGit, nil
	default:
		return "", fmt.Errorf("unknown sdist generator %q (expected %q or %q)", s, StrategyFilesystem, StrategyGit)
	}
}

// Paths returns the relative paths of the listing.
func (l *Listing) Paths() []string {
	out := make([]string, len(l.Files))
	for i, f := range l.Files {
		out[i] = f.Path
	}
	return out
}

// Contains reports whether rel is part of the listing.
func (l *Listing) Contains(rel string) bool {
	_, found := slices.BinarySearchFunc(l.Files, rel, func(e Entry, target string) int {
		return strings.Compare(e.Path, target)
	})
	return found
}

// List enumerates the files under opts.Root with the configured strategy.
func List(opts Options) (*Listing, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyFilesystem
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, &ListingError{Root: opts.Root, Strategy: opts.Strategy, Err: err}
	}

	include, err := CompilePatterns(opts.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := CompilePatterns(opts.Exclude)
	if err != nil {
		return nil, err
	}
	extra, err := CompilePatterns(opts.Extra)
	if err != nil {
		return nil, err
	}

	var candidates map[string]string
	switch opts.Strategy {
	case StrategyFilesystem:
		candidates, err = walk(root, opts.NestedPackages, opts.Logger)
	case StrategyGit:
		candidates, err = gitTracked(root, opts.NestedPackages)
		if err != nil && opts.FallbackToFilesystem {
			opts.Logger.Warn("git listing failed, falling back to filesystem listing", "root", root, "err", err)
			candidates, err = walk(root, opts.NestedPackages, opts.Logger)
		}
	default:
		err = fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	if err != nil {
		return nil, &ListingError{Root: root, Strategy: opts.Strategy, Err: err}
	}

	selected := make(map[string]string, len(candidates))
	for rel, src := range candidates {
		if len(include) > 0 && !include.Match(rel) {
			continue
		}
		selected[rel] = src
	}

	if len(extra) > 0 {
		all, err := walkAll(root, opts.Logger)
		if err != nil {
			return nil, &ListingError{Root: root, Strategy: opts.Strategy, Err: err}
		}
		for rel, src := range all {
			if extra.Match(rel) {
				selected[rel] = src
			}
		}
	}

	listing := &Listing{Root: root}
	for rel, src := range selected {
		if exclude.Match(rel) {
			opts.Logger.Debug("excluded file", "path", rel)
			continue
		}
		listing.Files = append(listing.Files, Entry{Path: rel, Source: src})
	}
	slices.SortFunc(listing.Files, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	opts.Logger.Debug("listed files", "root", root, "strategy", string(opts.Strategy), "count", len(listing.Files))
	return listing, nil
}

// walk lists root like cargo package: VCS metadata, the target directory
// and, unless nested is set, nested packages are skipped.
func walk(root string, nested bool, logger *log.Logger) (map[string]string, error) {
	ignores, _ := CompilePatterns(defaultIgnores)
	return walkFiltered(root, logger, func(rel string, dir string, isDir bool) bool {
		if ignores.Match(rel) {
			return false
		}
		if isDir {
			if rel == "target" {
				return false
			}
			if path.Base(rel) == "target" && fileExists(filepath.Join(filepath.Dir(dir), "Cargo.toml")) {
				return false
			}
			if nested {
				return true
			}
			if fileExists(filepath.Join(dir, "Cargo.toml")) {
				logger.Debug("skipping nested package", "path", rel)
				return false
			}
		}
		return true
	})
}

// walkAll lists every regular file under root except VCS metadata.
func walkAll(root string, logger *log.Logger) (map[string]string, error) {
	return walkFiltered(root, logger, func(rel string, _ string, _ bool) bool {
		return rel != ".git" && !strings.HasPrefix(rel, ".git/")
	})
}

// walkFiltered walks root following directory symlinks. Every real
// directory is entered at most once, so symlink cycles terminate.
func walkFiltered(root string, logger *log.Logger, keep func(rel, abs string, isDir bool) bool) (map[string]string, error) {
	out := make(map[string]string)
	visited := make(map[string]bool)

	var visit func(abs, rel string) error
	visit = func(abs, rel string) error {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return err
		}
		if visited[resolved] {
			logger.Debug("skipping already visited directory", "path", rel, "target", resolved)
			return nil
		}
		visited[resolved] = true

		entries, err := os.ReadDir(abs)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			childAbs := filepath.Join(abs, entry.Name())
			childRel := entry.Name()
			if rel != "" {
				childRel = path.Join(rel, entry.Name())
			}

			info, err := os.Stat(childAbs)
			if err != nil {
				// Dangling symlinks are not listable.
				logger.Debug("skipping unreadable entry", "path", childRel, "err", err)
				continue
			}
			if !keep(childRel, childAbs, info.IsDir()) {
				continue
			}
			switch {
			case info.IsDir():
				if err := visit(childAbs, childRel); err != nil {
					return err
				}
			case info.Mode().IsRegular():
				out[childRel] = childAbs
			}
		}
		return nil
	}

	if err := visit(root, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
