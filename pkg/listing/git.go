// SPDX-License-Identifier: MPL-2.0

package listing

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// gitTracked returns the files under root that are staged in the index of
// the enclosing repository and still present in the work tree. Unless
// keepNested is set, files of nested packages are skipped as with the
// filesystem strategy.
func gitTracked(root string, keepNested bool) (map[string]string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotInRepository, root)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	top, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	prefix, err := filepath.Rel(top, resolvedRoot)
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)
	if prefix == "." {
		prefix = ""
	} else {
		prefix += "/"
	}

	tracked := make(map[string]string)
	var nested []string
	for _, entry := range idx.Entries {
		rel, ok := strings.CutPrefix(entry.Name, prefix)
		if !ok {
			continue
		}
		if !keepNested && path.Base(rel) == "Cargo.toml" && rel != "Cargo.toml" {
			nested = append(nested, path.Dir(rel)+"/")
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		tracked[rel] = abs
	}
	for rel := range tracked {
		for _, dir := range nested {
			if strings.HasPrefix(rel, dir) {
				delete(tracked, rel)
				break
			}
		}
	}
	return tracked, nil
}
