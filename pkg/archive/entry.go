// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

// zipEpoch is the earliest time a zip archive can store.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// Entry is one file of an archive, read either from Source on disk or
	// from Data.
	Entry struct {
		// Path is the slash-separated path inside the archive.
		Path   string
		Source string
		Data   []byte
		// Executable marks in-memory entries as executable. Entries read
		// from disk take the bit from the file.
		Executable bool
	}

	// Timestamps decides the modification time stored for each entry.
	Timestamps struct {
		// Pinned, when non-zero, is stored for every entry.
		Pinned time.Time
		// Reproducible stores DefaultEpoch for every entry when nothing
		// is pinned.
		Reproducible bool
		// Now is used for in-memory entries when neither applies.
		Now func() time.Time
	}

	// opened is an entry ready to be copied into an archive.
	opened struct {
		reader  io.ReadCloser
		size    int64
		mode    fs.FileMode
		modTime time.Time
	}
)

// DefaultEpoch is stored for reproducible archives without a pinned time.
var DefaultEpoch = zipEpoch

// ParseSourceDateEpoch parses a SOURCE_DATE_EPOCH value (unix seconds).
// An empty value returns the zero time.
func ParseSourceDateEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid SOURCE_DATE_EPOCH %q: %w", s, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// ClampZipTime returns t, or the zip epoch when t predates 1980.
func ClampZipTime(t time.Time) time.Time {
	if t.Before(zipEpoch) {
		return zipEpoch
	}
	return t
}

// IsZero reports whether no fixed timestamp applies.
func (ts Timestamps) IsZero() bool {
	return ts.Pinned.IsZero() && !ts.Reproducible
}

func (ts Timestamps) fixed() (time.Time, bool) {
	switch {
	case !ts.Pinned.IsZero():
		return ts.Pinned.UTC(), true
	case ts.Reproducible:
		return DefaultEpoch, true
	default:
		return time.Time{}, false
	}
}

func (ts Timestamps) now() time.Time {
	if ts.Now != nil {
		return ts.Now()
	}
	return time.Now()
}

// Size returns the entry's content length.
func (e Entry) Size() (int64, error) {
	if e.Source == "" {
		return int64(len(e.Data)), nil
	}
	info, err := os.Stat(e.Source)
	if err != nil {
		return 0, ioErr("stat", e.Source, err)
	}
	return info.Size(), nil
}

// Open returns a reader over the entry's content.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.Source == "" {
		return io.NopCloser(bytes.NewReader(e.Data)), nil
	}
	f, err := os.Open(e.Source)
	if err != nil {
		return nil, ioErr("open", e.Source, err)
	}
	return f, nil
}

func (e Entry) open(ts Timestamps) (*opened, error) {
	fixed, pinned := ts.fixed()
	if e.Source == "" {
		o := &opened{
			reader:  io.NopCloser(bytes.NewReader(e.Data)),
			size:    int64(len(e.Data)),
			mode:    0o644,
			modTime: fixed,
		}
		if e.Executable {
			o.mode = 0o755
		}
		if !pinned {
			o.modTime = ts.now()
		}
		return o, nil
	}

	f, err := os.Open(e.Source)
	if err != nil {
		return nil, ioErr("open", e.Source, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioErr("stat", e.Source, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, ioErr("read", e.Source, fmt.Errorf("not a regular file"))
	}
	o := &opened{reader: f, size: info.Size(), mode: 0o644, modTime: fixed}
	if info.Mode().Perm()&0o111 != 0 || e.Executable {
		o.mode = 0o755
	}
	if !pinned {
		o.modTime = info.ModTime()
	}
	return o, nil
}

// sortEntries returns the entries ordered by path and rejects duplicate
// or unsafe paths.
func sortEntries(entries []Entry) ([]Entry, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	for i, e := range sorted {
		if err := validPath(e.Path); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].Path == e.Path {
			return nil, ioErr("add", e.Path, fmt.Errorf("duplicate archive entry"))
		}
	}
	return sorted, nil
}

func validPath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") || path.Clean(p) != p ||
		p == ".." || strings.HasPrefix(p, "../") {
		return ioErr("add", p, fmt.Errorf("invalid archive path"))
	}
	return nil
}
