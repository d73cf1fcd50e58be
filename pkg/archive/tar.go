// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression is the outer compression of a source archive.
type Compression string

// Supported source archive compressions.
const (
	Gzip Compression = "gzip"
	Xz   Compression = "xz"
)

// TarOptions configures WriteTar.
type TarOptions struct {
	Timestamps  Timestamps
	Compression Compression
}

// ParseCompression converts a configuration value into a Compression.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", Gzip:
		return Gzip, nil
	case Xz:
		return Xz, nil
	default:
		return "", fmt.Errorf("unknown sdist compression %q (expected %q or %q)", s, Gzip, Xz)
	}
}

// Extension returns the file name suffix of the compression.
func (c Compression) Extension() string {
	if c == Xz {
		return ".tar.xz"
	}
	return ".tar.gz"
}

// WriteTar writes entries sorted by path as a compressed tar stream.
func WriteTar(w io.Writer, entries []Entry, opts TarOptions) error {
	sorted, err := sortEntries(entries)
	if err != nil {
		return err
	}

	var cw io.WriteCloser
	switch opts.Compression {
	case "", Gzip:
		gz, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return ioErr("create", "gzip stream", err)
		}
		if fixed, ok := opts.Timestamps.fixed(); ok {
			gz.ModTime = fixed
		}
		cw = gz
	case Xz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return ioErr("create", "xz stream", err)
		}
		cw = xw
	default:
		return ioErr("create", "tar archive", fmt.Errorf("unknown compression %q", opts.Compression))
	}

	tw := tar.NewWriter(cw)
	for _, e := range sorted {
		if err := writeTarEntry(tw, e, opts.Timestamps); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return ioErr("close", "tar archive", err)
	}
	if err := cw.Close(); err != nil {
		return ioErr("close", string(opts.Compression)+" stream", err)
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, e Entry, ts Timestamps) error {
	o, err := e.open(ts)
	if err != nil {
		return err
	}
	defer func() { _ = o.reader.Close() }()

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     e.Path,
		Mode:     int64(o.mode),
		Size:     o.size,
		ModTime:  o.modTime.UTC().Truncate(time.Second),
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(header); err != nil {
		return ioErr("add", e.Path, err)
	}
	if _, err := io.CopyN(tw, o.reader, o.size); err != nil {
		return ioErr("write", e.Path, err)
	}
	return nil
}
