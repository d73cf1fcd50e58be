// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// ZipOptions configures WriteZip.
type ZipOptions struct {
	Timestamps Timestamps
	// CompressionLevel is a flate level from -1 (default) to 9. Zero
	// stores entries uncompressed.
	CompressionLevel int
	// RecordPath, when set, appends a RECORD file at that path listing
	// every other entry with its digest and size.
	RecordPath string
}

// WriteZip writes entries sorted by path to w. The RECORD file, if
// requested, is always the last entry.
func WriteZip(w io.Writer, entries []Entry, opts ZipOptions) ([]RecordEntry, error) {
	sorted, err := sortEntries(entries)
	if err != nil {
		return nil, err
	}
	if opts.RecordPath != "" {
		for _, e := range sorted {
			if e.Path == opts.RecordPath {
				return nil, ioErr("add", e.Path, errRecordConflict)
			}
		}
	}

	zw := zip.NewWriter(w)
	level := opts.CompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	records := make([]RecordEntry, 0, len(sorted))
	for _, e := range sorted {
		rec, err := writeZipEntry(zw, e, opts)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if opts.RecordPath != "" {
		record := Entry{Path: opts.RecordPath, Data: RenderRecord(records, opts.RecordPath)}
		if _, err := writeZipEntry(zw, record, opts); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, ioErr("close", "zip archive", err)
	}
	return records, nil
}

func writeZipEntry(zw *zip.Writer, e Entry, opts ZipOptions) (RecordEntry, error) {
	o, err := e.open(opts.Timestamps)
	if err != nil {
		return RecordEntry{}, err
	}
	defer func() { _ = o.reader.Close() }()

	header := &zip.FileHeader{
		Name:     e.Path,
		Method:   zip.Deflate,
		Modified: ClampZipTime(o.modTime.UTC().Truncate(time.Second)),
	}
	if opts.CompressionLevel == 0 {
		header.Method = zip.Store
	}
	header.SetMode(o.mode)

	fw, err := zw.CreateHeader(header)
	if err != nil {
		return RecordEntry{}, ioErr("add", e.Path, err)
	}
	hw := newHashingWriter(fw)
	if _, err := io.Copy(hw, o.reader); err != nil {
		return RecordEntry{}, ioErr("write", e.Path, err)
	}
	return hw.record(e.Path), nil
}
