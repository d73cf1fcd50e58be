// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/csv"
	"hash"
	"io"
	"strconv"
)

// RecordEntry is one row of a RECORD file.
type RecordEntry struct {
	Path string
	// Hash is "sha256=<urlsafe base64 digest without padding>"; empty for
	// the RECORD file itself.
	Hash string
	Size int64
}

// Digest hashes r and returns the RECORD hash field and the byte count.
func Digest(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return "sha256=" + base64.RawURLEncoding.EncodeToString(h.Sum(nil)), n, nil
}

// RenderRecord renders the RECORD file listing entries followed by a
// hashless line for the RECORD file at recordPath.
func RenderRecord(entries []RecordEntry, recordPath string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, e := range entries {
		_ = w.Write([]string{e.Path, e.Hash, strconv.FormatInt(e.Size, 10)})
	}
	_ = w.Write([]string{recordPath, "", ""})
	w.Flush()
	return buf.Bytes()
}

// ParseRecord parses a RECORD file into entries. The self-referencing line
// is returned with an empty hash and zero size.
func ParseRecord(data []byte) ([]RecordEntry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 3
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]RecordEntry, 0, len(rows))
	for _, row := range rows {
		e := RecordEntry{Path: row[0], Hash: row[1]}
		if row[2] != "" {
			if e.Size, err = strconv.ParseInt(row[2], 10, 64); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// hashingWriter tees written bytes into a sha256 digest.
type hashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func newHashingWriter(w io.Writer) *hashingWriter {
	return &hashingWriter{w: w, h: sha256.New()}
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	_, _ = hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

func (hw *hashingWriter) record(p string) RecordEntry {
	return RecordEntry{Path: p, Hash: "sha256=" + base64.RawURLEncoding.EncodeToString(hw.h.Sum(nil)), Size: hw.n}
}
