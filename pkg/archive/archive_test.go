// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/zhaixiaojuan/maturin/internal/testutil"
)

func sampleEntries(t *testing.T) []Entry {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"pkg/__init__.py": "print('hi')\n", "pkg/cli.py": "main()\n"})
	lib := filepath.Join(dir, "native.so")
	testutil.WriteBinary(t, lib, []byte("\x7fELF fake"))
	old := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	for _, p := range []string{"pkg/__init__.py", "pkg/cli.py", "native.so"} {
		if err := os.Chtimes(filepath.Join(dir, filepath.FromSlash(p)), old, old); err != nil {
			t.Fatal(err)
		}
	}
	return []Entry{
		{Path: "pkg/native.so", Source: lib},
		{Path: "pkg/__init__.py", Source: filepath.Join(dir, "pkg", "__init__.py")},
		{Path: "demo-1.0.dist-info/METADATA", Data: []byte("Metadata-Version: 2.3\n")},
		{Path: "pkg/cli.py", Source: filepath.Join(dir, "pkg", "cli.py")},
	}
}

func sha(data string) string {
	sum := sha256.Sum256([]byte(data))
	return "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// =============================================================================
// Zip
// =============================================================================

func TestWriteZip_SortedWithRecordLast(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	records, err := WriteZip(&buf, sampleEntries(t), ZipOptions{
		CompressionLevel: 6,
		RecordPath:       "demo-1.0.dist-info/RECORD",
		Timestamps:       Timestamps{Reproducible: true},
	})
	if err != nil {
		t.Fatalf("WriteZip() error: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("len(records) = %d, want 4", len(records))
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{
		"demo-1.0.dist-info/METADATA",
		"pkg/__init__.py",
		"pkg/cli.py",
		"pkg/native.so",
		"demo-1.0.dist-info/RECORD",
	}
	if !slices.Equal(names, want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}

	record := readZipFile(t, zr, "demo-1.0.dist-info/RECORD")
	lines := strings.Split(strings.TrimSuffix(record, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("RECORD has %d lines, want 5:\n%s", len(lines), record)
	}
	if lines[1] != "pkg/__init__.py,"+sha("print('hi')\n")+",12" {
		t.Errorf("RECORD line = %q", lines[1])
	}
	if lines[4] != "demo-1.0.dist-info/RECORD,," {
		t.Errorf("last RECORD line = %q", lines[4])
	}
	for _, f := range zr.File {
		if f.Name == "demo-1.0.dist-info/RECORD" {
			continue
		}
		if !strings.Contains(record, f.Name+",sha256=") {
			t.Errorf("RECORD misses %s", f.Name)
		}
	}
}

func TestWriteZip_PinnedTimestamp(t *testing.T) {
	t.Parallel()

	pinned := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if _, err := WriteZip(&buf, sampleEntries(t), ZipOptions{CompressionLevel: 6, Timestamps: Timestamps{Pinned: pinned}}); err != nil {
		t.Fatalf("WriteZip() error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if !f.Modified.Equal(pinned) {
			t.Errorf("%s Modified = %v, want %v", f.Name, f.Modified, pinned)
		}
	}
}

func TestWriteZip_ClampsPre1980(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	entries := []Entry{{Path: "a.txt", Data: []byte("a")}}
	if _, err := WriteZip(&buf, entries, ZipOptions{Timestamps: Timestamps{Pinned: time.Unix(0, 0)}}); err != nil {
		t.Fatalf("WriteZip() error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if got := zr.File[0].Modified; !got.Equal(zipEpoch) {
		t.Errorf("Modified = %v, want %v", got, zipEpoch)
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("Method = %d, want Store for level 0", zr.File[0].Method)
	}
}

func TestWriteZip_FilesystemTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 5, 6, 7, 8, 10, 0, time.UTC)
	var buf bytes.Buffer
	_, err := WriteZip(&buf, sampleEntries(t), ZipOptions{Timestamps: Timestamps{Now: func() time.Time { return now }}})
	if err != nil {
		t.Fatalf("WriteZip() error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		want := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
		if strings.HasSuffix(f.Name, "METADATA") {
			want = now
		}
		if !f.Modified.Equal(want) {
			t.Errorf("%s Modified = %v, want %v", f.Name, f.Modified, want)
		}
	}
}

func TestWriteZip_Deterministic(t *testing.T) {
	t.Parallel()

	entries := sampleEntries(t)
	opts := ZipOptions{CompressionLevel: 9, RecordPath: "demo-1.0.dist-info/RECORD", Timestamps: Timestamps{Pinned: time.Unix(1700000000, 0)}}
	var a, b bytes.Buffer
	if _, err := WriteZip(&a, entries, opts); err != nil {
		t.Fatal(err)
	}
	reversed := slices.Clone(entries)
	slices.Reverse(reversed)
	if _, err := WriteZip(&b, reversed, opts); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("zip archives differ for identical inputs")
	}
}

func TestWriteZip_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []Entry
		record  string
		wantIO  bool
		notFind bool
	}{
		{"duplicate", []Entry{{Path: "a", Data: nil}, {Path: "a", Data: nil}}, "", true, false},
		{"absolute", []Entry{{Path: "/etc/passwd"}}, "", true, false},
		{"parent", []Entry{{Path: "../x"}}, "", true, false},
		{"unclean", []Entry{{Path: "a//b"}}, "", true, false},
		{"record conflict", []Entry{{Path: "x.dist-info/RECORD"}}, "x.dist-info/RECORD", true, false},
		{"missing source", []Entry{{Path: "a", Source: filepath.Join(t.TempDir(), "missing")}}, "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := WriteZip(io.Discard, tt.entries, ZipOptions{RecordPath: tt.record})
			if !errors.Is(err, ErrIO) {
				t.Fatalf("expected ErrIO, got %v", err)
			}
			if tt.notFind && !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("expected fs.ErrNotExist, got %v", err)
			}
		})
	}
}

func readZipFile(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatalf("%s not found in archive", name)
	return ""
}

// =============================================================================
// Tar
// =============================================================================

func readTar(t *testing.T, data []byte, compression Compression) map[string]*tar.Header {
	t.Helper()
	var r io.Reader
	switch compression {
	case Xz:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		r = xr
	default:
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		r = gr
	}
	tr := tar.NewReader(r)
	headers := make(map[string]*tar.Header)
	var order []string
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		headers[h.Name] = h
		order = append(order, h.Name)
	}
	if !slices.IsSorted(order) {
		t.Errorf("tar entries not sorted: %v", order)
	}
	return headers
}

func TestWriteTar_Compressions(t *testing.T) {
	t.Parallel()

	pinned := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range []Compression{Gzip, Xz} {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := WriteTar(&buf, sampleEntries(t), TarOptions{Compression: c, Timestamps: Timestamps{Pinned: pinned}})
			if err != nil {
				t.Fatalf("WriteTar() error: %v", err)
			}
			headers := readTar(t, buf.Bytes(), c)
			if len(headers) != 4 {
				t.Fatalf("got %d entries, want 4", len(headers))
			}
			for name, h := range headers {
				if !h.ModTime.Equal(pinned) {
					t.Errorf("%s ModTime = %v, want %v", name, h.ModTime, pinned)
				}
			}
		})
	}
}

func TestWriteTar_Modes(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not preserved on Windows")
	}

	var buf bytes.Buffer
	if err := WriteTar(&buf, sampleEntries(t), TarOptions{Timestamps: Timestamps{Reproducible: true}}); err != nil {
		t.Fatal(err)
	}
	headers := readTar(t, buf.Bytes(), Gzip)
	if got := headers["pkg/native.so"].Mode; got != 0o755 {
		t.Errorf("native.so mode = %o, want 755", got)
	}
	if got := headers["pkg/cli.py"].Mode; got != 0o644 {
		t.Errorf("cli.py mode = %o, want 644", got)
	}
	if !headers["pkg/cli.py"].ModTime.Equal(DefaultEpoch) {
		t.Errorf("ModTime = %v, want %v", headers["pkg/cli.py"].ModTime, DefaultEpoch)
	}
}

func TestWriteTar_Deterministic(t *testing.T) {
	t.Parallel()

	entries := sampleEntries(t)
	opts := TarOptions{Timestamps: Timestamps{Pinned: time.Unix(1600000000, 0)}}
	var a, b bytes.Buffer
	if err := WriteTar(&a, entries, opts); err != nil {
		t.Fatal(err)
	}
	if err := WriteTar(&b, entries, opts); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("tar archives differ for identical inputs")
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Compression{"": Gzip, "gzip": Gzip, "XZ": Xz} {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCompression("zstd"); err == nil {
		t.Error("expected error for zstd")
	}
	if Xz.Extension() != ".tar.xz" || Gzip.Extension() != ".tar.gz" {
		t.Error("unexpected extensions")
	}
}

// =============================================================================
// Timestamps and RECORD
// =============================================================================

func TestParseSourceDateEpoch(t *testing.T) {
	t.Parallel()

	got, err := ParseSourceDateEpoch("315532800")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(zipEpoch) {
		t.Errorf("ParseSourceDateEpoch = %v, want %v", got, zipEpoch)
	}
	if got, err := ParseSourceDateEpoch(""); err != nil || !got.IsZero() {
		t.Errorf("empty = %v, %v", got, err)
	}
	if _, err := ParseSourceDateEpoch("yesterday"); err == nil {
		t.Error("expected error")
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, size, err := Digest(strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if hash != sha("hello") || size != 5 {
		t.Errorf("Digest = %q, %d", hash, size)
	}

	entries := []RecordEntry{{Path: "odd,name.py", Hash: hash, Size: size}}
	data := RenderRecord(entries, "x-1.dist-info/RECORD")
	if !strings.HasPrefix(string(data), `"odd,name.py",sha256=`) {
		t.Errorf("RECORD = %q", data)
	}
	parsed, err := ParseRecord(data)
	if err != nil {
		t.Fatal(err)
	}
	want := append(entries, RecordEntry{Path: "x-1.dist-info/RECORD"})
	if !slices.Equal(parsed, want) {
		t.Errorf("ParseRecord = %+v, want %+v", parsed, want)
	}
}
