// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	"bytes"
	"debug/pe"
	"fmt"
	"io"

	"github.com/zhaixiaojuan/maturin/pkg/target"
)

var (
	peMachines = map[target.Arch]uint16{
		target.X86_64:  pe.IMAGE_FILE_MACHINE_AMD64,
		target.X86:     pe.IMAGE_FILE_MACHINE_I386,
		target.Aarch64: pe.IMAGE_FILE_MACHINE_ARM64,
	}

	wasmMagic = []byte("\x00asm")
)

func checkPE(path string, r io.ReaderAt, opts Options) (*Report, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, malformed(path, err)
	}
	arch := opts.Target.Triple.Arch
	if want, ok := peMachines[arch]; !ok || f.Machine != want {
		return nil, &NonCompliantBinaryError{
			Path:   path,
			Tag:    opts.Tag.String(),
			Reason: fmt.Sprintf("architecture mismatch: PE machine %#x, target is %s", f.Machine, arch),
		}
	}
	libs, err := f.ImportedLibraries()
	if err != nil {
		return nil, malformed(path, err)
	}
	return &Report{
		Path:      path,
		Format:    FormatPE,
		Machine:   fmt.Sprintf("%#x", f.Machine),
		Libraries: libs,
		Tag:       opts.Tag,
	}, nil
}

func checkWasm(path string, r io.ReaderAt, opts Options) (*Report, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, malformed(path, fmt.Errorf("read header: %w", err))
	}
	if !bytes.Equal(header[:4], wasmMagic) {
		return nil, malformed(path, "missing WebAssembly magic")
	}
	return &Report{Path: path, Format: FormatWasm, Machine: string(target.Wasm32), Tag: opts.Tag}, nil
}
