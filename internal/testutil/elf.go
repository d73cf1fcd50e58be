// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"testing"
)

type (
	// ELFSymbol is an undefined dynamic symbol imported by a synthetic ELF.
	// Library and Version are both empty for unversioned imports.
	ELFSymbol struct {
		Name    string
		Library string
		Version string
	}

	// ELFSpec describes a minimal little-endian ELF64 shared object carrying
	// only the dynamic sections the compatibility checker reads.
	ELFSpec struct {
		Machine elf.Machine
		Needed  []string
		Symbols []ELFSymbol
	}

	elfStrtab struct {
		buf     bytes.Buffer
		offsets map[string]uint32
	}

	elfSection struct {
		name    string
		typ     elf.SectionType
		link    uint32
		info    uint32
		entsize uint64
		data    []byte
	}

	versionKey struct {
		library string
		version string
	}
)

func newELFStrtab() *elfStrtab {
	s := &elfStrtab{offsets: make(map[string]uint32)}
	s.buf.WriteByte(0)
	s.offsets[""] = 0
	return s
}

func (s *elfStrtab) add(str string) uint32 {
	if off, ok := s.offsets[str]; ok {
		return off
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(str)
	s.buf.WriteByte(0)
	s.offsets[str] = off
	return off
}

// WriteELF writes the ELF described by spec to path.
func WriteELF(t testing.TB, path string, spec ELFSpec) {
	t.Helper()
	WriteFile(t, path, ELF(spec), 0o755)
}

// ELF renders spec as an ELF64 shared object image.
func ELF(spec ELFSpec) []byte {
	le := binary.LittleEndian
	dynstr := newELFStrtab()

	// Version indexes 0 and 1 are reserved for local and global symbols.
	indexes := make(map[versionKey]uint16)
	var order []versionKey
	for _, sym := range spec.Symbols {
		if sym.Version == "" {
			continue
		}
		key := versionKey{library: sym.Library, version: sym.Version}
		if _, ok := indexes[key]; !ok {
			indexes[key] = uint16(len(order) + 2)
			order = append(order, key)
		}
	}

	var dynsym, versym bytes.Buffer
	dynsym.Write(make([]byte, 24))
	_ = binary.Write(&versym, le, uint16(0))
	for _, sym := range spec.Symbols {
		_ = binary.Write(&dynsym, le, dynstr.add(sym.Name))
		dynsym.WriteByte(byte(elf.STB_GLOBAL)<<4 | byte(elf.STT_FUNC))
		dynsym.WriteByte(0)
		_ = binary.Write(&dynsym, le, uint16(elf.SHN_UNDEF))
		dynsym.Write(make([]byte, 16))

		index := uint16(1)
		if sym.Version != "" {
			index = indexes[versionKey{library: sym.Library, version: sym.Version}]
		}
		_ = binary.Write(&versym, le, index)
	}

	var libraries []string
	byLibrary := make(map[string][]versionKey)
	for _, key := range order {
		if _, ok := byLibrary[key.library]; !ok {
			libraries = append(libraries, key.library)
		}
		byLibrary[key.library] = append(byLibrary[key.library], key)
	}

	var verneed bytes.Buffer
	for i, lib := range libraries {
		keys := byLibrary[lib]
		next := uint32(16 + 16*len(keys))
		if i == len(libraries)-1 {
			next = 0
		}
		_ = binary.Write(&verneed, le, uint16(1))
		_ = binary.Write(&verneed, le, uint16(len(keys)))
		_ = binary.Write(&verneed, le, dynstr.add(lib))
		_ = binary.Write(&verneed, le, uint32(16))
		_ = binary.Write(&verneed, le, next)
		for j, key := range keys {
			auxNext := uint32(16)
			if j == len(keys)-1 {
				auxNext = 0
			}
			_ = binary.Write(&verneed, le, elfHash(key.version))
			_ = binary.Write(&verneed, le, uint16(0))
			_ = binary.Write(&verneed, le, indexes[key])
			_ = binary.Write(&verneed, le, dynstr.add(key.version))
			_ = binary.Write(&verneed, le, auxNext)
		}
	}

	var dynamic bytes.Buffer
	for _, lib := range spec.Needed {
		_ = binary.Write(&dynamic, le, uint64(elf.DT_NEEDED))
		_ = binary.Write(&dynamic, le, uint64(dynstr.add(lib)))
	}
	dynamic.Write(make([]byte, 16))

	sections := []elfSection{
		{},
		{name: ".dynstr", typ: elf.SHT_STRTAB, data: dynstr.buf.Bytes()},
		{name: ".dynsym", typ: elf.SHT_DYNSYM, link: 1, info: 1, entsize: 24, data: dynsym.Bytes()},
		{name: ".gnu.version", typ: elf.SHT_GNU_VERSYM, link: 2, entsize: 2, data: versym.Bytes()},
		{name: ".gnu.version_r", typ: elf.SHT_GNU_VERNEED, link: 1, info: uint32(len(libraries)), data: verneed.Bytes()},
		{name: ".dynamic", typ: elf.SHT_DYNAMIC, link: 1, entsize: 16, data: dynamic.Bytes()},
		{name: ".shstrtab", typ: elf.SHT_STRTAB},
	}
	shstrtab := newELFStrtab()
	names := make([]uint32, len(sections))
	for i, sec := range sections {
		if sec.name != "" {
			names[i] = shstrtab.add(sec.name)
		}
	}
	sections[len(sections)-1].data = shstrtab.buf.Bytes()

	const headerSize = 64
	var body bytes.Buffer
	offsets := make([]uint64, len(sections))
	for i, sec := range sections {
		if i == 0 {
			continue
		}
		pad(&body, headerSize, 8)
		offsets[i] = uint64(headerSize + body.Len())
		body.Write(sec.data)
	}
	pad(&body, headerSize, 8)
	shoff := uint64(headerSize + body.Len())

	var out bytes.Buffer
	out.Write([]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	out.Write(make([]byte, 9))
	_ = binary.Write(&out, le, uint16(elf.ET_DYN))
	_ = binary.Write(&out, le, uint16(spec.Machine))
	_ = binary.Write(&out, le, uint32(elf.EV_CURRENT))
	_ = binary.Write(&out, le, uint64(0))
	_ = binary.Write(&out, le, uint64(0))
	_ = binary.Write(&out, le, shoff)
	_ = binary.Write(&out, le, uint32(0))
	_ = binary.Write(&out, le, uint16(headerSize))
	_ = binary.Write(&out, le, uint16(56))
	_ = binary.Write(&out, le, uint16(0))
	_ = binary.Write(&out, le, uint16(64))
	_ = binary.Write(&out, le, uint16(len(sections)))
	_ = binary.Write(&out, le, uint16(len(sections)-1))
	out.Write(body.Bytes())

	for i, sec := range sections {
		_ = binary.Write(&out, le, names[i])
		_ = binary.Write(&out, le, uint32(sec.typ))
		_ = binary.Write(&out, le, uint64(0))
		_ = binary.Write(&out, le, uint64(0))
		_ = binary.Write(&out, le, offsets[i])
		_ = binary.Write(&out, le, uint64(len(sec.data)))
		_ = binary.Write(&out, le, sec.link)
		_ = binary.Write(&out, le, sec.info)
		align := uint64(1)
		if i > 0 {
			align = 8
		}
		_ = binary.Write(&out, le, align)
		_ = binary.Write(&out, le, sec.entsize)
	}
	return out.Bytes()
}

// pad pads buf so that base+buf.Len() is a multiple of align.
func pad(buf *bytes.Buffer, base, align int) {
	for (base+buf.Len())%align != 0 {
		buf.WriteByte(0)
	}
}

func elfHash(name string) uint32 {
	var h uint32
	for i := range len(name) {
		h = h<<4 + uint32(name[i])
		if g := h & 0xf0000000; g != 0 {
			h ^= g >> 24
		}
		h &^= 0xf0000000
	}
	return h
}

// MustOpenELF opens path as an ELF file and closes it when the test ends.
func MustOpenELF(t testing.TB, path string) *elf.File {
	t.Helper()
	f, err := elf.Open(path)
	if err != nil {
		t.Fatalf("failed to open ELF %s: %v", path, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// ReadFile reads path, failing the test on error.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}
