// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"testing"
)

const (
	// loadCmdBuildVersion is LC_BUILD_VERSION.
	loadCmdBuildVersion = 0x32
	// loadCmdVersionMinMacOSX is LC_VERSION_MIN_MACOSX.
	loadCmdVersionMinMacOSX = 0x24
	platformMacOS           = 1
	machoDylib              = 0x6
)

// MachOSpec describes a minimal 64-bit Mach-O dylib.
type MachOSpec struct {
	Cpu macho.Cpu
	// MinOS is "major.minor"; empty omits the version load command.
	MinOS string
	// Legacy emits LC_VERSION_MIN_MACOSX instead of LC_BUILD_VERSION.
	Legacy bool
}

// MachO renders spec as a thin Mach-O image.
func MachO(spec MachOSpec) []byte {
	le := binary.LittleEndian
	var cmds bytes.Buffer
	ncmds := uint32(0)
	if spec.MinOS != "" {
		version := encodeMachOVersion(spec.MinOS)
		if spec.Legacy {
			_ = binary.Write(&cmds, le, []uint32{loadCmdVersionMinMacOSX, 16, version, version})
		} else {
			_ = binary.Write(&cmds, le, []uint32{loadCmdBuildVersion, 24, platformMacOS, version, version, 0})
		}
		ncmds++
	}

	var subCpu uint32
	if spec.Cpu == macho.CpuAmd64 {
		subCpu = 3
	}

	var out bytes.Buffer
	_ = binary.Write(&out, le, []uint32{
		macho.Magic64, uint32(spec.Cpu), subCpu, machoDylib,
		ncmds, uint32(cmds.Len()), 0, 0,
	})
	out.Write(cmds.Bytes())
	return out.Bytes()
}

// FatMachO renders a universal binary containing one slice per spec.
func FatMachO(specs ...MachOSpec) []byte {
	be := binary.BigEndian
	const align = 3
	slices := make([][]byte, len(specs))
	for i, spec := range specs {
		slices[i] = MachO(spec)
	}

	offset := uint32(8 + 20*len(specs))
	var header, body bytes.Buffer
	_ = binary.Write(&header, be, []uint32{macho.MagicFat, uint32(len(specs))})
	for i, spec := range specs {
		for (offset+uint32(body.Len()))%(1<<align) != 0 {
			body.WriteByte(0)
		}
		sliceOffset := offset + uint32(body.Len())
		var subCpu uint32
		if spec.Cpu == macho.CpuAmd64 {
			subCpu = 3
		}
		_ = binary.Write(&header, be, []uint32{uint32(spec.Cpu), subCpu, sliceOffset, uint32(len(slices[i])), align})
		body.Write(slices[i])
	}
	return append(header.Bytes(), body.Bytes()...)
}

func encodeMachOVersion(v string) uint32 {
	var major, minor uint32
	var i int
	for i < len(v) && v[i] != '.' {
		major = major*10 + uint32(v[i]-'0')
		i++
	}
	for i++; i < len(v) && v[i] != '.'; i++ {
		minor = minor*10 + uint32(v[i]-'0')
	}
	return major<<16 | minor<<8
}

// PE renders a PE image header for machine with no sections.
func PE(machine uint16) []byte {
	le := binary.LittleEndian
	var out bytes.Buffer
	dos := make([]byte, 64)
	dos[0], dos[1] = 'M', 'Z'
	le.PutUint32(dos[0x3c:], 64)
	out.Write(dos)
	out.WriteString("PE\x00\x00")
	_ = binary.Write(&out, le, pe.FileHeader{
		Machine:         machine,
		Characteristics: pe.IMAGE_FILE_DLL | pe.IMAGE_FILE_EXECUTABLE_IMAGE,
	})
	// debug/pe reads a fixed-size DOS stub window.
	out.Write(make([]byte, 64))
	return out.Bytes()
}

// Wasm returns an empty WebAssembly module.
func Wasm() []byte {
	return []byte("\x00asm\x01\x00\x00\x00")
}

// WriteBinary writes data to path as an executable file.
func WriteBinary(t testing.TB, path string, data []byte) {
	t.Helper()
	WriteFile(t, path, data, 0o755)
}
