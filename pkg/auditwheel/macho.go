// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	"debug/macho"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/zhaixiaojuan/maturin/pkg/target"
)

const (
	loadCmdVersionMinMacOSX = 0x24
	loadCmdBuildVersion     = 0x32
)

var machoCPUs = map[target.Arch]macho.Cpu{
	target.X86_64:  macho.CpuAmd64,
	target.Aarch64: macho.CpuArm64,
}

// machoSlice is one architecture of a (possibly fat) Mach-O file.
type machoSlice struct {
	arch  target.Arch
	major int
	minor int
	// versioned is false when no minimum OS load command is present.
	versioned bool
}

func checkMachO(path string, r io.ReaderAt, opts Options) (*Report, error) {
	parts, err := readMachOSlices(r)
	if err != nil {
		return nil, malformed(path, err)
	}
	report := &Report{Path: path, Format: FormatMachO}

	arch := opts.Target.Triple.Arch
	var wantArches []target.Arch
	if arch == target.Universal2 {
		wantArches = []target.Arch{target.X86_64, target.Aarch64}
	} else {
		wantArches = []target.Arch{arch}
	}
	for _, want := range wantArches {
		if !containsArch(parts, want) {
			return nil, &NonCompliantBinaryError{
				Path:   path,
				Tag:    opts.Tag.String(),
				Reason: fmt.Sprintf("binary has no %s slice", want),
			}
		}
	}

	required := opts.Tag
	for _, s := range parts {
		if !s.versioned {
			continue
		}
		needed := target.MacOSTag(s.major, s.minor, opts.Tag.Arch)
		// arm64 slices cannot target anything older than 11.0.
		if arch == target.Universal2 && s.arch == target.Aarch64 && needed.Major == 11 {
			continue
		}
		if needed.Compare(required) > 0 {
			required = needed
		}
	}
	report.Tag = opts.Tag
	report.MinOS = fmt.Sprintf("%d.%d", required.Major, required.Minor)
	report.Machine = string(arch)

	if required.Compare(opts.Tag) > 0 {
		if !opts.Auto {
			return nil, &NonCompliantBinaryError{
				Path:   path,
				Tag:    opts.Tag.String(),
				Reason: fmt.Sprintf("binary requires macOS %s", report.MinOS),
				Hint:   "raise MACOSX_DEPLOYMENT_TARGET or the macos deployment target option",
			}
		}
		report.Tag = required
		warning := fmt.Sprintf("binary requires macOS %s, raising platform tag to %s", report.MinOS, required)
		report.Warnings = append(report.Warnings, warning)
		opts.Logger.Warn("raised macOS platform tag", "path", path, "min_os", report.MinOS, "tag", required.String())
	}
	return report, nil
}

func containsArch(s []machoSlice, arch target.Arch) bool {
	return slices.ContainsFunc(s, func(m machoSlice) bool { return m.arch == arch })
}

func readMachOSlices(r io.ReaderAt) ([]machoSlice, error) {
	fat, err := macho.NewFatFile(r)
	if err == nil {
		out := make([]machoSlice, 0, len(fat.Arches))
		for _, a := range fat.Arches {
			out = append(out, machoSliceOf(a.File))
		}
		return out, nil
	}
	if !errors.Is(err, macho.ErrNotFat) {
		return nil, err
	}
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	return []machoSlice{machoSliceOf(f)}, nil
}

func machoSliceOf(f *macho.File) machoSlice {
	s := machoSlice{}
	for arch, cpu := range machoCPUs {
		if f.Cpu == cpu {
			s.arch = arch
		}
	}
	for _, l := range f.Loads {
		raw := l.Raw()
		if len(raw) < 16 {
			continue
		}
		var version uint32
		switch f.ByteOrder.Uint32(raw) {
		case loadCmdBuildVersion:
			version = f.ByteOrder.Uint32(raw[12:])
		case loadCmdVersionMinMacOSX:
			version = f.ByteOrder.Uint32(raw[8:])
		default:
			continue
		}
		s.major = int(version >> 16)
		s.minor = int(version >> 8 & 0xff)
		s.versioned = true
	}
	return s
}
