// SPDX-License-Identifier: MPL-2.0

package target

import (
	"runtime"
	"slices"
	"strings"

	"github.com/zhaixiaojuan/maturin/pkg/platform"
)

type (
	// OS is the operating system family of a triple.
	OS string

	// Arch is a normalized CPU architecture.
	Arch string

	// Env is the environment/libc part of a triple.
	Env string

	// Triple is a parsed Rust target triple.
	Triple struct {
		Arch Arch
		OS   OS
		Env  Env
		// Raw is the triple as given.
		Raw string
	}
)

// Operating systems with a tag mapping.
const (
	Linux   OS = "linux"
	MacOS   OS = "macos"
	Windows OS = "windows"
	Wasi    OS = "wasi"
)

// Architectures, named as they appear in platform tags.
const (
	X86_64     Arch = "x86_64"
	X86        Arch = "i686"
	Aarch64    Arch = "aarch64"
	Armv7      Arch = "armv7l"
	Ppc64le    Arch = "ppc64le"
	Ppc64      Arch = "ppc64"
	S390x      Arch = "s390x"
	Riscv64    Arch = "riscv64"
	Wasm32     Arch = "wasm32"
	Universal2 Arch = "universal2"
)

// Triple environments that change the platform tag.
const (
	EnvNone Env = ""
	EnvGnu  Env = "gnu"
	EnvMusl Env = "musl"
	EnvMsvc Env = "msvc"
)

// supportedArches lists the architectures with a tag mapping per OS.
var supportedArches = map[OS][]Arch{
	Linux:   {X86_64, X86, Aarch64, Armv7, Ppc64le, Ppc64, S390x, Riscv64},
	MacOS:   {X86_64, Aarch64, Universal2},
	Windows: {X86_64, X86, Aarch64},
	Wasi:    {Wasm32},
}

var archAliases = map[string]Arch{
	"x86_64":      X86_64,
	"amd64":       X86_64,
	"i686":        X86,
	"i586":        X86,
	"i386":        X86,
	"aarch64":     Aarch64,
	"arm64":       Aarch64,
	"armv7":       Armv7,
	"armv7l":      Armv7,
	"powerpc64le": Ppc64le,
	"powerpc64":   Ppc64,
	"s390x":       S390x,
	"riscv64gc":   Riscv64,
	"riscv64":     Riscv64,
	"wasm32":      Wasm32,
	"universal2":  Universal2,
}

// ParseTriple parses a target triple such as "x86_64-unknown-linux-gnu",
// "aarch64-apple-darwin", "x86_64-pc-windows-msvc" or "wasm32-wasip1".
func ParseTriple(triple string) (Triple, error) {
	parts := strings.Split(triple, "-")
	if len(parts) < 2 {
		return Triple{}, &UnsupportedTargetError{Triple: triple, Reason: "expected <arch>-<vendor>-<os>[-<env>]"}
	}
	arch, ok := archAliases[parts[0]]
	if !ok {
		return Triple{}, &UnsupportedTargetError{Triple: triple, Reason: "unknown architecture " + parts[0]}
	}

	t := Triple{Arch: arch, Raw: triple}
	rest := parts[1:]
	switch {
	case slices.Contains(rest, "linux"):
		t.OS = Linux
		env := rest[len(rest)-1]
		switch {
		case strings.HasPrefix(env, "musl"):
			t.Env = EnvMusl
		case strings.HasPrefix(env, "gnu"):
			t.Env = EnvGnu
		default:
			return Triple{}, &UnsupportedTargetError{Triple: triple, Reason: "unknown linux environment " + env}
		}
	case slices.Contains(rest, "darwin"):
		t.OS = MacOS
	case slices.Contains(rest, "windows"):
		t.OS = Windows
		t.Env = EnvMsvc
		if env := rest[len(rest)-1]; strings.HasPrefix(env, "gnu") {
			t.Env = EnvGnu
		}
	case slices.ContainsFunc(rest, func(s string) bool { return strings.HasPrefix(s, "wasi") }):
		t.OS = Wasi
	default:
		return Triple{}, &UnsupportedTargetError{Triple: triple, Reason: "unknown operating system"}
	}

	if !slices.Contains(supportedArches[t.OS], t.Arch) {
		return Triple{}, &UnsupportedTargetError{Triple: triple, Reason: "architecture " + string(t.Arch) + " is not supported on " + string(t.OS)}
	}
	return t, nil
}

// String returns the triple as given.
func (t Triple) String() string {
	return t.Raw
}

// IsLinux reports whether the triple targets Linux.
func (t Triple) IsLinux() bool { return t.OS == Linux }

// IsMusl reports whether the triple targets musl libc.
func (t Triple) IsMusl() bool { return t.OS == Linux && t.Env == EnvMusl }

// SharedLibraryExt returns the file extension of a cdylib for the triple.
func (t Triple) SharedLibraryExt() string {
	switch t.OS {
	case Windows:
		return ".dll"
	case MacOS:
		return ".dylib"
	case Wasi:
		return ".wasm"
	default:
		return ".so"
	}
}

// ExecutableExt returns the file extension of executables for the triple.
func (t Triple) ExecutableExt() string {
	switch t.OS {
	case Windows:
		return ".exe"
	case Wasi:
		return ".wasm"
	default:
		return ""
	}
}

// Host returns the triple of the running process, using the go runtime
// names and the C library detected on Linux.
func Host() (Triple, error) {
	return hostTriple(runtime.GOOS, runtime.GOARCH, platform.DetectLibc)
}

func hostTriple(goos, goarch string, libc func() platform.Libc) (Triple, error) {
	var arch string
	switch goarch {
	case platform.AMD64:
		arch = "x86_64"
	case platform.I386:
		arch = "i686"
	case platform.ARM64:
		arch = "aarch64"
	case platform.ARM:
		arch = "armv7"
	case platform.PPC64LE:
		arch = "powerpc64le"
	case platform.PPC64:
		arch = "powerpc64"
	case platform.S390X:
		arch = "s390x"
	case platform.RISCV64:
		arch = "riscv64gc"
	default:
		return Triple{}, &UnsupportedTargetError{Triple: goos + "/" + goarch, Reason: "host architecture has no target triple"}
	}

	switch goos {
	case platform.Linux:
		env := "gnu"
		if libc() == platform.LibcMusl {
			env = "musl"
		}
		if arch == "armv7" {
			env += "eabihf"
		}
		return ParseTriple(arch + "-unknown-linux-" + env)
	case platform.Darwin:
		return ParseTriple(arch + "-apple-darwin")
	case platform.Windows:
		return ParseTriple(arch + "-pc-windows-msvc")
	default:
		return Triple{}, &UnsupportedTargetError{Triple: goos + "/" + goarch, Reason: "host operating system has no target triple"}
	}
}
