// SPDX-License-Identifier: MPL-2.0

package target

import (
	"fmt"
	"regexp"
	"strconv"
)

var interpreterPattern = regexp.MustCompile(`^(?:cp)?3\.?(\d+)$`)

type (
	// PythonVersion is a CPython minor release (3.12).
	PythonVersion struct {
		Major int
		Minor int
	}

	// InterpreterOptions selects the interpreter part of a wheel tag.
	InterpreterOptions struct {
		// Extension is set for bridges producing a CPython extension module.
		Extension bool
		// Abi3 and Abi3Min describe the stable ABI configuration.
		Abi3    bool
		Abi3Min string
		// Interpreter is the target Python version ("3.12" or "cp312"),
		// empty when unknown.
		Interpreter string
	}

	// InterpreterTag is the python and ABI part of a wheel tag.
	InterpreterTag struct {
		Python string
		ABI    string
		// Version is the CPython version the tag refers to, zero for py3-none.
		Version PythonVersion
	}
)

// ParsePythonVersion accepts "3.12", "312" or "cp312".
func ParsePythonVersion(s string) (PythonVersion, error) {
	m := interpreterPattern.FindStringSubmatch(s)
	if m == nil {
		return PythonVersion{}, fmt.Errorf("invalid python version %q", s)
	}
	minor, _ := strconv.Atoi(m[1])
	return PythonVersion{Major: 3, Minor: minor}, nil
}

func (v PythonVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CPythonTag returns the "cp312" form.
func (v PythonVersion) CPythonTag() string {
	return fmt.Sprintf("cp%d%d", v.Major, v.Minor)
}

func (t InterpreterTag) String() string {
	return t.Python + "-" + t.ABI
}

// IsAbi3 reports whether the tag targets the stable ABI.
func (t InterpreterTag) IsAbi3() bool {
	return t.ABI == "abi3"
}

// ResolveInterpreter derives the interpreter tag. Non-extension bridges are
// interpreter independent; abi3 extensions use the minimum version of the
// abi3-pyXY feature, falling back to the interpreter.
func ResolveInterpreter(opts InterpreterOptions) (InterpreterTag, error) {
	if !opts.Extension {
		return InterpreterTag{Python: "py3", ABI: "none"}, nil
	}

	if opts.Abi3 {
		version := opts.Abi3Min
		if version == "" {
			version = opts.Interpreter
		}
		if version == "" {
			return InterpreterTag{}, &Abi3WithoutVersionError{}
		}
		v, err := ParsePythonVersion(version)
		if err != nil {
			return InterpreterTag{}, err
		}
		return InterpreterTag{Python: v.CPythonTag(), ABI: "abi3", Version: v}, nil
	}

	if opts.Interpreter == "" {
		return InterpreterTag{}, &InterpreterRequiredError{}
	}
	v, err := ParsePythonVersion(opts.Interpreter)
	if err != nil {
		return InterpreterTag{}, err
	}
	return InterpreterTag{Python: v.CPythonTag(), ABI: v.CPythonTag(), Version: v}, nil
}

// ExtensionSuffix returns the file suffix of an extension module built for
// the triple, e.g. ".abi3.so" or ".cpython-312-x86_64-linux-gnu.so".
func ExtensionSuffix(triple Triple, tag InterpreterTag) string {
	switch triple.OS {
	case Windows:
		if tag.IsAbi3() {
			return ".pyd"
		}
		return fmt.Sprintf(".%s-%s.pyd", tag.Version.CPythonTag(), Tag{Kind: KindWindows, Arch: triple.Arch}.String())
	case MacOS:
		if tag.IsAbi3() {
			return ".abi3.so"
		}
		return fmt.Sprintf(".cpython-%d%d-darwin.so", tag.Version.Major, tag.Version.Minor)
	case Wasi:
		return fmt.Sprintf(".cpython-%d%d-wasm32-wasi.so", tag.Version.Major, tag.Version.Minor)
	default:
		if tag.IsAbi3() {
			return ".abi3.so"
		}
		return fmt.Sprintf(".cpython-%d%d-%s.so", tag.Version.Major, tag.Version.Minor, linuxMultiarch(triple))
	}
}

func linuxMultiarch(triple Triple) string {
	env := "gnu"
	if triple.IsMusl() {
		env = "musl"
	}
	switch triple.Arch {
	case X86:
		return "i386-linux-" + env
	case Armv7:
		return "arm-linux-" + env + "eabihf"
	case Ppc64le:
		return "powerpc64le-linux-" + env
	case Ppc64:
		return "powerpc64-linux-" + env
	default:
		return string(triple.Arch) + "-linux-" + env
	}
}

// WheelTag joins the interpreter and platform tags into the full wheel tag.
func WheelTag(interp InterpreterTag, platform Tag) string {
	return interp.String() + "-" + platform.String()
}
