// SPDX-License-Identifier: MPL-2.0

package project

import (
	"fmt"
	"strings"
)

// BridgeKind is the mechanism exposing the compiled crate to Python.
type BridgeKind int

const (
	// ExtensionModule is a CPython extension module built with pyo3 or pyo3-ffi.
	ExtensionModule BridgeKind = iota
	// ForeignFunction is a plain cdylib loaded through cffi.
	ForeignFunction
	// UniversalInterface is a cdylib with uniffi-generated Python bindings.
	UniversalInterface
	// Binary is a standalone executable installed as a script.
	Binary
)

// Bridge is the detected binding configuration of the root crate.
type Bridge struct {
	Kind BridgeKind
	// Crate is the binding crate in use ("pyo3", "pyo3-ffi", "uniffi"), if any.
	Crate string
	// Abi3 is set when the stable ABI feature is enabled.
	Abi3 bool
	// Abi3Min is the minimum Python version ("3.8") of an abi3-pyXY
	// feature, empty for a bare abi3 feature.
	Abi3Min string
}

func (k BridgeKind) String() string {
	switch k {
	case ExtensionModule:
		return "pyo3"
	case ForeignFunction:
		return "cffi"
	case UniversalInterface:
		return "uniffi"
	case Binary:
		return "bin"
	default:
		return fmt.Sprintf("BridgeKind(%d)", int(k))
	}
}

// MarshalText renders the kind by name.
func (k BridgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseBridgeKind parses a [tool.maturin] bindings value.
func ParseBridgeKind(s string) (BridgeKind, error) {
	switch s {
	case "pyo3", "pyo3-ffi":
		return ExtensionModule, nil
	case "cffi":
		return ForeignFunction, nil
	case "uniffi":
		return UniversalInterface, nil
	case "bin":
		return Binary, nil
	default:
		return 0, fmt.Errorf("unknown bindings %q, expected one of pyo3, pyo3-ffi, cffi, uniffi, bin", s)
	}
}

// IsExtension reports whether the bridge produces a CPython extension module
// whose tag depends on the interpreter ABI.
func (b Bridge) IsExtension() bool {
	return b.Kind == ExtensionModule
}

// detectBridge picks the bridge of the root crate. An explicit bindings value
// wins; otherwise a binding crate dependency together with a cdylib target
// decides, and a crate with only binary targets is a Binary.
func detectBridge(root *Package, bindings string, features []string) (Bridge, error) {
	bindingCrate := ""
	for _, name := range []string{"pyo3", "pyo3-ffi", "uniffi"} {
		if _, ok := root.Dependency(name); ok {
			bindingCrate = name
			break
		}
	}

	var bridge Bridge
	switch {
	case bindings != "":
		kind, err := ParseBridgeKind(bindings)
		if err != nil {
			return Bridge{}, &ManifestError{Path: root.ManifestPath, Reason: err.Error()}
		}
		bridge.Kind = kind
		switch bindings {
		case "pyo3", "pyo3-ffi", "uniffi":
			bridge.Crate = bindings
		default:
			bridge.Crate = bindingCrate
		}
	case !root.HasCrateType("cdylib") && len(root.Bins) > 0:
		bridge = Bridge{Kind: Binary, Crate: bindingCrate}
	case !root.HasCrateType("cdylib"):
		return Bridge{}, &ManifestError{
			Path:   root.ManifestPath,
			Reason: `no cdylib library or binary target found; add crate-type = ["cdylib"] to [lib]`,
		}
	case bindingCrate == "pyo3" || bindingCrate == "pyo3-ffi":
		bridge = Bridge{Kind: ExtensionModule, Crate: bindingCrate}
	case bindingCrate == "uniffi":
		bridge = Bridge{Kind: UniversalInterface, Crate: bindingCrate}
	default:
		bridge = Bridge{Kind: ForeignFunction}
	}

	if bridge.Crate == "pyo3" || bridge.Crate == "pyo3-ffi" {
		bridge.Abi3, bridge.Abi3Min = detectAbi3(root, bridge.Crate, features)
	}
	return bridge, nil
}

// detectAbi3 looks for abi3 features on the binding crate, either set on the
// dependency itself or enabled through a crate feature ("pyo3/abi3-py38").
// The lowest abi3-pyXY version wins.
func detectAbi3(root *Package, crate string, features []string) (bool, string) {
	dep, _ := root.Dependency(crate)
	candidates := append([]string(nil), dep.Features...)
	for _, item := range root.EnabledFeatures(features, true) {
		if name, feature, ok := strings.Cut(item, "/"); ok && strings.TrimSuffix(name, "?") == crate {
			candidates = append(candidates, feature)
		}
	}

	abi3 := false
	minimum := ""
	for _, feature := range candidates {
		switch {
		case feature == "abi3":
			abi3 = true
		case strings.HasPrefix(feature, "abi3-py"):
			abi3 = true
			version := pythonVersionFromFeature(strings.TrimPrefix(feature, "abi3-py"))
			if version != "" && (minimum == "" || lessPythonVersion(version, minimum)) {
				minimum = version
			}
		}
	}
	return abi3, minimum
}

// pythonVersionFromFeature turns "38" or "310" into "3.8" or "3.10".
func pythonVersionFromFeature(digits string) string {
	if len(digits) < 2 || digits[0] != '3' {
		return ""
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return "3." + digits[1:]
}

func lessPythonVersion(a, b string) bool {
	var aMajor, aMinor, bMajor, bMinor int
	_, _ = fmt.Sscanf(a, "%d.%d", &aMajor, &aMinor)
	_, _ = fmt.Sscanf(b, "%d.%d", &bMajor, &bMinor)
	if aMajor != bMajor {
		return aMajor < bMajor
	}
	return aMinor < bMinor
}
