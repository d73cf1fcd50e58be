// SPDX-License-Identifier: MPL-2.0

package target

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// TagKind is the platform family of a Tag.
type TagKind int

const (
	// KindManylinux is a glibc manylinux policy tier.
	KindManylinux TagKind = iota
	// KindMusllinux is a musl policy tier.
	KindMusllinux
	// KindLinux is the non-portable linux_<arch> tag.
	KindLinux
	// KindMacOS is a macOS deployment target tag.
	KindMacOS
	// KindWindows is a Windows tag.
	KindWindows
	// KindAny is the platform independent tag used for WASI.
	KindAny
)

// Tag is a platform compatibility tag.
//
// For policy tiers Major and Minor hold the libc version (2.17 for
// manylinux_2_17); for macOS they hold the deployment target. Within a
// family a lower version is stricter: it claims compatibility with more
// systems.
type Tag struct {
	Kind  TagKind
	Arch  Arch
	Major int
	Minor int
}

// tier is one known Linux policy with the architectures it defines.
type tier struct {
	major, minor int
	alias        string
	arches       []Arch
}

var (
	legacyArches = []Arch{X86_64, X86}
	modernArches = []Arch{X86_64, X86, Aarch64, Armv7, Ppc64le, Ppc64, S390x}
	riscvArches  = []Arch{X86_64, X86, Aarch64, Armv7, Ppc64le, Ppc64, S390x, Riscv64}

	// manylinuxTiers is ordered strictest first.
	manylinuxTiers = []tier{
		{2, 5, "manylinux1", legacyArches},
		{2, 12, "manylinux2010", legacyArches},
		{2, 17, "manylinux2014", modernArches},
		{2, 24, "", modernArches},
		{2, 27, "", modernArches},
		{2, 28, "", modernArches},
		{2, 31, "", riscvArches},
		{2, 34, "", riscvArches},
		{2, 35, "", riscvArches},
	}

	musllinuxTiers = []tier{
		{1, 1, "", modernArches},
		{1, 2, "", riscvArches},
	}

	policyPattern   = regexp.MustCompile(`^(manylinux|musllinux)_(\d+)_(\d+)$`)
	tagPattern      = regexp.MustCompile(`^(manylinux|musllinux|macosx)_(\d+)_(\d+)_([a-z0-9_]+)$`)
	legacyPattern   = regexp.MustCompile(`^(manylinux1|manylinux2010|manylinux2014)_([a-z0-9_]+)$`)
	windowsTagArchs = map[string]Arch{"win_amd64": X86_64, "win32": X86, "win_arm64": Aarch64}
)

// macOS deployment targets used when none is requested.
const (
	defaultMacOSX86   = "10.12"
	defaultMacOSArm64 = "11.0"
)

func (k TagKind) String() string {
	switch k {
	case KindManylinux:
		return "manylinux"
	case KindMusllinux:
		return "musllinux"
	case KindLinux:
		return "linux"
	case KindMacOS:
		return "macosx"
	case KindWindows:
		return "windows"
	case KindAny:
		return "any"
	default:
		return fmt.Sprintf("TagKind(%d)", int(k))
	}
}

// IsPolicy reports whether the tag is a manylinux or musllinux tier.
func (t Tag) IsPolicy() bool {
	return t.Kind == KindManylinux || t.Kind == KindMusllinux
}

// PolicyName returns the tier name without architecture ("manylinux_2_17").
func (t Tag) PolicyName() string {
	return fmt.Sprintf("%s_%d_%d", t.Kind, t.Major, t.Minor)
}

// Alias returns the legacy name of a manylinux tier ("manylinux2014"), if any.
func (t Tag) Alias() string {
	if t.Kind != KindManylinux {
		return ""
	}
	for _, tr := range manylinuxTiers {
		if tr.major == t.Major && tr.minor == t.Minor {
			return tr.alias
		}
	}
	return ""
}

// String returns the platform tag. Tiers with a legacy alias and universal2
// macOS tags expand into a compressed tag set joined by '.'.
func (t Tag) String() string {
	return strings.Join(t.Names(), ".")
}

// Names returns the individual platform tags of t.
func (t Tag) Names() []string {
	switch t.Kind {
	case KindManylinux:
		names := []string{fmt.Sprintf("%s_%s", t.PolicyName(), t.Arch)}
		if alias := t.Alias(); alias != "" {
			names = append(names, fmt.Sprintf("%s_%s", alias, t.Arch))
		}
		return names
	case KindMusllinux:
		return []string{fmt.Sprintf("%s_%s", t.PolicyName(), t.Arch)}
	case KindLinux:
		return []string{"linux_" + string(t.Arch)}
	case KindMacOS:
		switch t.Arch {
		case Universal2:
			x86 := macOSName(t.Major, t.Minor, "x86_64")
			armMajor, armMinor := t.Major, t.Minor
			if armMajor < 11 {
				armMajor, armMinor = 11, 0
			}
			return []string{x86, macOSName(armMajor, armMinor, "arm64"), macOSName(t.Major, t.Minor, "universal2")}
		case Aarch64:
			return []string{macOSName(t.Major, t.Minor, "arm64")}
		default:
			return []string{macOSName(t.Major, t.Minor, string(t.Arch))}
		}
	case KindWindows:
		switch t.Arch {
		case X86:
			return []string{"win32"}
		case Aarch64:
			return []string{"win_arm64"}
		default:
			return []string{"win_amd64"}
		}
	default:
		return []string{"any"}
	}
}

// MarshalText renders the tag string.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func macOSName(major, minor int, arch string) string {
	return fmt.Sprintf("macosx_%d_%d_%s", major, minor, arch)
}

// Compare orders two tags of the same family by strictness: negative when t
// is stricter than o. Tags of different families compare by kind.
func (t Tag) Compare(o Tag) int {
	if t.Kind != o.Kind {
		return int(t.Kind) - int(o.Kind)
	}
	return semver.Compare(t.semver(), o.semver())
}

// Stricter reports whether t claims a narrower, more portable compatibility
// than o within the same family.
func (t Tag) Stricter(o Tag) bool {
	return t.Kind == o.Kind && t.Compare(o) < 0
}

func (t Tag) semver() string {
	return fmt.Sprintf("v%d.%d.0", t.Major, t.Minor)
}

// Policies returns the known tiers of the family defined for arch, strictest
// first.
func Policies(kind TagKind, arch Arch) []Tag {
	var tiers []tier
	switch kind {
	case KindManylinux:
		tiers = manylinuxTiers
	case KindMusllinux:
		tiers = musllinuxTiers
	default:
		return nil
	}
	var out []Tag
	for _, tr := range tiers {
		if slices.Contains(tr.arches, arch) {
			out = append(out, Tag{Kind: kind, Arch: arch, Major: tr.major, Minor: tr.minor})
		}
	}
	return out
}

// IsKnownPolicy reports whether the tag is a tier defined for its arch.
func IsKnownPolicy(t Tag) bool {
	return slices.Contains(Policies(t.Kind, t.Arch), t)
}

// ParsePolicy parses a policy or compatibility name ("manylinux_2_17",
// "manylinux2014", "musllinux_1_2", "linux") for arch.
func ParsePolicy(name string, arch Arch) (Tag, error) {
	switch name {
	case "linux", "off":
		return Tag{Kind: KindLinux, Arch: arch}, nil
	case "manylinux1":
		name = "manylinux_2_5"
	case "manylinux2010":
		name = "manylinux_2_12"
	case "manylinux2014":
		name = "manylinux_2_17"
	}
	m := policyPattern.FindStringSubmatch(name)
	if m == nil {
		return Tag{}, &InvalidTagError{Tag: name, Reason: "not a manylinux or musllinux policy name"}
	}
	tag := Tag{Kind: KindManylinux, Arch: arch}
	if m[1] == "musllinux" {
		tag.Kind = KindMusllinux
	}
	tag.Major, _ = strconv.Atoi(m[2])
	tag.Minor, _ = strconv.Atoi(m[3])
	if !IsKnownPolicy(tag) {
		return Tag{}, &InvalidTagError{Tag: name, Reason: fmt.Sprintf("unknown policy for %s", arch)}
	}
	return tag, nil
}

// ParsePlatformTag parses a platform tag string. Only tags this package
// produces are accepted, either a single name or the full compressed set.
func ParsePlatformTag(s string) (Tag, error) {
	if s == "" {
		return Tag{}, &InvalidTagError{Tag: s, Reason: "empty tag"}
	}
	var parsed []Tag
	for _, name := range strings.Split(s, ".") {
		tag, err := parseSinglePlatformTag(name)
		if err != nil {
			return Tag{}, &InvalidTagError{Tag: s, Reason: err.Error()}
		}
		parsed = append(parsed, tag)
	}

	tag := parsed[0]
	for _, p := range parsed {
		if p.Kind == KindMacOS && p.Arch == Universal2 {
			tag = p
		}
	}
	if s != tag.String() && !(len(parsed) == 1 && slices.Contains(tag.Names(), s)) {
		return Tag{}, &InvalidTagError{Tag: s, Reason: fmt.Sprintf("expected %q", tag.String())}
	}
	return tag, nil
}

func parseSinglePlatformTag(name string) (Tag, error) {
	if name == "any" {
		return Tag{Kind: KindAny, Arch: Wasm32}, nil
	}
	if arch, ok := windowsTagArchs[name]; ok {
		return Tag{Kind: KindWindows, Arch: arch}, nil
	}
	if rest, ok := strings.CutPrefix(name, "linux_"); ok {
		arch, err := parseTagArch(rest)
		if err != nil {
			return Tag{}, err
		}
		if !slices.Contains(supportedArches[Linux], arch) {
			return Tag{}, fmt.Errorf("architecture %s is not supported on linux", arch)
		}
		return Tag{Kind: KindLinux, Arch: arch}, nil
	}
	if m := legacyPattern.FindStringSubmatch(name); m != nil {
		arch, err := parseTagArch(m[2])
		if err != nil {
			return Tag{}, err
		}
		tag, err := ParsePolicy(m[1], arch)
		if err != nil {
			return Tag{}, err
		}
		return tag, nil
	}
	m := tagPattern.FindStringSubmatch(name)
	if m == nil {
		return Tag{}, fmt.Errorf("unrecognized platform tag %q", name)
	}
	major, _ := strconv.Atoi(m[2])
	minor, _ := strconv.Atoi(m[3])
	arch, err := parseTagArch(m[4])
	if err != nil {
		return Tag{}, err
	}
	switch m[1] {
	case "macosx":
		if !slices.Contains(supportedArches[MacOS], arch) {
			return Tag{}, fmt.Errorf("architecture %s is not supported on macOS", arch)
		}
		tag := MacOSTag(major, minor, arch)
		if tag.Major != major || tag.Minor != minor {
			return Tag{}, fmt.Errorf("macOS %d.%d is written as %d_%d", major, minor, tag.Major, tag.Minor)
		}
		return tag, nil
	default:
		tag, err := ParsePolicy(fmt.Sprintf("%s_%s_%s", m[1], m[2], m[3]), arch)
		if err != nil {
			return Tag{}, err
		}
		return tag, nil
	}
}

func parseTagArch(s string) (Arch, error) {
	if s == "arm64" {
		return Aarch64, nil
	}
	for _, arch := range []Arch{X86_64, X86, Aarch64, Armv7, Ppc64le, Ppc64, S390x, Riscv64, Universal2} {
		if string(arch) == s {
			return arch, nil
		}
	}
	return "", fmt.Errorf("unknown architecture %q", s)
}

// MacOSTag returns the macOS tag for a deployment target. From macOS 11 on
// only the major version is significant.
func MacOSTag(major, minor int, arch Arch) Tag {
	if major >= 11 {
		minor = 0
	}
	return Tag{Kind: KindMacOS, Arch: arch, Major: major, Minor: minor}
}

// ParseMacOSVersion parses a deployment target such as "10.12" or "11".
func ParseMacOSVersion(s string) (major, minor int, err error) {
	v := "v" + strings.TrimSpace(s)
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return 0, 0, fmt.Errorf("invalid macOS deployment target %q", s)
	}
	parts := strings.Split(strings.TrimPrefix(semver.Canonical(v), "v"), ".")
	major, _ = strconv.Atoi(parts[0])
	minor, _ = strconv.Atoi(parts[1])
	return major, minor, nil
}
