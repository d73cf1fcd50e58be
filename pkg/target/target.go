// SPDX-License-Identifier: MPL-2.0

package target

import "fmt"

type (
	// Options configures Resolve.
	Options struct {
		// Triple is the requested target triple; empty selects the host.
		Triple string
		// MacOSDeploymentTarget overrides the default deployment target.
		MacOSDeploymentTarget string
	}

	// Target is a resolved triple with its default platform tag.
	Target struct {
		Triple     Triple
		DefaultTag Tag
	}
)

// Resolve parses the requested triple (or detects the host) and derives
// its default platform tag: manylinux2014 for glibc Linux (manylinux_2_31 on
// riscv64), musllinux_1_2 for musl, the deployment target for macOS.
func Resolve(opts Options) (*Target, error) {
	var (
		triple Triple
		err    error
	)
	if opts.Triple == "" {
		triple, err = Host()
	} else {
		triple, err = ParseTriple(opts.Triple)
	}
	if err != nil {
		return nil, err
	}

	tag, err := defaultTag(triple, opts.MacOSDeploymentTarget)
	if err != nil {
		return nil, err
	}
	return &Target{Triple: triple, DefaultTag: tag}, nil
}

func defaultTag(triple Triple, deploymentTarget string) (Tag, error) {
	switch triple.OS {
	case Linux:
		if triple.IsMusl() {
			return Tag{Kind: KindMusllinux, Arch: triple.Arch, Major: 1, Minor: 2}, nil
		}
		if triple.Arch == Riscv64 {
			return Tag{Kind: KindManylinux, Arch: triple.Arch, Major: 2, Minor: 31}, nil
		}
		return Tag{Kind: KindManylinux, Arch: triple.Arch, Major: 2, Minor: 17}, nil
	case MacOS:
		version := deploymentTarget
		if version == "" {
			version = defaultMacOSX86
			if triple.Arch == Aarch64 {
				version = defaultMacOSArm64
			}
		}
		major, minor, err := ParseMacOSVersion(version)
		if err != nil {
			return Tag{}, &UnsupportedTargetError{Triple: triple.Raw, Reason: err.Error()}
		}
		if triple.Arch == Aarch64 && major < 11 {
			major, minor = 11, 0
		}
		return MacOSTag(major, minor, triple.Arch), nil
	case Windows:
		return Tag{Kind: KindWindows, Arch: triple.Arch}, nil
	case Wasi:
		return Tag{Kind: KindAny, Arch: triple.Arch}, nil
	default:
		return Tag{}, &UnsupportedTargetError{Triple: triple.Raw, Reason: "no platform tag mapping"}
	}
}

// PlatformTag returns the platform tag for a compatibility request:
// "" or "auto" selects the default, "off" or "linux" the plain linux tag,
// and a policy name selects that tier, which must belong to the triple's
// libc family.
func (t *Target) PlatformTag(compatibility string) (Tag, error) {
	switch compatibility {
	case "", "auto":
		return t.DefaultTag, nil
	}
	if !t.Triple.IsLinux() {
		return Tag{}, &InvalidTagError{Tag: compatibility, Reason: fmt.Sprintf("policies only apply to linux targets, not %s", t.Triple)}
	}
	tag, err := ParsePolicy(compatibility, t.Triple.Arch)
	if err != nil {
		return Tag{}, err
	}
	switch {
	case tag.Kind == KindManylinux && t.Triple.IsMusl():
		return Tag{}, &InvalidTagError{Tag: compatibility, Reason: "manylinux policies require a glibc target"}
	case tag.Kind == KindMusllinux && !t.Triple.IsMusl():
		return Tag{}, &InvalidTagError{Tag: compatibility, Reason: "musllinux policies require a musl target"}
	}
	return tag, nil
}

// PolicyFamily returns the tier family applying to the triple, or the kind
// of the default tag for non-Linux triples.
func (t *Target) PolicyFamily() TagKind {
	if !t.Triple.IsLinux() {
		return t.DefaultTag.Kind
	}
	if t.Triple.IsMusl() {
		return KindMusllinux
	}
	return KindManylinux
}
