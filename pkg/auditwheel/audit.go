// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/target"
)

// Binary formats recognised by Check.
const (
	FormatELF   = "elf"
	FormatMachO = "macho"
	FormatPE    = "pe"
	FormatWasm  = "wasm"
)

type (
	// Options configures a compatibility check.
	Options struct {
		// Target is the resolved build target. Required.
		Target *target.Target
		// Tag is the requested platform tag; the zero value selects the
		// target's default tag.
		Tag target.Tag
		// Auto selects the strictest tag the artifact satisfies instead of
		// validating Tag.
		Auto bool
		// Policies overrides the embedded policy table.
		Policies *PolicySet
		// Logger receives per-check diagnostics. Nil discards.
		Logger *log.Logger
	}

	// Report is the outcome of a successful check.
	Report struct {
		Path      string   `yaml:"path"`
		Format    string   `yaml:"format"`
		Machine   string   `yaml:"machine,omitempty"`
		Libraries []string `yaml:"libraries,omitempty"`
		// Symbols lists versioned imports as name@VERSION.
		Symbols []string `yaml:"versioned_symbols,omitempty"`
		// Tag is the platform tag the artifact is archived with.
		Tag target.Tag `yaml:"tag"`
		// Satisfied is the strictest policy tier the artifact meets.
		Satisfied string `yaml:"satisfied,omitempty"`
		// MinOS is the macOS version the artifact requires.
		MinOS    string   `yaml:"min_os,omitempty"`
		Warnings []string `yaml:"warnings,omitempty"`
	}
)

// Check inspects the artifact at path and returns the platform tag it is to
// be archived with. When Auto is false the requested tag is validated and
// kept; otherwise the tightest satisfied tag is returned. Failures to
// satisfy any tier, and unparsable input, are NonCompliantBinaryError.
func Check(path string, opts Options) (report *Report, err error) {
	if opts.Target == nil {
		return nil, errors.New("auditwheel: target is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Tag == (target.Tag{}) {
		opts.Tag = opts.Target.DefaultTag
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &archive.IOError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	defer func() {
		if r := recover(); r != nil {
			report, err = nil, malformed(path, r)
		}
	}()

	switch opts.Target.Triple.OS {
	case target.Linux:
		policies := opts.Policies
		if policies == nil {
			if policies, err = DefaultPolicies(); err != nil {
				return nil, err
			}
		}
		report, err = checkELF(path, f, opts, policies)
	case target.MacOS:
		report, err = checkMachO(path, f, opts)
	case target.Windows:
		report, err = checkPE(path, f, opts)
	case target.Wasi:
		report, err = checkWasm(path, f, opts)
	default:
		return nil, &target.UnsupportedTargetError{Triple: opts.Target.Triple.Raw, Reason: "no compatibility check for this OS"}
	}
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("checked artifact", "path", path, "format", report.Format, "tag", report.Tag.String())
	return report, nil
}
