// SPDX-License-Identifier: MPL-2.0

package auditwheel

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"

	"github.com/zhaixiaojuan/maturin/pkg/target"
)

var libpythonPattern = regexp.MustCompile(`^libpython3(\.\d+)?[a-z]*\.so`)

var elfMachines = map[target.Arch]elf.Machine{
	target.X86_64:  elf.EM_X86_64,
	target.X86:     elf.EM_386,
	target.Aarch64: elf.EM_AARCH64,
	target.Armv7:   elf.EM_ARM,
	target.Ppc64le: elf.EM_PPC64,
	target.Ppc64:   elf.EM_PPC64,
	target.S390x:   elf.EM_S390,
	target.Riscv64: elf.EM_RISCV,
}

type elfImports struct {
	libraries []string
	symbols   []elf.ImportedSymbol
}

func checkELF(path string, r io.ReaderAt, opts Options, policies *PolicySet) (*Report, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, malformed(path, err)
	}
	arch := opts.Target.Triple.Arch
	if err := checkELFMachine(path, f, arch); err != nil {
		return nil, err
	}

	imports, err := readELFImports(f)
	if err != nil {
		return nil, malformed(path, err)
	}
	report := &Report{Path: path, Format: FormatELF, Machine: f.Machine.String(), Libraries: imports.libraries}
	for _, s := range imports.symbols {
		if s.Version != "" {
			report.Symbols = append(report.Symbols, s.Name+"@"+s.Version)
		}
	}

	if opts.Tag.Kind == target.KindLinux && !opts.Auto {
		report.Tag = opts.Tag
		return report, nil
	}

	tiers := target.Policies(opts.Target.PolicyFamily(), arch)
	var last []Violation
	for _, tier := range tiers {
		policy, ok := policies.Lookup(tier)
		if !ok {
			continue
		}
		violations := policies.violations(policy, imports)
		if len(violations) > 0 {
			last = violations
			continue
		}
		report.Satisfied = tier.PolicyName()
		break
	}

	if !opts.Auto {
		policy, ok := policies.Lookup(opts.Tag)
		if !ok {
			return nil, &NonCompliantBinaryError{Path: path, Tag: opts.Tag.String(), Reason: "no policy defines this tag"}
		}
		if violations := policies.violations(policy, imports); len(violations) > 0 {
			reason := "requirements exceed the most permissive policy"
			if report.Satisfied != "" {
				reason = "strictest satisfied policy is " + report.Satisfied
			}
			return nil, &NonCompliantBinaryError{
				Path:       path,
				Tag:        opts.Tag.String(),
				Violations: violations,
				Reason:     reason,
				Hint:       libpythonHint(imports.libraries),
			}
		}
		report.Tag = opts.Tag
		return report, nil
	}

	if report.Satisfied == "" {
		return nil, &NonCompliantBinaryError{
			Path:       path,
			Tag:        opts.Tag.String(),
			Reason:     "requirements exceed the most permissive policy",
			Violations: last,
			Hint:       libpythonHint(imports.libraries),
		}
	}
	satisfied, err := target.ParsePolicy(report.Satisfied, arch)
	if err != nil {
		return nil, err
	}
	report.Tag = satisfied
	opts.Logger.Debug("selected policy", "path", path, "policy", report.Satisfied)
	return report, nil
}

func checkELFMachine(path string, f *elf.File, arch target.Arch) error {
	want, ok := elfMachines[arch]
	if !ok {
		return &NonCompliantBinaryError{Path: path, Reason: fmt.Sprintf("no ELF machine known for %s", arch)}
	}
	mismatch := f.Machine != want
	switch arch {
	case target.Ppc64le:
		mismatch = mismatch || f.ByteOrder != binary.LittleEndian
	case target.Ppc64:
		mismatch = mismatch || f.ByteOrder != binary.BigEndian
	}
	if mismatch {
		return &NonCompliantBinaryError{
			Path:   path,
			Reason: fmt.Sprintf("architecture mismatch: binary is %s, target is %s", f.Machine, arch),
		}
	}
	return nil
}

func readELFImports(f *elf.File) (elfImports, error) {
	libs, err := f.ImportedLibraries()
	if err != nil {
		return elfImports{}, fmt.Errorf("read DT_NEEDED: %w", err)
	}
	syms, err := f.ImportedSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return elfImports{}, fmt.Errorf("read dynamic symbols: %w", err)
	}
	return elfImports{libraries: libs, symbols: syms}, nil
}

// violations lists every requirement of imports that p does not allow.
func (s *PolicySet) violations(p Policy, imports elfImports) []Violation {
	var out []Violation
	for _, lib := range imports.libraries {
		if !s.allowsLibrary(p, lib) {
			out = append(out, Violation{Library: lib, Reason: fmt.Sprintf("library is not allowed by %s", p.Name)})
		}
	}
	seen := make(map[string]bool)
	for _, sym := range imports.symbols {
		if sym.Version == "" {
			continue
		}
		v, bad := symbolViolation(p, sym.Name, sym.Version)
		key := sym.Name + "@" + sym.Version
		if bad && !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	return out
}

func libpythonHint(libs []string) string {
	if slices.ContainsFunc(libs, libpythonPattern.MatchString) {
		return `the extension links libpython; enable the pyo3 "extension-module" feature so the interpreter provides its symbols`
	}
	return ""
}
