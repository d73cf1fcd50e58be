// SPDX-License-Identifier: MPL-2.0

package develop

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/pymeta"
	"github.com/zhaixiaojuan/maturin/pkg/target"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

const (
	// InstallerFile records the tool that installed the distribution.
	InstallerFile = "INSTALLER"
	installerName = "maturin"
)

type (
	// Options configures Install.
	Options struct {
		Descriptor *project.Descriptor
		Artifacts  wheel.Artifacts
		// Target is the resolved build target. Required.
		Target *target.Target
		// Environment is the environment prefix; empty selects the active
		// virtualenv or conda environment.
		Environment string
		// Interpreter is the Python version; empty takes it from the
		// environment layout.
		Interpreter string
		// Editable links the python sources instead of copying them.
		Editable bool
		Logger   *log.Logger
	}

	// Result describes a finished install.
	Result struct {
		Environment *Environment
		DistInfo    string
		// Files are the installed paths as listed in RECORD, relative to
		// site-packages.
		Files []string
		// Replaced lists the dist-info directories of removed installs.
		Replaced []string
	}

	installer struct {
		opts    Options
		logger  *log.Logger
		env     *Environment
		records []archive.RecordEntry
	}
)

// Install stages the project like a wheel and writes it into the target
// environment, replacing any earlier install of the same distribution.
func Install(opts Options) (*Result, error) {
	d := opts.Descriptor
	if d == nil {
		return nil, errors.New("develop: no project descriptor")
	}
	if opts.Target == nil {
		return nil, errors.New("develop: target is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	env, err := FindEnvironment(opts.Environment, opts.Target.Triple, opts.Interpreter)
	if err != nil {
		return nil, err
	}
	interpreter := opts.Interpreter
	if interpreter == "" && env.Python.Major != 0 {
		interpreter = env.Python.String()
	}
	interp, err := target.ResolveInterpreter(target.InterpreterOptions{
		Extension:   d.Bridge.IsExtension(),
		Abi3:        d.Bridge.Abi3,
		Abi3Min:     d.Bridge.Abi3Min,
		Interpreter: interpreter,
	})
	if err != nil {
		return nil, err
	}

	layout, err := wheel.Stage(wheel.StageOptions{
		Descriptor:  d,
		Artifacts:   opts.Artifacts,
		Triple:      opts.Target.Triple,
		Interpreter: interp,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	replaced, err := Uninstall(env, d.Metadata.Name, logger)
	if err != nil {
		return nil, err
	}

	in := &installer{opts: opts, logger: logger, env: env}
	if err = in.installLayout(layout); err != nil {
		return nil, err
	}
	if err = in.installScripts(); err != nil {
		return nil, err
	}

	distInfo := layout.DistInfo
	meta := wheel.MetadataEntries(d, distInfo)
	meta = append(meta,
		wheel.WheelEntry(distInfo, "", target.WheelTag(interp, opts.Target.DefaultTag)),
		archive.Entry{Path: path.Join(distInfo, InstallerFile), Data: []byte(installerName + "\n")},
	)
	for _, e := range meta {
		if err = in.write(e, filepath.Join(env.SitePackages, filepath.FromSlash(e.Path)), true); err != nil {
			return nil, err
		}
	}

	recordPath := path.Join(distInfo, wheel.RecordFile)
	slices.SortFunc(in.records, func(a, b archive.RecordEntry) int { return strings.Compare(a.Path, b.Path) })
	record := archive.RenderRecord(in.records, recordPath)
	if err = os.WriteFile(filepath.Join(env.SitePackages, filepath.FromSlash(recordPath)), record, 0o644); err != nil {
		return nil, &archive.IOError{Op: "write", Path: recordPath, Err: err}
	}

	result := &Result{Environment: env, DistInfo: distInfo, Replaced: replaced}
	for _, rec := range in.records {
		result.Files = append(result.Files, rec.Path)
	}
	result.Files = append(result.Files, recordPath)
	logger.Info("installed", "name", d.Metadata.Name, "site_packages", env.SitePackages, "editable", opts.Editable, "files", len(result.Files))
	return result, nil
}

// installLayout writes the staged files. In editable mode the python
// sources stay in place: compiled modules are copied next to them and a
// .pth file adds the source directory to sys.path.
func (in *installer) installLayout(layout *wheel.Layout) error {
	d := in.opts.Descriptor
	editable := in.opts.Editable && d.PythonSource != ""
	if in.opts.Editable && !editable {
		in.logger.Debug("pure Rust layout has no python sources to link, installing normally")
	}

	for _, e := range layout.Native {
		if editable && !strings.HasPrefix(e.Path, layout.Data+"/") {
			dest := filepath.Join(d.PythonSource, filepath.FromSlash(e.Path))
			if err := in.write(e, dest, false); err != nil {
				return err
			}
			continue
		}
		if err := in.place(e, layout.Data); err != nil {
			return err
		}
	}
	if !editable {
		for _, e := range layout.Python {
			if err := in.place(e, layout.Data); err != nil {
				return err
			}
		}
	}
	for _, e := range layout.Other {
		if err := in.place(e, layout.Data); err != nil {
			return err
		}
	}

	if editable {
		pth := archive.Entry{Path: pymeta.EscapeName(d.Metadata.Name) + ".pth", Data: []byte(d.PythonSource + "\n")}
		return in.write(pth, filepath.Join(in.env.SitePackages, pth.Path), true)
	}
	return nil
}

// place maps a wheel path to its install location. Files below the .data
// directory go to the scheme directory they name.
func (in *installer) place(e archive.Entry, dataDir string) error {
	rel, ok := strings.CutPrefix(e.Path, dataDir+"/")
	if !ok {
		return in.write(e, filepath.Join(in.env.SitePackages, filepath.FromSlash(e.Path)), true)
	}
	scheme, rest, _ := strings.Cut(rel, "/")
	var base string
	switch scheme {
	case "purelib", "platlib":
		base = in.env.SitePackages
	case "scripts":
		base = in.env.Scripts
		e.Executable = true
	case "headers":
		base = filepath.Join(in.env.Include, pymeta.EscapeName(in.opts.Descriptor.Metadata.Name))
	case "data":
		base = in.env.Prefix
	default:
		return fmt.Errorf("develop: unknown data scheme %q in %s", scheme, e.Path)
	}
	return in.write(e, filepath.Join(base, filepath.FromSlash(rest)), true)
}

// installScripts writes a launcher per console and gui script entry point.
func (in *installer) installScripts() error {
	eps := in.opts.Descriptor.EntryPoints
	if eps.Empty() {
		return nil
	}
	if in.env.Windows {
		in.logger.Warn("script launchers are not generated for Windows environments")
		return nil
	}
	python := in.env.PythonExecutable()
	for _, group := range []string{pymeta.ConsoleScriptsGroup, pymeta.GUIScriptsGroup} {
		names := make([]string, 0, len(eps[group]))
		for name := range eps[group] {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			launcher, err := Launcher(python, eps[group][name])
			if err != nil {
				return err
			}
			e := archive.Entry{Path: name, Data: []byte(launcher), Executable: true}
			if err := in.write(e, filepath.Join(in.env.Scripts, name), true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Launcher renders the script running the "module:attr" entry point ref.
func Launcher(python, ref string) (string, error) {
	module, attr, ok := strings.Cut(ref, ":")
	module, attr = strings.TrimSpace(module), strings.TrimSpace(attr)
	if !ok || module == "" || attr == "" {
		return "", fmt.Errorf("develop: entry point %q is not of the form module:function", ref)
	}
	imported, _, _ := strings.Cut(attr, ".")
	return fmt.Sprintf(`#!%s
# -*- coding: utf-8 -*-
import re
import sys
from %s import %s
if __name__ == "__main__":
    sys.argv[0] = re.sub(r"(-script\.pyw|\.exe)?$", "", sys.argv[0])
    sys.exit(%s())
`, python, module, imported, attr), nil
}

// write copies e to dest. Recorded files are listed in RECORD relative to
// site-packages.
func (in *installer) write(e archive.Entry, dest string, record bool) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &archive.IOError{Op: "create", Path: filepath.Dir(dest), Err: err}
	}
	mode := os.FileMode(0o644)
	if e.Executable || sourceExecutable(e.Source) {
		mode = 0o755
	}

	src, err := e.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	// Remove first so a loaded extension module is replaced, not rewritten
	// in place.
	_ = os.Remove(dest)
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return &archive.IOError{Op: "create", Path: dest, Err: err}
	}
	hash, size, err := archive.Digest(io.TeeReader(src, f))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &archive.IOError{Op: "write", Path: dest, Err: err}
	}
	in.logger.Debug("installed file", "path", dest)

	if record {
		rel, err := filepath.Rel(in.env.SitePackages, dest)
		if err != nil {
			rel = dest
		}
		in.records = append(in.records, archive.RecordEntry{Path: filepath.ToSlash(rel), Hash: hash, Size: size})
	}
	return nil
}

func sourceExecutable(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode()&0o111 != 0
}
