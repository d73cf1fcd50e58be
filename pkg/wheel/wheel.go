// SPDX-License-Identifier: MPL-2.0

package wheel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/target"
)

// State is the step a wheel build is in.
type State int

const (
	Staging State = iota
	MetadataGeneration
	CompatibilityValidation
	Archiving
	Done
)

type (
	// Options configures a wheel build.
	Options struct {
		Descriptor *project.Descriptor
		Artifacts  Artifacts
		// Target is the resolved build target. Required.
		Target *target.Target
		// Interpreter is the target Python version, needed for non-abi3
		// extension modules.
		Interpreter string
		// Compatibility overrides the project's compatibility setting.
		Compatibility string
		Policies      *auditwheel.PolicySet
		Timestamps    archive.Timestamps
		// CompressionLevel is the deflate level of archived files.
		CompressionLevel int
		// OutDir receives the wheel. It is created when missing.
		OutDir string
		// Generator is written to the WHEEL file.
		Generator string
		Logger    *log.Logger
	}

	// Result describes a finished wheel.
	Result struct {
		Path     string
		FileName string
		// Tag is the full interpreter-abi-platform tag.
		Tag      string
		Platform target.Tag
		Reports  []*auditwheel.Report
		Record   []archive.RecordEntry
	}

	// Builder runs one wheel build through its states.
	Builder struct {
		opts   Options
		logger *log.Logger
		state  State

		interp   target.InterpreterTag
		layout   *Layout
		metadata []archive.Entry
		platform target.Tag
		reports  []*auditwheel.Report
	}
)

func (s State) String() string {
	switch s {
	case Staging:
		return "staging"
	case MetadataGeneration:
		return "metadata-generation"
	case CompatibilityValidation:
		return "compatibility-validation"
	case Archiving:
		return "archiving"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// New returns a builder in the Staging state.
func New(opts Options) (*Builder, error) {
	if opts.Descriptor == nil {
		return nil, errors.New("wheel: no project descriptor")
	}
	if opts.Target == nil {
		return nil, errors.New("wheel: target is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Builder{opts: opts, logger: logger, state: Staging}, nil
}

// State returns the current state. After a failed Run it is the state the
// build failed in.
func (b *Builder) State() State {
	return b.state
}

// Run drives the build to Done. No file is written before every artifact
// passed the compatibility check.
func (b *Builder) Run() (*Result, error) {
	if b.state != Staging {
		return nil, fmt.Errorf("wheel: builder already ran (state %s)", b.state)
	}
	steps := []func() error{b.stage, b.generateMetadata, b.validate}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
		b.advance()
	}
	result, err := b.archive()
	if err != nil {
		return nil, err
	}
	b.advance()
	return result, nil
}

// Build runs a wheel build with a fresh builder.
func Build(opts Options) (*Result, error) {
	b, err := New(opts)
	if err != nil {
		return nil, err
	}
	return b.Run()
}

func (b *Builder) advance() {
	b.state++
	b.logger.Debug("wheel build state", "state", b.state.String())
}

func (b *Builder) stage() error {
	d := b.opts.Descriptor
	interp, err := target.ResolveInterpreter(target.InterpreterOptions{
		Extension:   d.Bridge.IsExtension(),
		Abi3:        d.Bridge.Abi3,
		Abi3Min:     d.Bridge.Abi3Min,
		Interpreter: b.opts.Interpreter,
	})
	if err != nil {
		return err
	}
	if interp.IsAbi3() && d.Bridge.Abi3Min != "" {
		b.logger.Debug("using stable ABI tag from pyo3 feature", "tag", interp.String())
	}
	b.interp = interp

	b.layout, err = Stage(StageOptions{
		Descriptor:  d,
		Artifacts:   b.opts.Artifacts,
		Triple:      b.opts.Target.Triple,
		Interpreter: interp,
		Logger:      b.logger,
	})
	return err
}

func (b *Builder) generateMetadata() error {
	b.metadata = MetadataEntries(b.opts.Descriptor, b.layout.DistInfo)
	for _, e := range b.metadata {
		if e.Source == "" {
			continue
		}
		if _, err := os.Stat(e.Source); err != nil {
			return &archive.IOError{Op: "read", Path: e.Source, Err: err}
		}
	}
	return nil
}

// validate checks every compiled artifact. The wheel takes the loosest tag
// any artifact requires.
func (b *Builder) validate() error {
	compat := b.opts.Compatibility
	if compat == "" {
		compat = b.opts.Descriptor.Compatibility
	}
	requested, err := b.opts.Target.PlatformTag(compat)
	if err != nil {
		return err
	}
	auto := compat == "" || compat == "auto"

	b.platform = requested
	first := true
	for _, artifact := range b.checkedArtifacts() {
		report, err := auditwheel.Check(artifact, auditwheel.Options{
			Target:   b.opts.Target,
			Tag:      requested,
			Auto:     auto,
			Policies: b.opts.Policies,
			Logger:   b.logger,
		})
		if err != nil {
			return err
		}
		b.reports = append(b.reports, report)
		if first || report.Tag.Compare(b.platform) > 0 {
			b.platform = report.Tag
		}
		first = false
	}
	return nil
}

func (b *Builder) checkedArtifacts() []string {
	a := b.opts.Artifacts
	if b.opts.Descriptor.Bridge.Kind != project.Binary {
		return []string{a.Library}
	}
	names := make([]string, 0, len(a.Binaries))
	for name := range a.Binaries {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = a.Binaries[name]
	}
	return out
}

func (b *Builder) archive() (*Result, error) {
	tag := target.WheelTag(b.interp, b.platform)
	distInfo := b.layout.DistInfo

	entries := b.layout.Entries()
	entries = append(entries, b.metadata...)
	entries = append(entries, WheelEntry(distInfo, b.opts.Generator, tag))

	outDir := b.opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &archive.IOError{Op: "create", Path: outDir, Err: err}
	}
	name := FileName(b.opts.Descriptor, tag)
	dest := filepath.Join(outDir, name)

	tmp, err := os.CreateTemp(outDir, ".wheel-*")
	if err != nil {
		return nil, &archive.IOError{Op: "create", Path: outDir, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	record, err := archive.WriteZip(tmp, entries, archive.ZipOptions{
		Timestamps:       b.opts.Timestamps,
		CompressionLevel: b.opts.CompressionLevel,
		RecordPath:       path.Join(distInfo, RecordFile),
	})
	if err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err = tmp.Close(); err != nil {
		return nil, &archive.IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return nil, &archive.IOError{Op: "rename", Path: dest, Err: err}
	}

	b.logger.Info("built wheel", "path", dest, "tag", tag, "files", len(record))
	return &Result{
		Path:     dest,
		FileName: name,
		Tag:      tag,
		Platform: b.platform,
		Reports:  b.reports,
		Record:   record,
	}, nil
}
