// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/internal/config"
	"github.com/zhaixiaojuan/maturin/internal/issue"
	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
	"github.com/zhaixiaojuan/maturin/pkg/develop"
	"github.com/zhaixiaojuan/maturin/pkg/listing"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/sdist"
	"github.com/zhaixiaojuan/maturin/pkg/target"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

type (
	// Options configures Open.
	Options struct {
		// Config is the loaded configuration; nil uses the defaults.
		Config *config.Config
		// ProjectPath is the project directory or manifest; empty is ".".
		ProjectPath string
		// Triple is the target triple; empty selects the host.
		Triple                string
		MacOSDeploymentTarget string
		Features              []string
		Locked                bool
		// OutDir overrides the configured output directory.
		OutDir string
		Logger *log.Logger
	}

	// Session is one resolved project with the configuration applying to
	// it. Each build operation uses a fresh builder.
	Session struct {
		Config     *config.Config
		Descriptor *project.Descriptor
		Target     *target.Target
		Logger     *log.Logger
		outDir     string
		// crossTriple is the explicitly requested triple, empty for host builds.
		crossTriple string
	}

	// SdistRequest configures a source distribution build.
	SdistRequest struct {
		// Generator overrides the project and configured generator.
		Generator string
	}

	// WheelRequest configures a wheel build.
	WheelRequest struct {
		// Artifacts are the native build outputs; unset fields are looked
		// up in the cargo target directory.
		Artifacts     wheel.Artifacts
		Interpreter   string
		Compatibility string
		// Profile is the cargo profile directory, "release" when empty.
		Profile string
	}

	// DevelopRequest configures an install into a Python environment.
	DevelopRequest struct {
		Artifacts   wheel.Artifacts
		Environment string
		Interpreter string
		Editable    bool
		// Profile is the cargo profile directory, "debug" when empty.
		Profile string
	}
)

// Open resolves the project and the target for one invocation.
func Open(ctx context.Context, opts Options) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("open project canceled: %w", ctx.Err())
	default:
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	projectPath := opts.ProjectPath
	if projectPath == "" {
		projectPath = "."
	}

	d, err := project.Resolve(project.Options{
		Path:     projectPath,
		Features: opts.Features,
		Locked:   opts.Locked,
		Logger:   logger,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve project").
			WithResource(projectPath).
			WithSuggestions(suggestionsFor(err)...).
			Wrap(err).
			BuildError()
	}

	t, err := target.Resolve(target.Options{Triple: opts.Triple, MacOSDeploymentTarget: opts.MacOSDeploymentTarget})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve target").
			WithResource(opts.Triple).
			WithSuggestion("Use a triple from 'rustc --print target-list'").
			Wrap(err).
			BuildError()
	}
	logger.Debug("resolved target", "triple", t.Triple.String(), "default_tag", t.DefaultTag.String())

	outDir := opts.OutDir
	if outDir == "" {
		outDir = cfg.OutDir.String()
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(d.ProjectDir, outDir)
	}

	return &Session{Config: cfg, Descriptor: d, Target: t, Logger: logger, outDir: outDir, crossTriple: opts.Triple}, nil
}

// OutDir returns the absolute directory receiving archives.
func (s *Session) OutDir() string {
	return s.outDir
}

// ArtifactDir returns the cargo output directory of profile.
func (s *Session) ArtifactDir(profile string) string {
	return ArtifactDir(s.Descriptor, s.crossTriple, profile)
}

// Timestamps derives the archive time policy from the configuration.
func (s *Session) Timestamps() (archive.Timestamps, error) {
	pinned, err := archive.ParseSourceDateEpoch(s.Config.Reproducible.SourceDateEpoch.String())
	if err != nil {
		return archive.Timestamps{}, err
	}
	return archive.Timestamps{Pinned: pinned, Reproducible: s.Config.Reproducible.Enabled}, nil
}

// Sdist builds the source distribution and returns its path.
func (s *Session) Sdist(ctx context.Context, req SdistRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ts, err := s.Timestamps()
	if err != nil {
		return "", err
	}
	generator := req.Generator
	if generator == "" && s.Descriptor.SdistGenerator == "" {
		generator = s.Config.Sdist.Generator.String()
	}
	var strategy listing.Strategy
	if generator != "" {
		if strategy, err = listing.ParseStrategy(generator); err != nil {
			return "", err
		}
	}
	compression, err := archive.ParseCompression(s.Config.Sdist.Compression.String())
	if err != nil {
		return "", err
	}

	path, err := sdist.Build(sdist.Options{
		Descriptor:           s.Descriptor,
		Strategy:             strategy,
		FallbackToFilesystem: s.Config.Sdist.FallbackToFilesystem,
		Compression:          compression,
		Timestamps:           ts,
		OutDir:               s.outDir,
		Logger:               s.Logger,
	})
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("build source distribution").
			WithResource(s.Descriptor.ProjectDir).
			WithSuggestions(suggestionsFor(err)...).
			Wrap(err).
			BuildError()
	}
	return path, nil
}

// Wheel builds a wheel from the native artifacts.
func (s *Session) Wheel(ctx context.Context, req WheelRequest) (*wheel.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ts, err := s.Timestamps()
	if err != nil {
		return nil, err
	}
	profile := req.Profile
	if profile == "" {
		profile = ReleaseProfile
	}
	artifacts := DiscoverArtifacts(s.Descriptor, s.Target.Triple, s.ArtifactDir(profile), req.Artifacts)

	compatibility := req.Compatibility
	if compatibility == "" && s.Descriptor.Compatibility == "" {
		compatibility = s.Config.Compatibility.String()
	}
	policies, err := auditwheel.DefaultPolicies()
	if err != nil {
		return nil, err
	}

	result, err := wheel.Build(wheel.Options{
		Descriptor:       s.Descriptor,
		Artifacts:        artifacts,
		Target:           s.Target,
		Interpreter:      req.Interpreter,
		Compatibility:    compatibility,
		Policies:         policies,
		Timestamps:       ts,
		CompressionLevel: int(s.Config.Wheel.CompressionLevel),
		OutDir:           s.outDir,
		Logger:           s.Logger,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("build wheel").
			WithResource(s.Descriptor.Metadata.Name).
			WithSuggestions(suggestionsFor(err)...).
			Wrap(err).
			BuildError()
	}
	return result, nil
}

// Develop installs the project into a Python environment.
func (s *Session) Develop(ctx context.Context, req DevelopRequest) (*develop.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile := req.Profile
	if profile == "" {
		profile = DebugProfile
	}
	result, err := develop.Install(develop.Options{
		Descriptor:  s.Descriptor,
		Artifacts:   DiscoverArtifacts(s.Descriptor, s.Target.Triple, s.ArtifactDir(profile), req.Artifacts),
		Target:      s.Target,
		Environment: req.Environment,
		Interpreter: req.Interpreter,
		Editable:    req.Editable,
		Logger:      s.Logger,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("install into environment").
			WithResource(req.Environment).
			WithSuggestions(suggestionsFor(err)...).
			Wrap(err).
			BuildError()
	}
	return result, nil
}
