// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"

	"github.com/zhaixiaojuan/maturin/internal/issue"
	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
)

// suggestionsFor returns short hints for the error class of err.
func suggestionsFor(err error) []string {
	var nc *auditwheel.NonCompliantBinaryError
	if errors.As(err, &nc) && nc.Hint != "" {
		return []string{nc.Hint, "Run 'maturin audit " + nc.Path + "' for details"}
	}

	known := issue.ForError(err)
	if known == nil {
		return nil
	}
	switch known.Id() {
	case issue.ManifestInvalidId:
		return []string{"Check the manifest with 'cargo metadata --no-deps'"}
	case issue.UnresolvedInheritanceId:
		return []string{"Define the field in [workspace.package] of the workspace root"}
	case issue.DependencyCycleId:
		return []string{"Review the path dependencies of the listed crates"}
	case issue.UnsupportedTargetId:
		return []string{"Use a triple from 'rustc --print target-list'"}
	case issue.InvalidTagId:
		return []string{"Use 'auto', 'off' or a policy such as 'manylinux_2_17'"}
	case issue.InterpreterRequiredId:
		return []string{"Pass --interpreter 3.x or enable an abi3-pyXY feature"}
	case issue.NonCompliantBinaryId:
		return []string{"Retry with --compatibility auto"}
	case issue.MissingArtifactId:
		return []string{"Run 'cargo build' first or pass the path with --artifact"}
	case issue.ReservedPathId:
		return []string{"Rename the file or add it to tool.maturin.exclude"}
	case issue.EnvironmentNotFoundId:
		return []string{"Activate a virtualenv or pass --env"}
	case issue.NotInRepositoryId:
		return []string{"Use --generator cargo or set sdist.fallback_to_filesystem"}
	case issue.ArchiveIOId:
		return []string{"Check that the output directory is writable"}
	}
	return nil
}
