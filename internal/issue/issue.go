// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"

	"github.com/zhaixiaojuan/maturin/pkg/archive"
	"github.com/zhaixiaojuan/maturin/pkg/auditwheel"
	"github.com/zhaixiaojuan/maturin/pkg/develop"
	"github.com/zhaixiaojuan/maturin/pkg/listing"
	"github.com/zhaixiaojuan/maturin/pkg/project"
	"github.com/zhaixiaojuan/maturin/pkg/target"
	"github.com/zhaixiaojuan/maturin/pkg/wheel"
)

type Id int

const (
	ManifestInvalidId Id = iota + 1
	UnresolvedInheritanceId
	DependencyCycleId
	UnsupportedTargetId
	InvalidTagId
	InterpreterRequiredId
	NonCompliantBinaryId
	MissingArtifactId
	ReservedPathId
	EnvironmentNotFoundId
	NotInRepositoryId
	ArchiveIOId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation about the issue type
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Invalid project manifest!

A Cargo.toml or pyproject.toml could not be read, parsed or understood.

## Common causes:
- TOML syntax errors (unclosed tables, missing quotes)
- A ` + "`locked`" + ` build without a Cargo.lock file
- ` + "`manifest-path`" + ` pointing outside the project
- An unknown ` + "`bindings`" + ` value in ` + "`[tool.maturin]`" + `

## Things you can try:
- Check the manifest named above with cargo:
~~~
$ cargo metadata --format-version 1 --no-deps
~~~

- Generate a lock file for locked builds:
~~~
$ cargo generate-lockfile
~~~`,
		extLinks: []HttpLink{"https://doc.rust-lang.org/cargo/reference/manifest.html"},
	}

	unresolvedInheritanceIssue = &Issue{
		id: UnresolvedInheritanceId,
		mdMsg: `
# Workspace inheritance could not be resolved!

A crate declares a field with ` + "`workspace = true`" + ` but no enclosing workspace
defines a value for it.

## Example:
~~~toml
# crate Cargo.toml
[package]
version.workspace = true

# workspace Cargo.toml must provide it
[workspace.package]
version = "0.1.0"
~~~

## Things you can try:
- Add the field to ` + "`[workspace.package]`" + ` or ` + "`[workspace.dependencies]`" + `
- Make sure the crate lies below the workspace root
- Replace the inherited field with an explicit value`,
		extLinks: []HttpLink{"https://doc.rust-lang.org/cargo/reference/workspaces.html"},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Local dependency cycle detected!

The path dependencies of the crate form a cycle, or one local crate is required
with two different version requirements.

## Things you can try:
- Review the ` + "`path = ...`" + ` entries of the crates listed above
- Move shared code into a crate both sides depend on
- Use the same version requirement for every reference to a local crate`,
	}

	unsupportedTargetIssue = &Issue{
		id: UnsupportedTargetId,
		mdMsg: `
# Unsupported target!

The target triple or platform cannot be mapped to a wheel platform tag.

## Supported operating systems:
- Linux (gnu and musl)
- macOS
- Windows
- WASI (wasm32-wasip1)

## Things you can try:
- Pass a known triple, for example:
~~~
$ maturin build --target x86_64-unknown-linux-gnu
~~~

- List the triples your toolchain knows:
~~~
$ rustc --print target-list
~~~`,
	}

	invalidTagIssue = &Issue{
		id: InvalidTagId,
		mdMsg: `
# Invalid compatibility tag!

The compatibility value is not a known policy.

## Valid values:
- ` + "`auto`" + ` selects the strictest policy the binaries satisfy
- ` + "`off`" + ` or ` + "`linux`" + ` emits the plain linux tag
- A policy name such as ` + "`manylinux_2_17`" + `, ` + "`manylinux2014`" + ` or ` + "`musllinux_1_2`",
		extLinks: []HttpLink{"https://peps.python.org/pep-0600/"},
	}

	interpreterRequiredIssue = &Issue{
		id: InterpreterRequiredId,
		mdMsg: `
# Python interpreter version required!

Extension modules are tagged with the interpreter they were built for, and no
version could be determined.

## Things you can try:
- Pass the interpreter version:
~~~
$ maturin build --interpreter 3.12
~~~

- Enable a versioned abi3 feature in Cargo.toml:
~~~toml
pyo3 = { version = "0.22", features = ["abi3-py38"] }
~~~`,
	}

	nonCompliantBinaryIssue = &Issue{
		id: NonCompliantBinaryId,
		mdMsg: `
# Binary does not satisfy the platform policy!

The compiled artifact links a library or symbol version the requested policy
does not allow, so a wheel with that tag would not run everywhere it claims to.

## Things you can try:
- Let maturin pick the strictest policy the binary satisfies:
~~~
$ maturin build --compatibility auto
~~~

- Build in an older manylinux container to lower the glibc requirement
- For pyo3 crates linking libpython, enable the ` + "`extension-module`" + ` feature
- Inspect the binary yourself:
~~~
$ maturin audit target/release/libmy_project.so
~~~`,
		extLinks: []HttpLink{"https://github.com/pypa/manylinux"},
	}

	missingArtifactIssue = &Issue{
		id: MissingArtifactId,
		mdMsg: `
# Build artifact missing!

A file the wheel needs does not exist.

## Common causes:
- cargo did not build the library or binary yet
- The artifact path passed with ` + "`--artifact`" + ` is wrong
- cffi or uniffi bindings were not generated

## Things you can try:
~~~
$ cargo build --release
$ maturin build --artifact target/release/libmy_project.so
~~~`,
	}

	reservedPathIssue = &Issue{
		id: ReservedPathId,
		mdMsg: `
# Reserved file name in the package!

A path component is a name Windows reserves (CON, PRN, AUX, NUL, COM1-9, LPT1-9).
Wheels containing it cannot be installed on Windows.

## Things you can try:
- Rename the file or directory
- Exclude it with ` + "`tool.maturin.exclude`",
	}

	environmentNotFoundIssue = &Issue{
		id: EnvironmentNotFoundId,
		mdMsg: `
# Python environment not found!

maturin develop installs into a virtualenv or conda environment.

## Things you can try:
- Create and activate a virtualenv:
~~~
$ python -m venv .venv
$ source .venv/bin/activate
~~~

- Or point maturin at one:
~~~
$ maturin develop --env .venv
~~~`,
	}

	notInRepositoryIssue = &Issue{
		id: NotInRepositoryId,
		mdMsg: `
# Not inside a git repository!

The git sdist generator lists tracked files, but the project is not in a git
working tree.

## Things you can try:
- Use the cargo generator:
~~~cue
sdist: generator: "cargo"
~~~

- Or allow a filesystem fallback:
~~~cue
sdist: fallback_to_filesystem: true
~~~`,
	}

	archiveIOIssue = &Issue{
		id: ArchiveIOId,
		mdMsg: `
# Failed to read or write a file!

An archive or installed file could not be written.

## Things you can try:
- Check that the output directory is writable
- Check the free disk space
- Close programs holding the installed extension module open`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The maturin configuration file could not be loaded or contains invalid values.

## Things you can try:
- Print the effective configuration:
~~~
$ maturin config show
~~~

- Check the ` + "`MATURIN_*`" + ` and ` + "`SOURCE_DATE_EPOCH`" + ` environment variables

## Example configuration:
~~~cue
sdist: {
	generator: "git"
	compression: "xz"
}
compatibility: "manylinux_2_28"
~~~`,
	}

	issues = map[Id]*Issue{
		manifestInvalidIssue.Id():       manifestInvalidIssue,
		unresolvedInheritanceIssue.Id(): unresolvedInheritanceIssue,
		dependencyCycleIssue.Id():       dependencyCycleIssue,
		unsupportedTargetIssue.Id():     unsupportedTargetIssue,
		invalidTagIssue.Id():            invalidTagIssue,
		interpreterRequiredIssue.Id():   interpreterRequiredIssue,
		nonCompliantBinaryIssue.Id():    nonCompliantBinaryIssue,
		missingArtifactIssue.Id():       missingArtifactIssue,
		reservedPathIssue.Id():          reservedPathIssue,
		environmentNotFoundIssue.Id():   environmentNotFoundIssue,
		notInRepositoryIssue.Id():       notInRepositoryIssue,
		archiveIOIssue.Id():             archiveIOIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
	}

	// classes maps error sentinels to issues, most specific first.
	classes = []struct {
		sentinel error
		id       Id
	}{
		{project.ErrUnresolvedInheritance, UnresolvedInheritanceId},
		{project.ErrCyclicDependency, DependencyCycleId},
		{project.ErrManifest, ManifestInvalidId},
		{target.ErrInvalidTag, InvalidTagId},
		{target.ErrInterpreterRequired, InterpreterRequiredId},
		{target.ErrUnsupportedTarget, UnsupportedTargetId},
		{auditwheel.ErrNonCompliantBinary, NonCompliantBinaryId},
		{wheel.ErrMissingArtifact, MissingArtifactId},
		{wheel.ErrReservedPath, ReservedPathId},
		{develop.ErrEnvironmentNotFound, EnvironmentNotFoundId},
		{listing.ErrNotInRepository, NotInRepositoryId},
		{archive.ErrIO, ArchiveIOId},
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, len(ids))
	for i, id := range ids {
		out[i] = issues[id]
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError returns the issue describing the error class of err, or nil.
func ForError(err error) *Issue {
	if err == nil {
		return nil
	}
	var ae *ActionableError
	if errors.As(err, &ae) && ae.IssueID != 0 {
		return issues[ae.IssueID]
	}
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return issues[c.id]
		}
	}
	return nil
}
