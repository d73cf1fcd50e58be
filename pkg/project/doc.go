// SPDX-License-Identifier: MPL-2.0

// Package project resolves a Rust crate and its Python project configuration
// into a read-only Descriptor.
//
// Resolution reads the crate's Cargo.toml, applies workspace inheritance
// ([workspace.package] and [workspace.dependencies]) in an explicit two-pass
// merge, and recursively loads every local path dependency into an
// index-addressed arena. The pyproject.toml next to the project supplies the
// PEP 621 metadata and the [tool.maturin] settings (bindings, module name,
// python source layout, include/exclude rules).
package project
