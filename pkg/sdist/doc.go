// SPDX-License-Identifier: MPL-2.0

// Package sdist builds self-contained source distributions.
//
// Every local path dependency of the root crate is vendored exactly once
// under local_dependencies/<name> at the archive root, and every manifest
// that references it is rewritten to the vendored location. The archive
// also carries a PKG-INFO file and a marker holding the rewritten root
// manifest, so a build from the archive can be checked against the tree it
// came from.
package sdist
