// SPDX-License-Identifier: MPL-2.0

// Package listing computes the set of project files that go into a source
// distribution.
//
// Two strategies are available. The filesystem strategy walks the directory
// like cargo package does, skipping build output, VCS metadata and nested
// packages. The git strategy lists the files tracked in the enclosing
// repository's index. Both apply the include and exclude globs of the
// manifest; an exclude match always wins over an include match.
package listing
