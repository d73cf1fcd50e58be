// SPDX-License-Identifier: MPL-2.0

// Package archive writes the zip and tar archives of wheels and source
// distributions.
//
// Entries are always written sorted by archive path. When a timestamp is
// pinned (SOURCE_DATE_EPOCH) or reproducibility is requested, every entry
// carries the same modification time and normalized permissions, so
// identical inputs produce byte-identical archives.
package archive
