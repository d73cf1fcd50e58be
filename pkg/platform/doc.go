// SPDX-License-Identifier: MPL-2.0

// Package platform provides host platform facts used when no explicit target
// is requested: operating system and architecture names, C library
// detection on Linux, and Windows reserved filenames that cannot appear in
// archive paths installed on Windows.
package platform
