// SPDX-License-Identifier: MPL-2.0

// Package auditwheel checks compiled artifacts against platform
// compatibility policies before they are archived.
//
// Linux shared objects are compared with the manylinux and musllinux tiers
// of an embedded policy table: every DT_NEEDED library must be whitelisted
// and every versioned symbol must not exceed the tier's maximum version for
// its namespace. macOS binaries are checked for architecture and minimum OS
// version, Windows binaries for machine type and WASI modules for their
// magic. Malformed input is reported as a NonCompliantBinaryError, never as
// a panic.
package auditwheel
