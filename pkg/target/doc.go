// SPDX-License-Identifier: MPL-2.0

// Package target resolves Rust target triples into wheel compatibility tags.
//
// A Triple fully determines the platform family of the artifacts built for
// it. The platform tag is a Tag value (manylinux/musllinux policy tier,
// plain linux, macOS deployment target, Windows or the WASI "any" tag), and
// the interpreter part ("cp312-cp312", "cp38-abi3", "py3-none") is derived
// from the bridge kind and the requested interpreter. Tag strings accepted
// from outside are parsed back with ParsePlatformTag so only tags this
// package can produce end up in wheel names.
package target
