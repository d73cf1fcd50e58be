// SPDX-License-Identifier: MPL-2.0

// Package build ties configuration, project resolution and the archive
// builders together for one command invocation.
//
// A Session is opened once per invocation; Sdist, Wheel, Develop and Audit
// each run a fresh builder against the resolved project.
package build
