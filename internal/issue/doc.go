// SPDX-License-Identifier: MPL-2.0

// Package issue turns build failures into user-facing messages.
//
// ActionableError carries the failed step, the file involved and
// remediation hints. Issue holds the Markdown help page for each class of
// failure (invalid manifests, non-compliant binaries, missing artifacts,
// missing environments), rendered with glamour.
package issue
