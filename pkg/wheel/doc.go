// SPDX-License-Identifier: MPL-2.0

// Package wheel assembles binary distributions.
//
// A build runs through the states Staging, MetadataGeneration,
// CompatibilityValidation, Archiving and Done. Staging places the compiled
// artifacts according to the bridge kind and fails with MissingArtifactError
// when one is absent. CompatibilityValidation runs the auditwheel checker
// and aborts the build before any archive byte is written; the tag it
// returns names the wheel and is recorded in its WHEEL file.
package wheel
