// SPDX-License-Identifier: MPL-2.0

// Package pymeta renders the Python packaging metadata records that both the
// source archive and the wheel carry.
//
// It owns:
//   - [Metadata]: core metadata (rendered as PKG-INFO or METADATA)
//   - [WheelInfo]: the WHEEL marker record
//   - [EntryPoints]: the entry_points.txt record
//   - name normalization ([NormalizeName], [EscapeName]) and conversion of
//     semantic versions into PEP 440 versions ([ConvertVersion])
package pymeta
