// SPDX-License-Identifier: MPL-2.0

// Package develop installs a project straight into a Python environment
// without producing a wheel. It reuses the wheel staging step, replaces any
// earlier install of the same distribution through its RECORD and writes a
// fresh dist-info directory. Editable installs of mixed projects copy the
// compiled module into the python source tree and point a .pth file at it.
package develop
