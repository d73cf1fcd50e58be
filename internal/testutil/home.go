// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir sets the appropriate HOME environment variable based on platform
// and returns a cleanup function to restore the original value.
//
// Platform handling:
//   - Windows: Sets USERPROFILE
//   - Linux/macOS: Sets HOME
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    tmpDir := t.TempDir()
//	    t.Cleanup(testutil.SetHomeDir(t, tmpDir))
//
//	    // Test code...
//	}
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// SetConfigHome points the user configuration directory at dir: HOME (or
// USERPROFILE) and XDG_CONFIG_HOME both move, so os.UserConfigDir resolves
// inside dir on every platform.
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	restoreHome := SetHomeDir(t, dir)
	restoreXDG := MustSetenv(t, "XDG_CONFIG_HOME", dir)
	restoreAppData := MustSetenv(t, "AppData", dir)
	return func() {
		restoreAppData()
		restoreXDG()
		restoreHome()
	}
}
