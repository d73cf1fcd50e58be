// SPDX-License-Identifier: MPL-2.0

package build

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/zhaixiaojuan/maturin/internal/config"
)

// NewLogger returns the logger shared by one invocation. verbose forces
// debug output regardless of the configured level.
func NewLogger(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	lvl, err := log.ParseLevel(level.String())
	if err != nil {
		lvl = log.InfoLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  lvl,
	})
}
