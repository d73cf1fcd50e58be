// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
)

// ErrIO is the sentinel error for archive and filesystem failures.
var ErrIO = errors.New("archive I/O error")

// IOError reports a failed archive or filesystem operation on Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

var errRecordConflict = errors.New("entry collides with the generated RECORD file")
