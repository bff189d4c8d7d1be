// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btl

import "fmt"

// CompilationError describes a single failure encountered while parsing,
// resolving, or reducing a template script.  Every error carries the source
// range it originates from.
type CompilationError struct {
	Message string
	Range   Range
}

// Error satisfies the error interface.
func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s [%s]", e.Message, e.Range)
}

// compilationErrorf builds a CompilationError over the passed range.
func compilationErrorf(r Range, format string, args ...interface{}) *CompilationError {
	return &CompilationError{
		Message: fmt.Sprintf(format, args...),
		Range:   r,
	}
}
