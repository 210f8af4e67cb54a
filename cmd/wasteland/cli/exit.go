// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have written its own
// output already (e.g., "task ready" exiting 1 when nothing is ready
// under --check).
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this method to tell
// a handled non-zero exit from an error worth printing.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Quiet reports that the command already wrote its output, so main
// prints no error line.
func (e *ExitError) Quiet() bool { return true }
