// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that choose the process exit
// status.
type ExitCoder interface {
	ExitCode() int
}

// quietError is implemented by errors whose command already wrote its
// own output, so Fatal prints nothing.
type quietError interface {
	Quiet() bool
}

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Fatal reports err on stderr as "error: err" and exits with the status
// from [Status]. Use it in main() for errors from run(), where the
// structured logger may not be initialized.
func Fatal(err error) {
	code, message := Status(err)
	if message != "" {
		fmt.Fprintln(stderr, message)
	}
	exit(code)
}

// Status returns the exit status for err and the line to print, if
// any. The status comes from the first [ExitCoder] in err's chain and
// defaults to 1.
func Status(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	code := 1
	var coder ExitCoder
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}
	var quiet quietError
	if errors.As(err, &quiet) && quiet.Quiet() {
		return code, ""
	}
	return code, "error: " + err.Error()
}
