package main

import (
	"errors"
	"fmt"
	"os"
)

// TestFailureError distinguishes "the batch ran, some tests failed" from
// configuration and runtime errors, so CI can branch on the exit code:
// 0 all passed, 1 test failures, 2 anything else.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string { return e.Message }

func main() {
	err := execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)

	var testFailure *TestFailureError
	if errors.As(err, &testFailure) {
		os.Exit(1)
	}
	os.Exit(2)
}
