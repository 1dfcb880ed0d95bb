package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	exitCode := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

// run is the main entry point for the CLI, separated for testing
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, FmtErrorWithCause, ee.msg, ee.err)
		} else {
			fmt.Fprintf(stderr, FmtError, ee.msg)
		}
		return ee.code
	}
	// Anything cobra itself rejects is a usage problem.
	fmt.Fprintf(stderr, FmtError, err)
	return ExitCodeUsageError
}

// exitError carries the exit code a command failed with
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, msg string, err error) error {
	return &exitError{code: code, msg: msg, err: err}
}
