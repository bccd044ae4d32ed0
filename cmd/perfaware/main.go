// Command perfaware runs repetition tests, page fault probes and timer
// diagnostics against the local machine.
package main

import (
	"fmt"
	"os"
)

var exit = os.Exit

func main() {
	exit(execute(newApp()))
}

// execute runs the command tree of a and maps errors and fatal panics to an
// exit code.
func execute(a *app) (code int) {
	root := a.root

	defer func() {
		if err := a.close(); err != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: closing log file: %v\n", err)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", r)
			code = 1
		}
	}()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		fmt.Fprintln(root.ErrOrStderr(), "Run 'perfaware --help' for usage.")

		return 1
	}

	return 0
}
