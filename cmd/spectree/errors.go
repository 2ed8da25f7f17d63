package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spectree/spectree/internal/ui"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
// With --json the error is written as a JSON object instead.
func FatalError(format string, args ...interface{}) {
	if jsonOutput {
		outputJSONError(fmt.Errorf(format, args...), "")
	}
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("no app selected", "pass --app or run 'spectree config set app <documentId>'")
func FatalErrorWithHint(message, hint string) {
	if jsonOutput {
		outputJSONError(errors.New(message), hint)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
// Use this for optional operations (cache writes, telemetry) that should not
// fail the command.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s Warning: %s\n", ui.RenderWarnIcon(), fmt.Sprintf(format, args...))
}
