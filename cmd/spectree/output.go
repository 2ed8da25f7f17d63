package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// jsonError is the --json shape of a failed command.
type jsonError struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSON prints v to stdout as indented JSON.
func outputJSON(v any) {
	if err := writeJSON(os.Stdout, v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONError prints err (and hint, when set) to stderr as JSON and exits 1.
func outputJSONError(err error, hint string) {
	_ = writeJSON(os.Stderr, jsonError{Error: err.Error(), Hint: hint})
	os.Exit(1)
}
