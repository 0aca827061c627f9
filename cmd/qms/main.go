package main

import (
	"fmt"
	"os"

	"qms/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// printError writes err and any suggested fixes to stderr.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	qe := errors.Find(err)
	if qe == nil {
		return
	}
	for _, fix := range qe.SuggestedFixes {
		switch fix.Type {
		case errors.RunCommand:
			fmt.Fprintf(os.Stderr, "  try: %s  (%s)\n", fix.Command, fix.Description)
		case errors.EditFile:
			fmt.Fprintf(os.Stderr, "  edit: %s  (%s)\n", fix.Path, fix.Description)
		}
	}
}
