package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/treeflow/treeflow/internal/types"
	"github.com/treeflow/treeflow/internal/ui"
)

// Exit codes by failure class. Scripts branch on these.
const (
	exitFailure   = 1 // generic error
	exitNotFound  = 2 // unknown worktree
	exitGuardrail = 3 // guardrail or lifecycle rejection
	exitVCS       = 4 // git invocation failed
)

func exitCode(err error) int {
	var te *types.TransitionError
	var ve *types.VCSError
	switch {
	case types.IsNotFound(err):
		return exitNotFound
	case types.IsGuardrail(err), errors.As(err, &te):
		return exitGuardrail
	case errors.As(err, &ve):
		return exitVCS
	}
	return exitFailure
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to encode JSON: %v\n", err)
		return
	}
	fmt.Println(string(out))
}

// printWarnings reports soft failures on stderr so stdout stays parseable.
func printWarnings(warnings []string) {
	if quietFlag {
		return
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn(ui.IconWarn), w)
	}
}

func info(format string, args ...interface{}) {
	if quietFlag {
		return
	}
	fmt.Printf(format+"\n", args...)
}
