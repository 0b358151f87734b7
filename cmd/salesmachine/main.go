// Command salesmachine runs the lead qualification and deal pipeline CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/salesmachine/internal/cli"
)

func main() {
	err := cli.NewRootCommand().ExecuteContext(context.Background())
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Cobra usage errors have not been reported yet.
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
