// Command threadcalc solves directories of binary equation files with a
// fixed pool of worker threads.
package main

import (
	"fmt"
	"os"

	"github.com/jeremiahlee314/CalcProject/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "threadcalc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
