// Command journeysim generates synthetic longitudinal healthcare records.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/journeysim/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "journeysim: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
