package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/GoCodeAlone/launchpad"
	"github.com/GoCodeAlone/launchpad/cmd/launchpad/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var coder launchpad.ExitCoder
		if errors.As(err, &coder) && coder.ExitCode() != 0 {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
