// Package main is the entry point for the loopcast application.
package main

import (
	"os"

	"github.com/jmylchreest/loopcast/cmd/loopcast/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
