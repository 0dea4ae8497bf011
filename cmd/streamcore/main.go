// Command streamcore runs the random-access streaming cache and range
// server as a standalone process.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/streamcore/cmd/streamcore/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
