// stubd serves canned HTTP responses from a YAML rule set.
package main

import (
	"os"

	"github.com/getmockd/stubd/pkg/cli"
)

// Set via -ldflags "-X main.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version, cli.Commit, cli.BuildDate = Version, Commit, BuildDate
	os.Exit(cli.Execute())
}
