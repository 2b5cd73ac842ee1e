package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set by cmd/stubd from its ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Persistent flags.
var (
	configFile string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "stubd",
	Short: "stubd is a rule-based HTTP stub server",
	Long: `stubd answers HTTP requests from declarative rules: each rule pairs a
request matcher with a response. Rules are evaluated in order and the first
match wins.

The rule set is read from --config, $STUBD_CONFIG, or stubd.yaml in the
current directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the rule set file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print command results as JSON")
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
