package cli

import (
	"cmp"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/getmockd/stubd/pkg/cli/internal/output"
)

// VersionOutput is the JSON result of `stubd version --json`.
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show stubd version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := buildVersion()
		w := cmd.OutOrStdout()
		switch {
		case jsonOutput:
			return output.JSON(w, out)
		case versionShort:
			fmt.Fprintln(w, out.Version)
		default:
			fmt.Fprintf(w, "stubd %s (commit %s, built %s)\n%s %s/%s\n",
				out.Version, out.Commit, out.Date, out.Go, out.OS, out.Arch)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "Print the version number only")
}

// buildVersion prefers the ldflags values and falls back to the module
// and VCS stamps of the running binary.
func buildVersion() VersionOutput {
	out := VersionOutput{
		Version: Version,
		Commit:  Commit,
		Date:    BuildDate,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	stamps := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		stamps[s.Key] = s.Value
	}

	if out.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		out.Version = info.Main.Version
	}
	if out.Commit == "none" {
		out.Commit = cmp.Or(stamps["vcs.revision"], out.Commit)
		if stamps["vcs.modified"] == "true" {
			out.Commit += "-dirty"
		}
	}
	if out.Date == "unknown" {
		out.Date = cmp.Or(stamps["vcs.time"], out.Date)
	}
	return out
}
