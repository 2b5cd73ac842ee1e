package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/stubd/pkg/cli/internal/output"
	"github.com/getmockd/stubd/pkg/config"
)

// ValidateOutput is the JSON result of `stubd validate --json`.
type ValidateOutput struct {
	Valid bool         `json:"valid"`
	Files []string     `json:"files,omitempty"`
	Rules []RuleOutput `json:"rules,omitempty"`
	Error string       `json:"error,omitempty"`
}

// RuleOutput describes one built rule.
type RuleOutput struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Matcher string `json:"matcher"`
	Handler string `json:"handler"`
}

var validateVerbose bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a rule set without serving it",
	Long: `Validate loads the rule set and its included files, checks them against
the schema and builds every rule, reporting the first error.`,
	Example: `  stubd validate
  stubd validate --config api.yaml --verbose`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		return runValidate(cmd.OutOrStdout(), path, validateVerbose, jsonOutput)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "List every built rule")
}

func runValidate(w io.Writer, path string, verbose, asJSON bool) error {
	out, err := validateRuleSet(path)
	if asJSON {
		if jerr := output.JSON(w, out); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: OK (%d files, %d rules)\n", path, len(out.Files), len(out.Rules))
	if verbose {
		tw := output.Table(w)
		fmt.Fprintln(tw, "ID\tNAME\tMATCHER\tRESPONSE")
		for _, r := range out.Rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Matcher, r.Handler)
		}
		return tw.Flush()
	}
	return nil
}

func validateRuleSet(path string) (ValidateOutput, error) {
	doc, err := config.Load(path)
	if err != nil {
		return ValidateOutput{Error: err.Error()}, err
	}
	reg, err := config.BuildRegistry(doc, config.BuildOptions{})
	if err != nil {
		return ValidateOutput{Files: doc.AllFiles(), Error: err.Error()}, err
	}

	out := ValidateOutput{Valid: true, Files: doc.AllFiles()}
	for _, rl := range reg.Rules() {
		out.Rules = append(out.Rules, RuleOutput{
			ID:      rl.ID(),
			Name:    rl.Name(),
			Matcher: rl.Matcher().String(),
			Handler: rl.Handler().String(),
		})
	}
	return out, nil
}
