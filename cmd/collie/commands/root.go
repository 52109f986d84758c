package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "collie",
	Short: "Collie - support-desk incident correlation daemon",
	Long: `Collie watches a support-desk ticket store and herds stray tickets
into the incident they belong to.

Every cycle it discovers newly opened problem tickets, derives a keyword
signature for each, scores recent tickets against every active incident,
and links each ticket to its single best match - leaving an auditable
trail of which literal keyword triggered every link.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
