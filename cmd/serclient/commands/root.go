// Package commands implements the serclient command line interface.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ooblab/serclient/internal/config"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "serclient",
	Short: "Serial-line control agent",
	Long: `serclient is the guest-side agent of the out-of-band control channel.
It speaks a packet-framed binary protocol over a serial link to the
supervisor and executes the administrative commands it receives.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("serclient %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default: /etc/serclient/config.yaml)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
