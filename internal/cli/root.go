package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spkrepo",
		Short: "Serve Synology package archives to DSM devices",
		Long: `Spkrepo indexes directories of .spk archives and answers the package
center queries of Synology devices, picking for each package the newest
archive matching the device's channel, DSM major version and architecture.

Parsed archives are cached per source directory so restarts only read new
files.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringSliceP("source", "s", nil, "Source directory holding .spk archives (repeatable)")
	rootCmd.PersistentFlags().String("cache-dir", "", `Cache directory ("-" disables persistence)`)

	rootCmd.AddCommand(NewScanCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}
