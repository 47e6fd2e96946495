package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wxstack",
		Short: "Station management toolkit: extensions, drivers, units, alerting",
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "toolkit settings file (wxstack.yaml)")
	rootCmd.PersistentFlags().String("station-config", "", "station configuration file (wxstack.conf)")

	rootCmd.AddCommand(
		NewExtensionCommand(),
		NewStationCommand(),
		NewConfigCommand(),
		NewAlertCommand(),
		NewMonitorCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
