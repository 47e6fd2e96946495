package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/station"
)

// NewStationCommand creates the station management command
func NewStationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "station",
		Short: "Reconfigure the station: active driver and unit system",
	}

	cmd.AddCommand(
		newStationReconfigureCommand(),
		newStationUnitsCommand(),
	)

	return cmd
}

func newStationReconfigureCommand() *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "reconfigure",
		Short: "Select the active driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := station.SelectDriver(cmd.Context(), e.confPath, driver)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Printf("Driver %s is already selected.\n", driver)
				return nil
			}
			fmt.Printf("Active driver is now %s.\n", driver)
			restartNotice()
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "driver stanza name to activate")
	_ = cmd.MarkFlagRequired("driver")
	return cmd
}

func newStationUnitsCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "units",
		Short: "Change the unit system new records are stored in",
		Long: `Change the unit system new records are converted to before storage.
Once records exist in the archive the unit system is fixed; changing it
then requires converting the database first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			changed, err := station.SetTargetUnits(cmd.Context(), e.confPath, e.lay, target)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Printf("Target unit system is already %s.\n", target)
				return nil
			}
			fmt.Printf("Target unit system is now %s.\n", target)
			restartNotice()
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "unit system (US, METRIC or METRICWX)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
