package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/alerting"
	"github.com/wxstack/wxstack/station"
)

// NewConfigCommand creates the configuration command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Station configuration tools",
	}

	cmd.AddCommand(newConfigCheckCommand())
	return cmd
}

func newConfigCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the station configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			problems := station.Check(e.doc, e.lay, alerting.DefaultObservations)
			if len(problems) == 0 {
				fmt.Printf("%s: no problems found.\n", e.confPath)
				return nil
			}
			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("%d problem(s) found in %s", len(problems), e.confPath)
		},
	}
}
