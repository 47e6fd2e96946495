package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/monitor"
)

// NewMonitorCommand creates the process monitor command
func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Process memory monitoring",
	}

	cmd.AddCommand(newMonitorRunCommand())
	return cmd
}

func newMonitorRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sample the configured process until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, closeStore, err := monitor.NewService(e.doc, e.lay)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Println("Monitoring. Press Ctrl-C to stop.")
			if err := svc.Run(ctx); ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
