package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/alerting"
	"github.com/wxstack/wxstack/driver/fileparse"
	"github.com/wxstack/wxstack/expression"
	"github.com/wxstack/wxstack/logging/logger"
)

// NewAlertCommand creates the alerting command
func NewAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Rule-based alerting on station observations",
	}

	cmd.AddCommand(newAlertRunCommand(), newAlertCheckCommand())
	return cmd
}

func newAlertRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the alerting service against the live configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if e.cfg.Alerting.Endpoint == "" {
				return errors.New("no alerting endpoint configured (alerting.endpoint)")
			}

			engine := expression.New(nil)
			set, err := alerting.LoadRules(e.doc, engine, alerting.DefaultObservations)
			if err != nil {
				return err
			}

			// Standalone runs read observations through the file-parse
			// driver; other drivers deliver records only inside the
			// station process.
			driverName, err := e.doc.Scalar("Station.station_type")
			if err != nil {
				return fmt.Errorf("station_type: %w", err)
			}
			if driverName != fileparse.StanzaName {
				return fmt.Errorf("standalone alert runs need the %s driver, station uses %s",
					fileparse.StanzaName, driverName)
			}
			sec, err := e.doc.Section(fileparse.StanzaName)
			if err != nil {
				return err
			}
			drvCfg, err := fileparse.ConfigFromStanza(sec)
			if err != nil {
				return err
			}

			heartbeat := e.cfg.Alerting.HeartbeatInterval
			if heartbeat <= 0 {
				heartbeat = time.Minute
			}
			svc := alerting.NewService(set, engine, alerting.NewNotifier(e.cfg.Alerting),
				alerting.WithHeartbeat(heartbeat), alerting.WithSource(e.cfg.AppName))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc.Start(ctx)
			defer svc.Stop(cmd.Context())

			records := make(chan fileparse.Record, 1)
			errc := make(chan error, 1)
			go func() { errc <- fileparse.New(drvCfg).Run(ctx, records) }()

			fmt.Printf("Alerting on %d rule(s). Press Ctrl-C to stop.\n", len(set.Rules))
			for {
				select {
				case rec := <-records:
					if err := svc.HandleRecord(rec); err != nil {
						logger.Warnf(ctx, "record dropped: %v", err)
					}
				case err := <-errc:
					if ctx.Err() != nil {
						return nil
					}
					return err
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func newAlertCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the alert rules without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			set, err := alerting.LoadRules(e.doc, expression.New(nil), alerting.DefaultObservations)
			if err != nil {
				return err
			}
			for _, r := range set.Rules {
				fmt.Printf("%s: %s (alias %s)\n", r.Name, r.Expression, r.Alias)
			}
			fmt.Printf("%d rule(s) valid.\n", len(set.Rules))
			return nil
		},
	}
}
