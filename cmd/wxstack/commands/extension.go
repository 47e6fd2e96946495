package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/extension"
)

// NewExtensionCommand creates the extension management command
func NewExtensionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "extension",
		Aliases: []string{"ext"},
		Short:   "Install, remove and list station extensions",
	}

	cmd.AddCommand(
		newExtensionInstallCommand(),
		newExtensionUninstallCommand(),
		newExtensionListCommand(),
	)

	return cmd
}

func newExtensionInstallCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install [path]",
		Short: "Install an extension from a package directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var opts []extension.Option
			if dryRun {
				opts = append(opts, extension.WithDryRun())
			}
			inst := extension.NewInstaller(e.confPath, e.lay, opts...)

			report, err := inst.Install(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printReport(report, "install")
			if report.Unchanged {
				fmt.Printf("Extension %s %s is already installed.\n", report.Name, report.Version)
				return nil
			}
			if !report.DryRun {
				fmt.Printf("Installed extension %s %s.\n", report.Name, report.Version)
				restartNotice()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report planned actions without changing anything")
	return cmd
}

func newExtensionUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "uninstall [name]",
		Aliases: []string{"remove"},
		Short:   "Remove an installed extension",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			inst := extension.NewInstaller(e.confPath, e.lay)
			report, err := inst.Uninstall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printReport(report, "remove")
			if !report.DryRun {
				fmt.Printf("Uninstalled extension %s.\n", report.Name)
				restartNotice()
			}
			return nil
		},
	}
	return cmd
}

func newExtensionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed extensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			installed, err := extension.NewInstaller(e.confPath, e.lay).List()
			if err != nil {
				return err
			}
			if len(installed) == 0 {
				fmt.Println("No extensions installed.")
				return nil
			}
			for _, ext := range installed {
				fmt.Printf("%s %s (%s)\n", ext.Name, ext.Version, ext.Type)
			}
			return nil
		},
	}
}

func printReport(r *extension.Report, verb string) {
	if r.DryRun {
		fmt.Printf("Dry run: would %s extension %s %s\n", verb, r.Name, r.Version)
	}
	for _, f := range r.Files {
		fmt.Printf("  file:    %s\n", f)
	}
	for _, s := range r.Stanzas {
		fmt.Printf("  stanza:  [%s]\n", s)
	}
	for _, s := range r.Services {
		fmt.Printf("  service: %s\n", s)
	}
}
