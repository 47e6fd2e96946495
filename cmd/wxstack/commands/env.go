package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wxstack/wxstack/config"
	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
	"github.com/wxstack/wxstack/version"
)

// env is everything a subcommand needs: the toolkit settings, the
// parsed station configuration, and the resolved directory layout.
type env struct {
	cfg      *config.Config
	confPath string
	doc      *stanza.Document
	lay      *layout.Layout
}

// loadEnv reads the toolkit settings, initializes logging, and parses
// the station configuration. The returned cleanup flushes the logger.
func loadEnv(cmd *cobra.Command) (*env, func(), error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}

	cleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.SetVersion(version.Version)

	confPath, _ := cmd.Flags().GetString("station-config")
	if confPath == "" {
		confPath = cfg.ConfigPath
	}
	doc, err := stanza.ParseFile(confPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("station config %s: %w", confPath, err)
	}

	var lay *layout.Layout
	if cfg.Root != "" {
		lay = layout.New(cfg.Root, nil)
	} else {
		lay = layout.FromConfig(doc, confPath)
	}

	return &env{cfg: cfg, confPath: confPath, doc: doc, lay: lay}, cleanup, nil
}

// restartNotice reminds the operator that configuration changes only
// take effect after the station process restarts.
func restartNotice() {
	fmt.Println("Restart the station process for this change to take effect.")
}
