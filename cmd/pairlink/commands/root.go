package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairlink/internal/app"
	"pairlink/internal/observability"
)

var (
	home       string
	cfgPath    string
	passphrase string
	relayURL   string
	logLevel   string

	cfg    app.Config
	wire   *app.Wire
	logger *zap.Logger
)

// Execute runs the pairlink command tree.
func Execute() error {
	root := &cobra.Command{
		Use:           "pairlink",
		Short:         "End-to-end encrypted channel between two peers over a relay",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				home = app.DefaultHome()
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}
			var err error
			cfg, err = app.Load(cfgPath, home)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.Relay.URL = relayURL
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logger, err = observability.SetupLogger(cfg.Log)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg, logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default $PAIRLINK_HOME or ~/.pairlink)")
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting saved channels")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay WebSocket URL (e.g. ws://127.0.0.1:8080/ws)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		createCmd(),
		joinCmd(),
		resumeCmd(),
		channelsCmd(),
		forgetCmd(),
		fingerprintCmd(),
		configCmd(),
	)
	return root.Execute()
}

func configFilePath() string {
	if cfgPath != "" {
		return cfgPath
	}
	return filepath.Join(home, app.ConfigFile)
}
