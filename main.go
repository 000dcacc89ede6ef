package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"supplychat/config"
	"supplychat/logger"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "supplychat",
		Short:         "Ask questions about supply-chain data in natural language",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a supplychat.yaml config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newAskCommand(),
		newChatCommand(),
		newServeCommand(),
		newHistoryCommand(),
		newClearCommand(),
	)
	return root
}

// loadConfig reads and validates the configuration named by the persistent
// flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log := logger.NewLogger()
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	if cfg.Log.Dir != "" {
		if err := log.Init(cfg.Log.Dir); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// startApp loads configuration and starts the services. Callers must
// Shutdown the returned App.
func startApp(ctx context.Context, opts ...AppOption) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	app := NewApp(cfg, log, opts...)
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return app, nil
}
