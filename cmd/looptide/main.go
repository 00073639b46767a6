package main

import (
	"fmt"
	"os"

	"github.com/looptide/looptide/config"
	"github.com/looptide/looptide/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "looptide",
		Short:         "Live coding of rhythmic patterns and synthesis graphs",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "engine configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level: trace, debug, info, warn or error")
	rootCmd.AddCommand(newPlayCmd(), newRenderCmd(), newQueryCmd(), newNodesCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "looptide: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration given by the global flags and builds the
// logger. Logs go to stderr so stdout stays free for command output.
func setup() (config.Config, *logrus.Logger, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, nil, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := config.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
