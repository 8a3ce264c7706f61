// Package cli wires the cobra command tree for gemmaft.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gemmaft/internal/config"
)

var logger zerolog.Logger

// Execute builds and runs the root command.
func Execute() error {
	return buildRootCmd().Execute()
}

func buildRootCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
	)
	root := &cobra.Command{
		Use:           "gemmaft",
		Short:         "Fine-tune a quantized Gemma model to generate code-comment updates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (.yaml|.json|.toml); flags override file values")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")

	loadConfig := func() (config.Config, error) {
		cfg := config.Default()
		if cfgPath != "" {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return cfg, fmt.Errorf("load config %s: %w", cfgPath, err)
			}
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger = newLogger(cfg.LogLevel)
		return cfg, nil
	}

	root.AddCommand(buildRunCmd(loadConfig))
	root.AddCommand(buildModelsCmd(loadConfig))
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
