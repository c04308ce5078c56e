// Package cmd implements the channel-aggregator command line.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	v       = config.NewViper()
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "channel-aggregator",
	Short: "Aggregates channel metadata and latest videos for a channel directory",
	Long: `channel-aggregator resolves the latest long-form video and display metadata
of a configured list of YouTube channels. Upstream failures degrade each
channel to its static configuration instead of failing the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return setupLogging(cfg.Log)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.String("channels", "", "channel list file or URL (default channels.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "human-readable console logs")

	_ = v.BindPFlag("channels_file", flags.Lookup("channels"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.pretty", flags.Lookup("log-pretty"))

	rootCmd.AddCommand(aggregateCmd, serveCmd)
}

func setupLogging(lc config.LogConfig) error {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if lc.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		level = parsed
	}
	zerolog.SetGlobalLevel(level)

	if lc.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}
