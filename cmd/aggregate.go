package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/researchaccelerator-hub/channel-aggregator/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Resolve every configured channel once and print the records as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		channels, err := config.LoadChannels(ctx, cfg.ChannelsFile)
		if err != nil {
			return err
		}

		e, err := newEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := e.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to release resources")
			}
		}()

		result := e.agg.Run(ctx, channels)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		return nil
	},
}

func init() {
	aggregateCmd.Flags().Int("max-results", 0, "videos per channel (default 1)")
	_ = v.BindPFlag("youtube.max_results", aggregateCmd.Flags().Lookup("max-results"))
}
