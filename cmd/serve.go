package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/researchaccelerator-hub/channel-aggregator/config"
	"github.com/researchaccelerator-hub/channel-aggregator/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve aggregated channel records over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		go e.sweep(ctx, sweepInterval)

		router := server.NewRouter(server.NewHandler(e.agg, channels))
		return server.Run(ctx, cfg.Server.Addr, router)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
