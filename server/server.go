// Package server exposes aggregated channel records over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/researchaccelerator-hub/channel-aggregator/aggregator"
	"github.com/researchaccelerator-hub/channel-aggregator/model"
	"github.com/rs/zerolog/log"
)

// Aggregator is the part of *aggregator.Aggregator the server needs.
type Aggregator interface {
	Run(ctx context.Context, configs []model.ChannelConfig) aggregator.Result
	Available() bool
}

// Handler serves the channel directory.
type Handler struct {
	agg      Aggregator
	channels []model.ChannelConfig
}

// NewHandler creates a handler over a fixed channel list.
func NewHandler(agg Aggregator, channels []model.ChannelConfig) *Handler {
	return &Handler{agg: agg, channels: channels}
}

// NewRouter creates a gin engine with all routes configured.
func NewRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/channels", handler.ListChannels)
		api.GET("/channels/:id", handler.GetChannel)
	}
	return r
}

// ListChannels returns one record per configured channel.
func (h *Handler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, h.agg.Run(c.Request.Context(), h.channels))
}

// GetChannel returns the record of a single configured channel.
func (h *Handler) GetChannel(c *gin.Context) {
	id := c.Param("id")
	for _, ch := range h.channels {
		if ch.ID != id {
			continue
		}
		result := h.agg.Run(c.Request.Context(), []model.ChannelConfig{ch})
		c.JSON(http.StatusOK, gin.H{
			"runId":     result.RunID,
			"available": result.Available,
			"channel":   result.Channels[0],
		})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "channel not configured", "id": id})
}

// Health reports liveness and whether upstream data is available.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"available": h.agg.Available(),
		"channels":  len(h.channels),
	})
}

// Run serves router on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, router http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
