package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/vetviz-cli/internal/adapter/httpadapter"
	"github.com/KaramelBytes/vetviz-cli/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	svAddr            string
	svMaxRows         int
	svShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve view builds over HTTP (POST /v1/views, /metrics, /healthz)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		addr := c.HTTPAddr
		if cmd.Flags().Changed("addr") {
			addr = svAddr
		}
		vopt, err := viewOptions(c)
		if err != nil {
			return err
		}

		if c.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		metrics := observability.NewMetrics()
		srv := httpadapter.NewServer(addr, httpadapter.Deps{
			Defaults: vopt,
			Table:    tableOptions(c),
			Geocoder: newGeocoder(c, metrics),
			Metrics:  metrics,
			MaxRows:  svMaxRows,
		}, logger)

		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), svShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&svAddr, "addr", "", "listen address (overrides http_addr)")
	serveCmd.Flags().IntVar(&svMaxRows, "max-rows", 100000, "maximum rows accepted per request (0 = unlimited)")
	serveCmd.Flags().DurationVar(&svShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
}
