package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vadimtrunov/marquee/internal/frontend/httpapi"
)

// newServeCmd returns the "serve" subcommand for the JSON API.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP JSON API",
		Long: "Serve upcoming movies, search, details, trailers and images as JSON under /api/v1.\n" +
			"Each request is answered from its own state. The server keeps none between requests.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func runServe(addr string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTP.Addr
	}
	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := httpapi.New(addr, newTMDbClient(cfg, logger), logger,
		httpapi.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Start(ctx)
}
