package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adeilh/carefeed/api"
	"github.com/adeilh/carefeed/httpx"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the content sources over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if bind == "" {
				bind = cfg.Server.Bind
			}

			handler := api.New(catalog, api.WithMetrics(ctx.metrics), api.WithLogger(ctx.logger))
			server := api.NewServer(handler, append(cfg.ServerOptions(), httpx.WithAddress(bind))...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctx.logger.Info("serving content api", zap.String("bind", server.Address()))
			err = server.Start(runCtx, httpx.WithShutdownTimeout(10*time.Second))
			if errors.Is(err, context.Canceled) {
				ctx.logger.Info("server stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to server.bind)")
	return cmd
}
