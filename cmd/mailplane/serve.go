package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/mailplane/internal/config"
	"github.com/dropDatabas3/mailplane/internal/http/server"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env opcional, útil en dev
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "mailplane",
				Version:     version,
			})
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, cleanup, err := server.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("server listening", logger.String("addr", cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "ruta al YAML de configuración")
	return cmd
}
