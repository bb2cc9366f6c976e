package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/blazectl/internal/auth"
	"github.com/danmuck/blazectl/internal/components"
	"github.com/danmuck/blazectl/internal/config"
	"github.com/danmuck/blazectl/internal/observability"
	"github.com/danmuck/blazectl/internal/server"
)

func serveCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Blaze listener and the admin HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path to a TOML config file")
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := observability.InitLogger("blazectl", cfg.Logging())
	observability.RegisterMetrics()

	router := server.NewRouter()
	if err := components.Register(router, cfg.Components); err != nil {
		return err
	}
	svc := server.NewService(cfg.Server, router).WithLogger(logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(ctx)
	})
	if cfg.Admin.ListenAddr != "" {
		var metricsAuth auth.Validator
		if cfg.Admin.MetricsToken != "" {
			metricsAuth = auth.StaticToken{Token: cfg.Admin.MetricsToken}
		}
		admin := &http.Server{
			Addr: cfg.Admin.ListenAddr,
			Handler: observability.NewAdminRouter("blazectl", version, logger, func() map[string]any {
				return map[string]any{"active_clients": svc.ActiveClients()}
			}, metricsAuth),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			return serveAdmin(ctx, admin, logger)
		})
	}
	return g.Wait()
}

func serveAdmin(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
