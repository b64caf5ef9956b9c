package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pairlink/internal/app"
	"pairlink/internal/observability"
	"pairlink/internal/relay"
)

var (
	cfgPath  string
	listen   string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Run the pairlink WebSocket relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Load(cfgPath, app.DefaultHome())
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Relay.Listen = listen
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			log, err := observability.SetupLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "config file (default $PAIRLINK_HOME/config.toml)")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func serve(ctx context.Context, cfg app.Config, log *zap.Logger) error {
	sc := relay.DefaultServerConfig()
	if cfg.Relay.PingIntervalMS > 0 {
		sc.PingInterval = time.Duration(cfg.Relay.PingIntervalMS) * time.Millisecond
	}
	if cfg.Relay.ReadLimit > 0 {
		sc.ReadLimit = cfg.Relay.ReadLimit
	}
	hub := relay.NewHub(log.Named("hub"))
	rs := relay.NewServer(hub, sc, log.Named("http"))
	srv := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           rs,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not reach hijacked websocket connections.
	srv.RegisterOnShutdown(rs.Close)

	errc := make(chan error, 1)
	go func() {
		log.Info("relay listening", zap.String("addr", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("relay stopped")
	return nil
}
