package main

import (
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/labstreak/labstreak/internal/cache"
	"github.com/labstreak/labstreak/internal/config"
	"github.com/labstreak/labstreak/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP evaluation API",
		Long: `Starts the HTTP server exposing rule evaluation, rule listing,
health, and Prometheus metrics endpoints. Shuts down gracefully on
SIGINT/SIGTERM.`,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "Override the configured host:port")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		host, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("invalid --listen %q: %w", listen, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid --listen port %q: %w", portStr, err)
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cache.New(cfg.Storage.RedisAddr)
	srv := httpapi.NewServer(cfg, c)

	log.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting API server")
	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
