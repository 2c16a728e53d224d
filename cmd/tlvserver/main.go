//go:build unix

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/tlvhello/internal/config"
	"github.com/danmuck/tlvhello/internal/logging"
	"github.com/danmuck/tlvhello/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintf(stderr, "usage: tlvserver\n  (no arguments; set %s to load a config file)\n", config.EnvServerConfig)
		return 2
	}
	logging.ConfigureRuntime("tlvserver")
	gin.SetMode(gin.ReleaseMode)

	cfg, path, err := config.LoadServerFromEnv()
	if err != nil {
		log.Error().Err(err).Msg("failed to load server config")
		return 1
	}
	if path != "" {
		log.Info().Str("path", path).Msg("loaded server config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg)
	if err := srv.Listen(); err != nil {
		log.Error().Err(err).Msg("server startup failed")
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	if cfg.AdminListenAddr != "" {
		rendered, err := config.Render(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("effective config not rendered")
		}
		admin := server.NewAdmin(srv, server.AdminOptions{
			Addr:            cfg.AdminListenAddr,
			CorsOrigins:     cfg.CorsOrigins,
			EffectiveConfig: rendered,
		})
		g.Go(func() error {
			return admin.Serve(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return 1
	}
	return 0
}
