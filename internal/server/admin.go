package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/tlvhello/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// StatusSource is the read-only server view the admin surface renders.
type StatusSource interface {
	Addr() *net.TCPAddr
	Active() int
	MaxClients() int
	Slots() []SlotInfo
	Started() time.Time
}

type AdminOptions struct {
	Addr        string
	CorsOrigins []string
	// EffectiveConfig is served verbatim from /config.
	EffectiveConfig []byte
}

// Admin exposes health, slot and metrics endpoints next to the handshake listener.
type Admin struct {
	src    StatusSource
	opts   AdminOptions
	router *gin.Engine
}

func NewAdmin(src StatusSource, opts AdminOptions) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{src: src, opts: opts, router: r}
	a.registerRoutes()
	return a
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  a.uptime().String(),
			"service": "tlvserver",
			"version": version,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		addr := a.src.Addr()
		if addr == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"listen": addr.String(),
			"uptime": a.uptime().String(),
		})
	})

	a.router.GET("/slots", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active":      a.src.Active(),
			"max_clients": a.src.MaxClients(),
			"slots":       a.src.Slots(),
		})
	})

	a.router.GET("/config", func(c *gin.Context) {
		if len(a.opts.EffectiveConfig) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "config not published"})
			return
		}
		c.Data(http.StatusOK, "application/toml; charset=utf-8", a.opts.EffectiveConfig)
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve blocks until ctx is cancelled or the listener fails.
func (a *Admin) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              strings.TrimSpace(a.opts.Addr),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Admin) uptime() time.Duration {
	started := a.src.Started()
	if started.IsZero() {
		return 0
	}
	return time.Since(started).Truncate(time.Millisecond)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
