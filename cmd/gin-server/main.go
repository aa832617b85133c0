// Command gin-server exposes the same fan-out engine as cmd/chi-server but
// behind gin, the teacher's other examples/*-server choice. The handler
// logic itself lives in pkg/httpapi and is wrapped with gin.WrapF rather
// than reimplemented, so both servers stay thin routing shells over one
// shared core.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/digitallysavvy/chatfanout/pkg/config"
	"github.com/digitallysavvy/chatfanout/pkg/fanout"
	"github.com/digitallysavvy/chatfanout/pkg/health"
	"github.com/digitallysavvy/chatfanout/pkg/httpapi"
	"github.com/digitallysavvy/chatfanout/pkg/ratelimit"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
	"github.com/digitallysavvy/chatfanout/pkg/telemetry"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "chatfanout: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telSettings := telemetry.DefaultSettings()
	if cfg.OTLPEndpoint != "" {
		exporter, err := telemetry.NewExporter(ctx, cfg.OTLPEndpoint, "chatfanout-gin")
		if err != nil {
			log.Fatalf("telemetry exporter: %v", err)
		}
		defer exporter.Shutdown(context.Background())
		telSettings = telSettings.WithEnabled(true)
	}

	reg := registry.New(cfg.DiscoveryURL, cfg.StaticFallbackPath)
	reg.SetLogger(logger)
	if err := reg.Load(ctx); err != nil {
		log.Fatalf("initial registry load: %v", err)
	}

	prober := health.New(reg, cfg.SelfHostedURLs)
	prober.SetLogger(logger)
	go prober.Run(ctx)

	engine := fanout.New(reg, telSettings)
	engine.SetLogger(logger)
	srv := httpapi.New(reg, engine, cfg)
	limiter := ratelimit.New(5, 10)

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(corsMiddleware())
	r.Use(func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatus(429)
			return
		}
		c.Next()
	})

	r.GET("/healthz", gin.WrapF(srv.HandleHealthz))
	r.GET("/models", gin.WrapF(srv.HandleModels))
	r.POST("/models/reload", gin.WrapF(srv.HandleReload))
	r.POST("/stream-chat", gin.WrapF(srv.HandleStreamChat))

	log.Printf("gin-server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}
