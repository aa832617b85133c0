// Command chi-server exposes the fan-out engine over chi, following the
// teacher's examples/chi-server layout: plain log/fmt, chi's Logger,
// Recoverer and Timeout middleware, and a permissive cors.Handler for the
// browser caller.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitallysavvy/chatfanout/pkg/config"
	"github.com/digitallysavvy/chatfanout/pkg/fanout"
	"github.com/digitallysavvy/chatfanout/pkg/health"
	"github.com/digitallysavvy/chatfanout/pkg/httpapi"
	"github.com/digitallysavvy/chatfanout/pkg/ratelimit"
	"github.com/digitallysavvy/chatfanout/pkg/registry"
	"github.com/digitallysavvy/chatfanout/pkg/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "chatfanout: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telSettings := telemetry.DefaultSettings()
	if cfg.OTLPEndpoint != "" {
		exporter, err := telemetry.NewExporter(ctx, cfg.OTLPEndpoint, "chatfanout-chi")
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

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(limiter.Middleware)

	r.Get("/healthz", srv.HandleHealthz)
	r.Get("/models", srv.HandleModels)
	r.Post("/models/reload", srv.HandleReload)
	r.Post("/stream-chat", srv.HandleStreamChat)

	fmt.Printf("chi-server listening on :%s\n", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
