package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"review-backend/internal/bootstrap"
	"review-backend/internal/shared/config"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.LogLevel, cfg.Env == "dev")
	if cfg.QueueBackend == "memory" {
		log.Fatal("worker: QUEUE_BACKEND=memory is only served by the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	workers := app.Workers()
	for _, w := range workers {
		w := w
		g.Go(func() error { return w.Run(gctx) })
	}

	// Metrics only; the worker serves no API.
	gin.SetMode(gin.ReleaseMode)
	mux := gin.New()
	mux.GET("/metrics", metrics.Handler())
	srv := &http.Server{Addr: ":9090", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	telemetry.Info("worker.started", map[string]any{
		"queue":      cfg.QueueBackend,
		"partitions": len(workers),
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
	telemetry.Info("worker.stopped", nil)
}
