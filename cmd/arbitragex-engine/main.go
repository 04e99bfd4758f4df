// Command arbitragex-engine boots the edge coordinator (C5) and its
// exposed HTTP surface, and drives the C1->C2->C3->C4 pipeline that turns
// each Discovery candidate into a routed, MEV-classified, executed
// Workflow persisted through the coordinator. The pipeline's RPC
// endpoints, pool-update feed, mempool signal source, and signing key are
// deployment-specific: this binary wires the pipeline against an idle
// signal source and no live chain connection, so an edge-worker process
// only needs to replace those four inputs, not the orchestration itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbitragex/engine/internal/coordinator"
	"github.com/arbitragex/engine/internal/coreclock"
	"github.com/arbitragex/engine/internal/httpapi"
	"github.com/arbitragex/engine/internal/monitoring"
	"github.com/arbitragex/engine/pkg/config"
	"github.com/arbitragex/engine/pkg/logger"
	"github.com/arbitragex/engine/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	l := logger.NewLogger(cfg.Logging)
	l.Info("starting arbitragex-engine coordinator")

	kv, err := redis.NewClientFromConfig(&cfg.Redis)
	if err != nil {
		l.Fatal(fmt.Sprintf("failed to connect to redis: %v", err))
	}
	defer kv.Close()

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	coordCfg := coordinator.Config{
		LRUMaxSize:          cfg.Coordinator.LRUSize,
		CacheValidityWindow: 5 * time.Second,
		WorkflowStartLimit:  5,
		WorkflowStartWindow: cfg.Coordinator.RateWindow,
		WorkflowLockTTL:     cfg.Coordinator.LockTTL,
	}
	if coordCfg.LRUMaxSize == 0 {
		coordCfg.LRUMaxSize = coordinator.DefaultConfig().LRUMaxSize
	}
	if coordCfg.WorkflowStartWindow == 0 {
		coordCfg.WorkflowStartWindow = coordinator.DefaultConfig().WorkflowStartWindow
	}
	if coordCfg.WorkflowLockTTL == 0 {
		coordCfg.WorkflowLockTTL = coordinator.DefaultConfig().WorkflowLockTTL
	}

	coord := coordinator.New(coordCfg, kv, coreclock.Real(), metrics, l.Logger)

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()
	runPipeline(pipelineCtx, cfg, coord, metrics, l.Logger)

	apiCfg := httpapi.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		WebhookSecret:  cfg.Security.Webhook.SigningSecret,
	}
	server := httpapi.New(apiCfg, coord, registry, l.Logger)

	go func() {
		if err := server.Run(); err != nil {
			l.Fatal(fmt.Sprintf("http server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("shutting down arbitragex-engine coordinator")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		l.Fatal(fmt.Sprintf("server forced to shutdown: %v", err))
	}

	l.Info("arbitragex-engine coordinator stopped")
}
