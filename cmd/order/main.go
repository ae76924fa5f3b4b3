package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/discovery"
	"github.com/example/khanpan/pkg/grpc"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/logger"
	"github.com/example/khanpan/pkg/metrics"
	"github.com/example/khanpan/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("KHANPAN_CONFIG"); p != "" {
		return p
	}
	return "config/order-config.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Ledger.Store))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoRepo.Close(ctx)
	}()
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		log.Warn("Failed to create MongoDB indexes", zap.Error(err))
	}

	store, releaseStore, err := repository.OpenOrderStore(cfg, mongoRepo)
	if err != nil {
		log.Fatal("Failed to open order store", zap.Error(err))
	}
	defer releaseStore()

	m := metrics.New()
	audit := repository.NewAuditRecorder(mongoRepo, cfg.Server.Name, log)
	defer audit.Wait()

	svc := ledger.NewService(store, ledger.WithRecorder(ledger.Recorders{m, audit}))
	server := grpc.NewOrderServer(svc, log)

	var metricsServer *http.Server
	if addr := cfg.Server.MetricsAddr(); addr != "" {
		gin.SetMode(gin.ReleaseMode)
		metricsServer = m.NewServer(addr)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
		log.Info("Metrics exposed", zap.String("address", addr))
	}

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, log)
	if err != nil {
		log.Fatal("Failed to connect to etcd", zap.Error(err))
	}
	defer sd.Close()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if err := sd.Register(ctx, instance); err != nil {
		log.Fatal("Failed to register service", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr()); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("Server error", zap.Error(err))
	}

	deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sd.Deregister(deregCtx, instance); err != nil {
		log.Error("Failed to deregister service", zap.Error(err))
	}
	stop()
	server.Stop()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(deregCtx)
	}

	log.Info("Service stopped")
}
