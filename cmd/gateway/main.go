package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/khanpan/gateway"
	"github.com/example/khanpan/pkg/auth"
	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/discovery"
	"github.com/example/khanpan/pkg/grpc"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/logger"
	"github.com/example/khanpan/pkg/metrics"
	"github.com/example/khanpan/pkg/notify"
	"github.com/example/khanpan/pkg/recommend"
	"github.com/example/khanpan/pkg/repository"
	"go.uber.org/zap"
)

func configPath() string {
	if p := os.Getenv("KHANPAN_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
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

	log.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host),
		zap.String("ledger_mode", cfg.Ledger.Mode))

	ctx := context.Background()
	m := metrics.New()

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

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
	if err := redisRepo.Ping(ctx); err != nil {
		log.Warn("Redis connection failed, menu reads go to MongoDB", zap.Error(err))
	}
	menu := repository.NewCachedMenu(mongoRepo.Menu(), redisRepo, cfg.Redis.MenuTTL, log)

	orders, closeLedger, err := openLedger(ctx, cfg, log, mongoRepo, m)
	if err != nil {
		log.Fatal("Failed to open order ledger", zap.Error(err))
	}
	defer closeLedger()

	mailer, err := notify.NewDispatcher(notify.NewMailer(cfg.Mail, log), cfg.Mail.Timeout, log)
	if err != nil {
		log.Fatal("Failed to start mail dispatcher", zap.Error(err))
	}
	defer mailer.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret is required")
	}
	authSvc := auth.NewService(
		mongoRepo.Users(),
		mailer,
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		cfg.Auth.OTPTTL,
		log.Named("auth"),
	)

	llm, err := recommend.NewOpenAICompleter(cfg.LLM.BaseURL, cfg.LLM.Token, cfg.LLM.Model)
	if err != nil {
		log.Fatal("Failed to create LLM client", zap.Error(err))
	}
	recommender := recommend.NewGateway(llm, menu, recommend.Options{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, log.Named("recommend"))
	recommender.SetObserver(m)

	gw := gateway.NewGateway(cfg, log, gateway.Deps{
		Ledger:      orders,
		Auth:        authSvc,
		Recommender: recommender,
		Menu:        menu,
		Metrics:     m,
		Checks: map[string]gateway.HealthCheck{
			"mongodb": mongoRepo.Ping,
			"redis":   redisRepo.Ping,
		},
	})
	gw.SetupRoutes()

	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	log.Info("Gateway started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-gwErr:
		log.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Gateway shutdown failed", zap.Error(err))
	}

	log.Info("Gateway stopped")
}

// openLedger returns the in-process ledger over the configured store, or a
// client for the remote order service.
func openLedger(ctx context.Context, cfg *config.Config, log *zap.Logger, mongoRepo *repository.MongoRepository, m *metrics.Metrics) (ledger.Ledger, func(), error) {
	if cfg.Ledger.Mode == "remote" {
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, log)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		}
		clients := grpc.NewClientManager(cfg, log, sd)
		if err := clients.Connect(ctx); err != nil {
			return nil, nil, err
		}
		return clients.Ledger(), func() {
			_ = clients.Close()
			if sd != nil {
				_ = sd.Close()
			}
		}, nil
	}

	store, closeStore, err := repository.OpenOrderStore(cfg, mongoRepo)
	if err != nil {
		return nil, nil, err
	}
	audit := repository.NewAuditRecorder(mongoRepo, "gateway", log)
	svc := ledger.NewService(store, ledger.WithRecorder(ledger.Recorders{m, audit}))
	return svc, func() {
		audit.Wait()
		closeStore()
	}, nil
}
