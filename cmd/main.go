package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"omnitip-relay/internal/auth"
	"omnitip-relay/internal/blockchain"
	"omnitip-relay/internal/config"
	"omnitip-relay/internal/dedup"
	"omnitip-relay/internal/handler"
	"omnitip-relay/internal/repository"
	"omnitip-relay/internal/scheduler"
	"omnitip-relay/internal/sentiment"
	"omnitip-relay/internal/service"
	"omnitip-relay/internal/whatsapp"
	"omnitip-relay/pkg/logger"
)

func main() {
	config.LoadEnvFiles(".env.local", ".env")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := repository.Open(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer repository.Close(db)

	tipRepo := repository.NewTipRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	eventRepo := repository.NewEventRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sides := cfg.Match.Sides()

	var client *blockchain.Client
	if cfg.Ledger.Configured() {
		client, err = blockchain.NewClient(&cfg.Ledger)
		if err != nil {
			logger.Error("Failed to create ledger client, tips will only be recorded locally:", err)
		} else {
			defer client.Close()
		}
	} else {
		logger.Warn("Ledger contract not configured, tips will only be recorded locally")
	}
	oracle := blockchain.NewOracle(&cfg.Ledger, sides, client)

	var signer *blockchain.Signer
	if cfg.Ledger.PrivateKey != "" {
		signer, err = blockchain.NewSigner(cfg.Ledger.PrivateKey, cfg.Ledger.ChainID)
		if err != nil {
			logger.Fatal("Invalid operator key:", err)
		}
		logger.WithFields(logrus.Fields{
			"operator": signer.Address().Hex(),
			"chain_id": cfg.Ledger.ChainID,
		}).Info("Operator signer loaded")
	}

	hub := handler.NewTipHub()
	defer hub.Close()

	opts := []service.IngestorOption{service.WithNotifier(hub)}
	if cfg.Redis.Enabled {
		deduplicator := dedup.NewRedisDeduplicator(&cfg.Redis)
		defer deduplicator.Close()
		if err := deduplicator.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, delivery dedup is best effort:", err)
		}
		opts = append(opts, service.WithDeduplicator(deduplicator))
	}

	classifier := sentiment.New(cfg.Match.SideA.Keywords)
	ingestor := service.NewIngestor(oracle, signer, tipRepo, classifier, cfg.Wallet.Salt, opts...)
	settlement := service.NewSettlementService(oracle, signer)
	dashboard := service.NewDashboardService(oracle, tipRepo, eventRepo, snapshotRepo)

	if cfg.Snapshot.Enabled {
		snapshots := scheduler.NewSnapshotScheduler(dashboard, &cfg.Snapshot)
		if err := snapshots.Start(); err != nil {
			logger.Fatal("Failed to start scheduler:", err)
		}
		defer snapshots.Stop()
	}

	if cfg.Listener.Enabled && client != nil {
		listener := blockchain.NewEventListener(&cfg.Listener, cfg.Ledger.ContractAddress, client, blockRepo, eventRepo)
		defer listener.Stop()
		go listener.Start(ctx)
		logger.WithFields(logrus.Fields{
			"contract":    cfg.Ledger.ContractAddress,
			"start_block": cfg.Listener.StartBlock,
		}).Info("启动链监听器")
	}

	adminAuth, err := auth.NewAdminAuth(&cfg.Admin)
	if err != nil {
		logger.Fatal("Failed to init admin auth:", err)
	}
	if !adminAuth.Enabled() {
		logger.Warn("Admin password not set, goal submission is disabled")
	}

	transcriptionTimeout := time.Duration(cfg.Transcription.Timeout) * time.Second
	resolver := whatsapp.NewResolver(
		whatsapp.NewMediaClient(&cfg.WhatsApp, transcriptionTimeout),
		whatsapp.NewTranscriber(&cfg.Transcription),
	)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.Handlers{
		Health:    handler.NewHealthHandler(oracle.Configured(), sides),
		Webhook:   handler.NewWebhookHandler(cfg.WhatsApp.VerifyToken, ingestor, resolver),
		Dashboard: handler.NewDashboardHandler(dashboard),
		Admin:     handler.NewAdminHandler(adminAuth, settlement),
		Hub:       hub,
	}, cfg.Server.CORSEnabled)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":             cfg.Server.Port,
			"webhook":          fmt.Sprintf("http://localhost:%d/webhook", cfg.Server.Port),
			"ledgerConfigured": oracle.Configured(),
			"sides":            sides,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}
