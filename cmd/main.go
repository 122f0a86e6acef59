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

	"go.uber.org/zap"

	"loyalty/scanhub/internal/config"
	"loyalty/scanhub/internal/handler"
	"loyalty/scanhub/internal/model"
	"loyalty/scanhub/internal/repository"
	"loyalty/scanhub/internal/service"
	jwtpkg "loyalty/scanhub/pkg/jwt"
	"loyalty/scanhub/pkg/signature"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize the rate-limit counter store (Redis or in-memory)
	var counterStore repository.CounterStore
	switch cfg.RateLimit.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		counterStore = repository.NewRedisCounterStore(redisClient)
		logger.Info("using Redis rate-limit counters")
	case "memory":
		memStore := repository.NewMemoryCounterStore()
		memStore.StartSweeper(cfg.RateLimit.SweepInterval)
		defer memStore.Stop()
		counterStore = memStore
		logger.Info("using in-memory rate-limit counters (single-instance only)")
	default:
		logger.Fatal("unknown rate-limit backend", zap.String("backend", cfg.RateLimit.Backend))
	}

	// 6. Initialize repositories
	txManager := repository.NewPGTxManager(db)
	codeRepo := repository.NewPGCodeRepository(db)
	scanRepo := repository.NewPGScanRepository(db)
	entityRepo := repository.NewPGEntityRepository(db)
	deviceRepo := repository.NewPGDeviceRepository(db)

	// 7. Initialize the signature engine and JWT manager
	engine := signature.NewEngine(cfg.Codes.SigningSecret, cfg.Codes.SignatureValidityWindow())
	jwtManager := jwtpkg.NewManager(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// 8. Initialize services
	retry := service.DefaultRetryPolicy
	issuer := service.NewIssuer(txManager, codeRepo, engine, logger)
	validator := service.NewValidator(codeRepo, entityRepo, engine, cfg.Codes.RotationInterval(), logger)
	rotation := service.NewRotationManager(txManager, codeRepo, engine, retry, logger)
	limiter := service.NewRateLimiter(counterStore, cfg.RateLimit.Window, cfg.RateLimit.Threshold)
	analytics := service.NewAuditAnalyticsSink(entityRepo)
	dispatcher := service.NewDispatcher(txManager, scanRepo, validator, limiter, analytics, retry, logger)
	awarder := service.NewLedgerAwarder(txManager)
	notifier := service.NewLogNotifier(logger)
	deviceAuth := service.NewDeviceAuth(deviceRepo, jwtManager, logger)

	// 9. Initialize handlers
	scanHandler := handler.NewScanHandler(dispatcher)
	codeHandler := handler.NewCodeHandler(issuer, rotation)
	pointsHandler := handler.NewPointsHandler(awarder, notifier)
	authHandler := handler.NewAuthHandler(deviceAuth)

	// 10. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, scanHandler, codeHandler, pointsHandler, authHandler)

	// 11. Background rotation sweep for codes past the rotation interval
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if interval := cfg.Codes.RotationInterval(); interval > 0 {
		go func() {
			ticker := time.NewTicker(12 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					rotated, err := rotation.RotateDue(sweepCtx, interval, 100)
					if err != nil {
						logger.Warn("rotation sweep failed", zap.Error(err))
						continue
					}
					if rotated > 0 {
						logger.Info("rotation sweep completed", zap.Int("rotated", rotated))
					}
				case <-sweepCtx.Done():
					return
				}
			}
		}()
	}

	// 12. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 13. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
