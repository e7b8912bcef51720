package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/config"
	"github.com/altave/settlement-service/internal/commission"
	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/platform/broker"
	"github.com/altave/settlement-service/internal/platform/cache"
	"github.com/altave/settlement-service/internal/platform/logger"
	"github.com/altave/settlement-service/internal/platform/postgres"

	prodH "github.com/altave/settlement-service/internal/product/handler"
	prodRepoPkg "github.com/altave/settlement-service/internal/product/repository"
	prodUCPkg "github.com/altave/settlement-service/internal/product/usecase"
	sellerRepoPkg "github.com/altave/settlement-service/internal/seller/repository"
	sellerUCPkg "github.com/altave/settlement-service/internal/seller/usecase"
	stlH "github.com/altave/settlement-service/internal/settlement/handler"
	stlRepoPkg "github.com/altave/settlement-service/internal/settlement/repository"
	stlUCPkg "github.com/altave/settlement-service/internal/settlement/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger, err := logger.New(logger.Config{
		Level:             cfg.Logger.Level,
		Encoding:          cfg.Logger.Encoding,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := postgres.New(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("could not connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.EnsureSchema(db); err != nil {
		appLogger.Fatal("could not ensure schema", zap.Error(err))
	}
	appLogger.Info("connected to PostgreSQL", zap.String("db_name", cfg.Postgres.DBName))

	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("could not connect to Redis, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLogger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var events broker.Publisher
	if cfg.Kafka.Enabled {
		kp := broker.NewKafkaPublisher(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer kp.Close()
		events = kp
		appLogger.Info("kafka publisher ready",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	prodRepo := prodRepoPkg.NewPGRepository(db)
	sellerRepo := sellerRepoPkg.NewPGRepository(db)
	stlRepo := stlRepoPkg.NewPGRepository(db)

	calc := commission.NewCalculator(cfg.Settlement.CommissionRates)
	gw := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey)

	opts := stlUCPkg.Options{
		ChargeTimeout:     cfg.Gateway.ChargeTimeout,
		PayoutTimeout:     cfg.Gateway.PayoutTimeout,
		EscrowAutoRelease: cfg.Settlement.EscrowAutoRelease,
		SweepInterval:     cfg.Settlement.SweepInterval,
	}
	stlUC := stlUCPkg.NewSettlementUseCase(stlRepo, prodRepo, sellerRepo, calc, gw, events, redisClient, opts, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := stlUCPkg.NewSweeper(stlRepo, stlUC, gw, sellerRepo, redisClient, opts, appLogger)
	go sweeper.Start(ctx)

	maintainer := sellerUCPkg.NewMaintainer(sellerRepo, cfg.Settlement.ListingRecount, appLogger)
	go maintainer.Start(ctx)

	prodUC := prodUCPkg.NewProductUseCase(prodRepo, sellerRepo, redisClient, appLogger)

	app := fiber.New()
	stlHandler := stlH.NewSettlementHandler(stlUC, appLogger)
	stlHandler.Register(app)
	prodHandler := prodH.NewProductHandler(prodUC, appLogger)
	prodHandler.Register(app)

	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	go func() {
		appLogger.Info("starting HTTP server", zap.String("port", port))
		if err := app.Listen(port); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("shutdown error", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
