package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/rl1809/cartstore/internal/adapter/handler"
	"github.com/rl1809/cartstore/internal/adapter/inventory"
	"github.com/rl1809/cartstore/internal/adapter/notifier"
	"github.com/rl1809/cartstore/internal/adapter/storage"
	"github.com/rl1809/cartstore/internal/config"
	"github.com/rl1809/cartstore/internal/core/service"
	"github.com/rl1809/cartstore/internal/logger"
	"github.com/rl1809/cartstore/internal/port"
)

const serviceName = "cartstore"

type snapshotStore interface {
	port.SnapshotRepository
	port.Pinger
}

type inventoryBackend interface {
	port.InventoryService
	port.Pinger
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so the deferred closers always run.
func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Options{Service: serviceName, Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				lg.Warn("close failed", zap.Error(err))
			}
		}
		lg.Info("connections closed")
	}()

	// Snapshot store
	var snapshots snapshotStore
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 10,
		})
		closers = append(closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect redis at %s: %w", cfg.RedisAddr, err)
		}
		snapshots = storage.NewRedisAdapter(rdb)
		lg.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	default:
		snapshots = storage.NewMemoryAdapter()
		lg.Warn("using in-memory snapshot store, the cart will not survive a restart")
	}

	// Inventory
	var inv inventoryBackend
	switch cfg.InventoryBackend {
	case config.InventoryBackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return fmt.Errorf("failed to open mysql: %w", err)
		}
		closers = append(closers, db.Close)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping mysql: %w", err)
		}
		inv = storage.NewMySQLAdapter(db)
		lg.Info("connected to mysql inventory")
	default:
		inv = inventory.NewHTTPClient(cfg.InventoryURL, cfg.InventoryTimeout)
		lg.Info("using http inventory", zap.String("url", cfg.InventoryURL))
	}

	// Notices
	notices := notifier.Fanout{notifier.NewLogNotifier(lg)}
	if len(cfg.KafkaBrokers) > 0 {
		writer := notifier.NewKafkaWriter(cfg.KafkaBrokers, cfg.NoticeTopic, lg)
		closers = append(closers, writer.Close)
		notices = append(notices, notifier.NewKafkaNotifier(writer, lg))
		lg.Info("publishing notices to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.NoticeTopic))
	}

	cartService := service.NewCartService(ctx, inv, snapshots, notices,
		service.WithSnapshotKey(cfg.SnapshotKey),
		service.WithLogger(lg),
	)

	// gRPC health
	grpcServer := grpc.NewServer()
	healthHandler := handler.NewHealthHandler(map[string]port.Pinger{
		"snapshots": snapshots,
		"inventory": inv,
	}, lg)
	healthHandler.Register(grpcServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	// HTTP
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.NewHTTPHandler(cartService, lg).RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		healthHandler.Run(gctx, cfg.HealthInterval)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Warn("HTTP shutdown", zap.Error(err))
		}
		lg.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		lg.Info("gRPC server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		lg.Error("server exited with error", zap.Error(err))
		return err
	}
	return nil
}
