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

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/api/handler"
	"github.com/sanosuguru/go-musical-box-office/internal/api/middleware"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/config"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
	"github.com/sanosuguru/go-musical-box-office/internal/infrastructure/memory"
	"github.com/sanosuguru/go-musical-box-office/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-musical-box-office/internal/infrastructure/receipt"
	redisinfra "github.com/sanosuguru/go-musical-box-office/internal/infrastructure/redis"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/metrics"
	"github.com/sanosuguru/go-musical-box-office/internal/worker"
)

// storage は選択したバックエンドのリポジトリ群
type storage struct {
	txManager   transaction.Manager
	catalogRepo catalog.Repository
	bookingRepo booking.Repository
	revenueRepo booking.RevenueRepository
	ping        handler.PingFunc
	close       func()
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("起動に失敗しました", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	m := metrics.Init()
	ctx := context.Background()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// Redis は任意。接続できなければロックとキャッシュなしで動かす
	var (
		lockManager redisinfra.LockManagerInterface
		seatCache   redisinfra.SeatCacheInterface
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisinfra.NewClient(redisinfra.ConfigFrom(&cfg.Redis))
		if err != nil {
			logger.Warn("Redisに接続できないためロックとキャッシュを無効にします", zap.Error(err))
		} else {
			defer redisClient.Close()
			lockManager = redisinfra.NewLockManager(redisClient)
			seatCache = redisinfra.NewSeatCache(redisClient)
		}
	}

	sink := newReceiptSink(cfg.Receipt)

	catalogService := application.NewCatalogService(store.catalogRepo)
	inventoryService := application.NewInventoryService(catalogService, store.bookingRepo, seatCache, cfg.Booking.SeatCacheTTL)
	bookingService := application.NewBookingService(
		store.txManager, store.catalogRepo, store.bookingRepo, store.revenueRepo,
		inventoryService, lockManager, sink,
		application.BookingOptions{
			LockTTL:            cfg.Booking.LockTTL,
			LockRetries:        cfg.Booking.LockRetries,
			LockRetryInterval:  cfg.Booking.LockRetryInterval,
			HistoryDefaultSize: cfg.Booking.HistoryDefaultSize,
		},
	)
	selectionService := application.NewSelectionService(catalogService, inventoryService, bookingService)

	health := handler.NewHealthHandler().WithCheck(cfg.App.Storage, store.ping)
	if redisClient != nil {
		health.WithCheck("redis", func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) })
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e)
	e.Use(middleware.PrometheusMiddleware(m))

	handler.RegisterRoutes(e, handler.Handlers{
		Health:  health,
		Catalog: handler.NewCatalogHandler(catalogService, inventoryService),
		Session: handler.NewSessionHandler(selectionService),
		Booking: handler.NewBookingHandler(bookingService),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	// 残数カウンタの監査
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	auditor := worker.NewInventoryAuditor(bookingService, cfg.Booking.AuditInterval)
	go auditor.Start(workerCtx)

	// Graceful shutdown
	go func() {
		logger.Info("サーバー起動", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.App.Storage))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")
	auditor.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

// openStorage は設定に応じて PostgreSQL かインメモリのストアを開く
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.App.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		if err := catalog.SeedDemo(ctx, store); err != nil {
			return nil, fmt.Errorf("デモデータ投入エラー: %w", err)
		}
		logger.Info("インメモリストアを使用します")
		return &storage{
			txManager:   store,
			catalogRepo: store,
			bookingRepo: store,
			revenueRepo: store,
			ping:        func(context.Context) error { return nil },
			close:       func() {},
		}, nil

	case config.StoragePostgres:
		db, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(db.DB, cfg.App.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
		catalogRepo := postgres.NewCatalogRepository(db)
		if cfg.App.SeedDemoData {
			if err := seedIfEmpty(ctx, catalogRepo); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &storage{
			txManager:   postgres.NewTxManager(db),
			catalogRepo: catalogRepo,
			bookingRepo: postgres.NewBookingRepository(db),
			revenueRepo: postgres.NewRevenueRepository(db),
			ping:        pingDB(db),
			close:       func() { db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("不明なストレージ: %q", cfg.App.Storage)
}

// seedIfEmpty はカタログが空のときだけデモデータを投入する
func seedIfEmpty(ctx context.Context, repo *postgres.CatalogRepository) error {
	musicals, err := repo.ListMusicals(ctx)
	if err != nil {
		return err
	}
	if len(musicals) > 0 {
		return nil
	}
	logger.Info("デモデータを投入します")
	return catalog.SeedDemo(ctx, repo)
}

func pingDB(db *sqlx.DB) handler.PingFunc {
	return func(ctx context.Context) error { return postgres.Ping(ctx, db) }
}

// newReceiptSink は設定された出力先をまとめる
func newReceiptSink(cfg config.ReceiptConfig) booking.ReceiptSink {
	var sinks []booking.ReceiptSink
	if cfg.FilePath != "" {
		sinks = append(sinks, receipt.NewFileSink(cfg.FilePath))
	}
	if cfg.AMQPURL != "" {
		sinks = append(sinks, receipt.NewAMQPSink(cfg.AMQPURL, cfg.AMQPQueue, nil))
	}
	if len(sinks) == 0 {
		logger.Warn("レシートの出力先が設定されていません")
	}
	return receipt.NewMultiSink(sinks...)
}
