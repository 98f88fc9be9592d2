package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

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
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo        *echo.Echo
	ReceiptPath string
	Cleanup     func()
}

type backend struct {
	txm     transaction.Manager
	catalog catalog.Repository
	ledger  booking.Repository
	revenue booking.RevenueRepository
	lock    redisinfra.LockManagerInterface
	cache   redisinfra.SeatCacheInterface
	cleanup func()
}

// newServer はバックエンドからAPIサーバーを組み立てる
func newServer(t *testing.T, b backend) *TestServer {
	t.Helper()
	receiptPath := filepath.Join(t.TempDir(), "receipt.txt")

	catalogService := application.NewCatalogService(b.catalog)
	inventoryService := application.NewInventoryService(catalogService, b.ledger, b.cache, 0)
	bookingService := application.NewBookingService(
		b.txm, b.catalog, b.ledger, b.revenue, inventoryService, b.lock,
		receipt.NewMultiSink(receipt.NewFileSink(receiptPath)),
		application.BookingOptions{},
	)
	selectionService := application.NewSelectionService(catalogService, inventoryService, bookingService)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e)
	handler.RegisterRoutes(e, handler.Handlers{
		Health:  handler.NewHealthHandler(),
		Catalog: handler.NewCatalogHandler(catalogService, inventoryService),
		Session: handler.NewSessionHandler(selectionService),
		Booking: handler.NewBookingHandler(bookingService),
	})

	return &TestServer{Echo: e, ReceiptPath: receiptPath, Cleanup: b.cleanup}
}

// newMemoryServer はインメモリストアのサーバーを作成する
func newMemoryServer(t *testing.T) *TestServer {
	t.Helper()
	store := memory.NewStore()
	if err := catalog.SeedDemo(context.Background(), store); err != nil {
		t.Fatalf("デモデータ投入エラー: %v", err)
	}
	return newServer(t, backend{
		txm: store, catalog: store, ledger: store, revenue: store,
		cleanup: func() {},
	})
}

// newPostgresServer は PostgreSQL と Redis を使うサーバーを作成する
// どちらかが起動していなければスキップする
func newPostgresServer(t *testing.T) *TestServer {
	t.Helper()
	if os.Getenv("E2E_POSTGRES") == "" {
		t.Skip("E2E_POSTGRES が未設定のためスキップ")
	}
	cfg := config.Load()

	db, err := postgres.NewConnection(context.Background(), &cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	if err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
		db.Close()
		t.Skipf("マイグレーションエラー: %v", err)
	}
	redisClient, err := redisinfra.NewClient(redisinfra.ConfigFrom(&cfg.Redis))
	if err != nil {
		db.Close()
		t.Skipf("Redis接続エラー: %v", err)
	}

	cleanupTables(db, redisClient)
	catalogRepo := postgres.NewCatalogRepository(db)
	if err := catalog.SeedDemo(context.Background(), catalogRepo); err != nil {
		t.Fatalf("デモデータ投入エラー: %v", err)
	}

	return newServer(t, backend{
		txm:     postgres.NewTxManager(db),
		catalog: catalogRepo,
		ledger:  postgres.NewBookingRepository(db),
		revenue: postgres.NewRevenueRepository(db),
		lock:    redisinfra.NewLockManager(redisClient),
		cache:   redisinfra.NewSeatCache(redisClient),
		cleanup: func() {
			cleanupTables(db, redisClient)
			redisClient.Close()
			db.Close()
		},
	})
}

// cleanupTables はテーブルとキャッシュをクリーンアップ
func cleanupTables(db *sqlx.DB, rc *redis.Client) {
	db.Exec("TRUNCATE TABLE income_data, booked_seats, receipts, musical_venues, sections, venues, musicals RESTART IDENTITY CASCADE")
	rc.FlushDB(context.Background())
}

// forEachBackend は利用可能なバックエンドごとにテストを実行する
func forEachBackend(t *testing.T, fn func(t *testing.T, s *TestServer)) {
	backends := []struct {
		name string
		new  func(t *testing.T) *TestServer
	}{
		{"memory", newMemoryServer},
		{"postgres", newPostgresServer},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.new(t)
			defer s.Cleanup()
			fn(t, s)
		})
	}
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func asUser(id string) map[string]string {
	return map[string]string{middleware.HeaderCustomerID: id}
}
