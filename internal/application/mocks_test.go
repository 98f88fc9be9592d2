package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-musical-box-office/internal/infrastructure/redis"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockCatalogRepository implements catalog.Repository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetMusicalByName(ctx context.Context, name string) (*catalog.Musical, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Musical), args.Error(1)
}

func (m *MockCatalogRepository) GetMusicalByID(ctx context.Context, id int64) (*catalog.Musical, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Musical), args.Error(1)
}

func (m *MockCatalogRepository) ListMusicals(ctx context.Context) ([]*catalog.Musical, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Musical), args.Error(1)
}

func (m *MockCatalogRepository) GetVenuesForMusical(ctx context.Context, name string) ([]*catalog.Venue, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Venue), args.Error(1)
}

func (m *MockCatalogRepository) GetVenueSections(ctx context.Context, venueID int64) ([]catalog.Section, error) {
	args := m.Called(ctx, venueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Section), args.Error(1)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) BookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockBookingRepository) CreateRecord(ctx context.Context, tx transaction.Tx, r *booking.Record) error {
	args := m.Called(ctx, tx, r)
	return args.Error(0)
}

func (m *MockBookingRepository) CreateAllocations(ctx context.Context, tx transaction.Tx, a []booking.Allocation) error {
	args := m.Called(ctx, tx, a)
	return args.Error(0)
}

func (m *MockBookingRepository) DecrementAvailableTickets(ctx context.Context, tx transaction.Tx, musicalID int64, quantity int) error {
	args := m.Called(ctx, tx, musicalID, quantity)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Record), args.Error(1)
}

func (m *MockBookingRepository) GetByCustomerID(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Record), args.Error(1)
}

func (m *MockBookingRepository) CountAllocationsByMusical(ctx context.Context) (map[int64]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int), args.Error(1)
}

// MockRevenueRepository implements booking.RevenueRepository
type MockRevenueRepository struct {
	mock.Mock
}

func (m *MockRevenueRepository) Append(ctx context.Context, tx transaction.Tx, e *booking.RevenueEntry) error {
	args := m.Called(ctx, tx, e)
	return args.Error(0)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireAll(ctx context.Context, keys []string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, keys, ttl, maxRetries, retryDelay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// MockSeatCache implements redisinfra.SeatCacheInterface
type MockSeatCache struct {
	mock.Mock
}

func (m *MockSeatCache) GetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery) ([]int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockSeatCache) Generation(ctx context.Context, q booking.BookedSeatsQuery) (int64, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSeatCache) SetBookedSeats(ctx context.Context, q booking.BookedSeatsQuery, numbers []int, generation int64, ttl time.Duration) error {
	args := m.Called(ctx, q, numbers, generation, ttl)
	return args.Error(0)
}

func (m *MockSeatCache) Invalidate(ctx context.Context, queries ...booking.BookedSeatsQuery) error {
	args := m.Called(ctx, queries)
	return args.Error(0)
}

// recordingSink はレシートを記録するだけの出力先
type recordingSink struct {
	mu       sync.Mutex
	err      error
	receipts map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{receipts: make(map[string]string)}
}

func (s *recordingSink) Export(ctx context.Context, bookingID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.receipts[bookingID] = text
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

var (
	_ transaction.Manager             = (*MockTxManager)(nil)
	_ catalog.Repository              = (*MockCatalogRepository)(nil)
	_ booking.Repository              = (*MockBookingRepository)(nil)
	_ booking.RevenueRepository       = (*MockRevenueRepository)(nil)
	_ redisinfra.LockManagerInterface = (*MockLockManager)(nil)
	_ redisinfra.SeatCacheInterface   = (*MockSeatCache)(nil)
	_ booking.ReceiptSink             = (*recordingSink)(nil)
)
