package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/selection"
)

// MockCatalogService はCatalogServiceInterfaceのモック
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListMusicals(ctx context.Context) ([]*catalog.Musical, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Musical), args.Error(1)
}

func (m *MockCatalogService) GetMusical(ctx context.Context, name string) (*catalog.Musical, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Musical), args.Error(1)
}

func (m *MockCatalogService) GetVenues(ctx context.Context, musicalName string) ([]*catalog.Venue, error) {
	args := m.Called(ctx, musicalName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Venue), args.Error(1)
}

func (m *MockCatalogService) ShowTimes(ctx context.Context, musicalName string, date time.Time) ([]seat.ShowTime, error) {
	args := m.Called(ctx, musicalName, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]seat.ShowTime), args.Error(1)
}

// MockInventoryService はInventoryServiceInterfaceのモック
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) SeatMap(ctx context.Context, musicalName string, venueID int64, date time.Time, showTime seat.ShowTime) (*application.SeatMap, error) {
	args := m.Called(ctx, musicalName, venueID, date, showTime)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.SeatMap), args.Error(1)
}

// MockSelectionService はSelectionServiceInterfaceのモック
type MockSelectionService struct {
	mock.Mock
}

func (m *MockSelectionService) Start(ctx context.Context, input application.StartSelectionInput) (*selection.Session, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*selection.Session), args.Error(1)
}

func (m *MockSelectionService) Current(customerID string) (*selection.Session, error) {
	args := m.Called(customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*selection.Session), args.Error(1)
}

func (m *MockSelectionService) Toggle(ctx context.Context, customerID string, sectionID int64, number int) (bool, selection.View, error) {
	args := m.Called(ctx, customerID, sectionID, number)
	return args.Bool(0), args.Get(1).(selection.View), args.Error(2)
}

func (m *MockSelectionService) Abandon(customerID string) error {
	args := m.Called(customerID)
	return args.Error(0)
}

func (m *MockSelectionService) Commit(ctx context.Context, customerID string, items []booking.LineItem) (*application.CommitResult, error) {
	args := m.Called(ctx, customerID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CommitResult), args.Error(1)
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Commit(ctx context.Context, input application.CommitInput) (*application.CommitResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.CommitResult), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Record), args.Error(1)
}

func (m *MockBookingService) CustomerBookings(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Record), args.Error(1)
}

var (
	_ CatalogServiceInterface   = (*MockCatalogService)(nil)
	_ InventoryServiceInterface = (*MockInventoryService)(nil)
	_ SelectionServiceInterface = (*MockSelectionService)(nil)
	_ BookingServiceInterface   = (*MockBookingService)(nil)
)

// assertHTTPError はハンドラーが返したエラーのステータスと種類を検証する
func assertHTTPError(t *testing.T, err error, status int, reason string) {
	t.Helper()
	require.Error(t, err)
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "echo.HTTPError ではありません: %v", err)
	assert.Equal(t, status, he.Code)
	resp, ok := he.Message.(api.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, reason, resp.Reason)
}
