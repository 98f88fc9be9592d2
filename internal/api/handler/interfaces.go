package handler

import (
	"context"
	"time"

	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/selection"
)

// CatalogServiceInterface はカタログサービスのインターフェース
type CatalogServiceInterface interface {
	ListMusicals(ctx context.Context) ([]*catalog.Musical, error)
	GetMusical(ctx context.Context, name string) (*catalog.Musical, error)
	GetVenues(ctx context.Context, musicalName string) ([]*catalog.Venue, error)
	ShowTimes(ctx context.Context, musicalName string, date time.Time) ([]seat.ShowTime, error)
}

// InventoryServiceInterface は空席照会サービスのインターフェース
type InventoryServiceInterface interface {
	SeatMap(ctx context.Context, musicalName string, venueID int64, date time.Time, showTime seat.ShowTime) (*application.SeatMap, error)
}

// SelectionServiceInterface は座席選択サービスのインターフェース
type SelectionServiceInterface interface {
	Start(ctx context.Context, input application.StartSelectionInput) (*selection.Session, error)
	Current(customerID string) (*selection.Session, error)
	Toggle(ctx context.Context, customerID string, sectionID int64, number int) (bool, selection.View, error)
	Abandon(customerID string) error
	Commit(ctx context.Context, customerID string, items []booking.LineItem) (*application.CommitResult, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	Commit(ctx context.Context, input application.CommitInput) (*application.CommitResult, error)
	GetBooking(ctx context.Context, id string) (*booking.Record, error)
	CustomerBookings(ctx context.Context, q booking.HistoryQuery) ([]*booking.Record, error)
}

var (
	_ CatalogServiceInterface   = (*application.CatalogService)(nil)
	_ InventoryServiceInterface = (*application.InventoryService)(nil)
	_ SelectionServiceInterface = (*application.SelectionService)(nil)
	_ BookingServiceInterface   = (*application.BookingService)(nil)
)
