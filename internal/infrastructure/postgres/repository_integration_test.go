//go:build integration
// +build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-musical-box-office/internal/config"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	cfg := config.Load()

	db, err := NewConnection(context.Background(), &cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}
	if err := RunMigrations(db.DB, "../../../migrations"); err != nil {
		db.Close()
		t.Skipf("マイグレーションエラー: %v", err)
	}

	cleanup := func() {
		db.Exec("DELETE FROM income_data")
		db.Exec("DELETE FROM booked_seats")
		db.Exec("DELETE FROM receipts")
		db.Exec("DELETE FROM musical_venues")
		db.Exec("DELETE FROM sections")
		db.Exec("DELETE FROM venues")
		db.Exec("DELETE FROM musicals")
		db.Close()
	}
	return db, cleanup
}

func seedWicked(t *testing.T, repo *CatalogRepository) (*catalog.Musical, *catalog.Venue) {
	t.Helper()
	ctx := context.Background()
	m := &catalog.Musical{
		Name: "Wicked " + time.Now().Format("150405.000000"), RunTimeMinutes: 165, BasePrice: 8000,
		TotalTickets: 100, AvailableTickets: 100, Categories: []string{"Fantasy"},
		AvailableDays: []time.Weekday{time.Monday, time.Tuesday},
	}
	require.NoError(t, repo.CreateMusical(ctx, m))

	v := &catalog.Venue{Name: "Apollo Victoria", TotalCapacity: 50}
	require.NoError(t, v.AddSection(catalog.Section{Name: "Stalls", Capacity: 10, BasePrice: 8000}))
	require.NoError(t, repo.CreateVenue(ctx, v))
	require.NoError(t, repo.AddVenueToMusical(ctx, m.ID, v.ID))
	return m, v
}

func TestCatalogRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	m, v := seedWicked(t, repo)

	t.Run("名前で大文字小文字を区別せずに取得できる", func(t *testing.T) {
		got, err := repo.GetMusicalByName(ctx, " "+m.Name+" ")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, got.AvailableDays)
		assert.Equal(t, []string{"Fantasy"}, got.Categories)
	})

	t.Run("存在しない作品はErrMusicalNotFound", func(t *testing.T) {
		_, err := repo.GetMusicalByName(ctx, "存在しない作品")
		assert.ErrorIs(t, err, catalog.ErrMusicalNotFound)
	})

	t.Run("上演会場をセクション付きで取得できる", func(t *testing.T) {
		venues, err := repo.GetVenuesForMusical(ctx, m.Name)
		require.NoError(t, err)
		require.Len(t, venues, 1)
		assert.Equal(t, v.ID, venues[0].ID)
		require.Len(t, venues[0].Sections, 1)
		assert.Equal(t, "Stalls", venues[0].Sections[0].Name)
		assert.Equal(t, pricing.Amount(8000), venues[0].Sections[0].BasePrice)
	})
}

func TestBookingRepository_CommitUnit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	catalogRepo := NewCatalogRepository(db)
	bookingRepo := NewBookingRepository(db)
	revenueRepo := NewRevenueRepository(db)
	txManager := NewTxManager(db)
	ctx := context.Background()

	m, v := seedWicked(t, catalogRepo)
	section := v.Sections[0]
	date := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	showTime := seat.ShowTimeAt(19, 30)

	newAllocation := func(bookingID string, number int) booking.Allocation {
		return booking.Allocation{
			BookingID: bookingID, MusicalID: m.ID, VenueID: v.ID, SectionID: section.ID,
			SeatNumber: number, SeatLabel: fmt.Sprintf("Stalls%d", number), ShowDate: date, ShowTime: showTime,
			TicketType: pricing.Adult, Price: 8000,
		}
	}

	t.Run("同一トランザクションで書き込める", func(t *testing.T) {
		rec := booking.NewRecord("user-1", m.ID, date, showTime)
		rec.TotalPrice = 16000

		tx, err := txManager.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, bookingRepo.CreateRecord(ctx, tx, rec))
		require.NoError(t, bookingRepo.CreateAllocations(ctx, tx, []booking.Allocation{newAllocation(rec.ID, 1), newAllocation(rec.ID, 2)}))
		require.NoError(t, revenueRepo.Append(ctx, tx, &booking.RevenueEntry{
			BookingID: rec.ID, Amount: 16000, TransactionDate: time.Now(), Category: booking.RevenueCategoryTicketSales,
		}))
		require.NoError(t, bookingRepo.DecrementAvailableTickets(ctx, tx, m.ID, 2))
		require.NoError(t, tx.Commit())

		numbers, err := bookingRepo.BookedSeats(ctx, booking.BookedSeatsQuery{
			MusicalID: m.ID, VenueID: v.ID, SectionID: section.ID, ShowDate: date, ShowTime: showTime,
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, numbers)

		got, err := bookingRepo.GetByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Len(t, got.Seats, 2)
		assert.Equal(t, pricing.Amount(16000), got.TotalPrice)

		musical, err := catalogRepo.GetMusicalByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, 98, musical.AvailableTickets)
	})

	t.Run("秒付きの時刻は前方一致で照合される", func(t *testing.T) {
		numbers, err := bookingRepo.BookedSeats(ctx, booking.BookedSeatsQuery{
			MusicalID: m.ID, VenueID: v.ID, SectionID: section.ID, ShowDate: date, ShowTime: seat.ShowTime("19:30:00"),
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, numbers)
	})

	t.Run("同じ座席の二重割り当ては一意性制約で失敗する", func(t *testing.T) {
		const workers = 5
		var wg sync.WaitGroup
		var success, conflict int32

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				rec := booking.NewRecord("race", m.ID, date, showTime)
				tx, err := txManager.Begin(ctx)
				if err != nil {
					return
				}
				defer tx.Rollback()
				if err := bookingRepo.CreateRecord(ctx, tx, rec); err != nil {
					return
				}
				if err := bookingRepo.CreateAllocations(ctx, tx, []booking.Allocation{newAllocation(rec.ID, 7)}); err != nil {
					if assert.ErrorIs(t, err, booking.ErrSeatAlreadyAllocated) {
						atomic.AddInt32(&conflict, 1)
					}
					return
				}
				if tx.Commit() == nil {
					atomic.AddInt32(&success, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), success)
		assert.Equal(t, int32(workers-1), conflict)
	})

	t.Run("残数不足ならErrInsufficientInventory", func(t *testing.T) {
		tx, err := txManager.Begin(ctx)
		require.NoError(t, err)
		defer tx.Rollback()
		err = bookingRepo.DecrementAvailableTickets(ctx, tx, m.ID, 1000)
		assert.ErrorIs(t, err, booking.ErrInsufficientInventory)
	})

	t.Run("ロールバックすると何も残らない", func(t *testing.T) {
		rec := booking.NewRecord("rollback", m.ID, date, showTime)
		tx, err := txManager.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, bookingRepo.CreateRecord(ctx, tx, rec))
		require.NoError(t, tx.Rollback())

		_, err = bookingRepo.GetByID(ctx, rec.ID)
		assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	})

	t.Run("割り当て数をミュージカルごとに数える", func(t *testing.T) {
		counts, err := bookingRepo.CountAllocationsByMusical(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[m.ID])
	})

	t.Run("顧客の履歴を公演日の範囲で絞り込める", func(t *testing.T) {
		later := booking.NewRecord("user-1", m.ID, date.AddDate(0, 0, 7), showTime)
		tx, err := txManager.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, bookingRepo.CreateRecord(ctx, tx, later))
		require.NoError(t, tx.Commit())

		tests := []struct {
			name     string
			from, to time.Time
			want     int
		}{
			{"範囲指定なし", time.Time{}, time.Time{}, 2},
			{"両端を含む", date, date.AddDate(0, 0, 7), 2},
			{"下限のみ", date.AddDate(0, 0, 1), time.Time{}, 1},
			{"上限のみ", time.Time{}, date, 1},
			{"範囲外", date.AddDate(0, 0, 1), date.AddDate(0, 0, 6), 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := bookingRepo.GetByCustomerID(ctx, booking.HistoryQuery{
					CustomerID: "user-1", From: tt.from, To: tt.to, Limit: 10,
				})
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
			})
		}
	})
}
