package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/infrastructure/memory"
	redisinfra "github.com/sanosuguru/go-musical-box-office/internal/infrastructure/redis"
)

var (
	// 2026-10-19 は月曜日、2026-10-18 は日曜日
	monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	sunday = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	matinee = seat.ShowTimeAt(13, 15)
)

type testEnv struct {
	store     *memory.Store
	sink      *recordingSink
	catalog   *CatalogService
	inventory *InventoryService
	bookings  *BookingService
	selection *SelectionService
}

// setupTestEnv はデモカタログを投入したインメモリ環境を作成する
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithCache(t, nil)
}

// setupTestEnvWithCache は表示用キャッシュ付きの環境を作成する
func setupTestEnvWithCache(t *testing.T, cache redisinfra.SeatCacheInterface) *testEnv {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, catalog.SeedDemo(context.Background(), store))

	sink := newRecordingSink()
	cs := NewCatalogService(store)
	inv := NewInventoryService(cs, store, cache, 0)
	bs := NewBookingService(store, store, store, store, inv, nil, sink, DefaultBookingOptions())
	return &testEnv{
		store:     store,
		sink:      sink,
		catalog:   cs,
		inventory: inv,
		bookings:  bs,
		selection: NewSelectionService(cs, inv, bs),
	}
}

// venue は会場名から会場を探す
func (e *testEnv) venue(t *testing.T, musical, name string) *catalog.Venue {
	t.Helper()
	venues, err := e.catalog.GetVenues(context.Background(), musical)
	require.NoError(t, err)
	for _, v := range venues {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("会場 %s が見つかりません", name)
	return nil
}

// section はセクション名からセクションを探す
func section(t *testing.T, v *catalog.Venue, name string) catalog.Section {
	t.Helper()
	for _, s := range v.Sections {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("セクション %s が見つかりません", name)
	return catalog.Section{}
}

func seatRef(t *testing.T, s catalog.Section, number int) seat.Ref {
	t.Helper()
	ref, err := s.Seat(number)
	require.NoError(t, err)
	return ref
}

// wickedStalls は Wicked の Apollo Victoria Theatre の Stalls（10席, £80）を返す
func (e *testEnv) wickedStalls(t *testing.T) (*catalog.Venue, catalog.Section) {
	t.Helper()
	v := e.venue(t, "Wicked", "Apollo Victoria Theatre")
	return v, section(t, v, "Stalls")
}

func (e *testEnv) availableTickets(t *testing.T, musical string) int {
	t.Helper()
	m, err := e.catalog.GetMusical(context.Background(), musical)
	require.NoError(t, err)
	return m.AvailableTickets
}
