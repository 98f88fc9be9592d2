package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

func testMusical() *catalog.Musical {
	return &catalog.Musical{
		ID: 1, Name: "Wicked", RunTimeMinutes: 165, Categories: []string{"Fantasy"},
		AgeRestriction: "8+", BasePrice: 8000, TotalTickets: 500, AvailableTickets: 498,
		AvailableDays: []time.Weekday{time.Monday, time.Saturday},
	}
}

func testVenue() *catalog.Venue {
	return &catalog.Venue{
		ID: 10, Name: "Apollo Victoria Theatre", TotalCapacity: 30,
		Sections: []catalog.Section{
			{ID: 100, VenueID: 10, Name: "Stalls", Capacity: 10, BasePrice: 8000},
			{ID: 101, VenueID: 10, Name: "Circle", Capacity: 20, BasePrice: 6000},
		},
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := seat.ParseShowDate(s)
	require.NoError(t, err)
	return d
}

func TestCatalogHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("ミュージカル一覧を返す", func(t *testing.T) {
		cs := new(MockCatalogService)
		cs.On("ListMusicals", mock.Anything).Return([]*catalog.Musical{testMusical()}, nil)
		h := NewCatalogHandler(cs, new(MockInventoryService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals", nil)
		rec := httptest.NewRecorder()
		err := h.List(e.NewContext(req, rec))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []MusicalResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "Wicked", resp[0].Name)
		assert.Equal(t, "£80.00", resp[0].BasePrice.Display)
		assert.Equal(t, int64(8000), resp[0].BasePrice.Pence)
		assert.Equal(t, []string{"Monday", "Saturday"}, resp[0].AvailableDays)
		assert.Equal(t, []string{"10:00", "13:15", "16:30"}, resp[0].ShowTimes)
	})
}

func TestCatalogHandler_Get(t *testing.T) {
	e := NewTestEcho()

	t.Run("空白を含む名前で取得できる", func(t *testing.T) {
		cs := new(MockCatalogService)
		m := testMusical()
		m.Name = "The Lion King"
		cs.On("GetMusical", mock.Anything, "The Lion King").Return(m, nil)
		h := NewCatalogHandler(cs, new(MockInventoryService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals/The%20Lion%20King", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name")
		c.SetParamValues("The%20Lion%20King")

		require.NoError(t, h.Get(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"The Lion King"`)
	})

	t.Run("存在しなければ404", func(t *testing.T) {
		cs := new(MockCatalogService)
		cs.On("GetMusical", mock.Anything, "Cats").Return(nil, catalog.ErrMusicalNotFound)
		h := NewCatalogHandler(cs, new(MockInventoryService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals/Cats", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("name")
		c.SetParamValues("Cats")

		assertHTTPError(t, h.Get(c), http.StatusNotFound, api.ReasonNotFound)
	})
}

func TestCatalogHandler_Venues(t *testing.T) {
	e := NewTestEcho()
	cs := new(MockCatalogService)
	cs.On("GetVenues", mock.Anything, "Wicked").Return([]*catalog.Venue{testVenue()}, nil)
	h := NewCatalogHandler(cs, new(MockInventoryService))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals/Wicked/venues", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("name")
	c.SetParamValues("Wicked")

	require.NoError(t, h.Venues(c))
	var resp []VenueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.Len(t, resp[0].Sections, 2)
	assert.Equal(t, "Circle", resp[0].Sections[1].Name)
	assert.Equal(t, "£60.00", resp[0].Sections[1].BasePrice.Display)
}

func TestCatalogHandler_ShowTimes(t *testing.T) {
	e := NewTestEcho()

	newContext := func(query string) (*httptest.ResponseRecorder, func(h *CatalogHandler) error) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals/Wicked/showtimes?"+query, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name")
		c.SetParamValues("Wicked")
		return rec, func(h *CatalogHandler) error { return h.ShowTimes(c) }
	}

	t.Run("上演枠を返す", func(t *testing.T) {
		cs := new(MockCatalogService)
		cs.On("ShowTimes", mock.Anything, "Wicked", mustDate(t, "2026-10-19")).
			Return([]seat.ShowTime{"10:00", "13:15", "16:30"}, nil)
		rec, call := newContext("date=2026-10-19")

		require.NoError(t, call(NewCatalogHandler(cs, new(MockInventoryService))))
		var resp ShowTimesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2026-10-19", resp.Date)
		assert.Equal(t, []string{"10:00", "13:15", "16:30"}, resp.ShowTimes)
	})

	t.Run("日付の形式が不正なら400", func(t *testing.T) {
		_, call := newContext("date=19/10/2026")
		err := call(NewCatalogHandler(new(MockCatalogService), new(MockInventoryService)))
		assertHTTPError(t, err, http.StatusBadRequest, api.ReasonInvalidRequest)
	})

	t.Run("上演曜日外なら422と上演曜日を返す", func(t *testing.T) {
		cs := new(MockCatalogService)
		dayErr := &booking.DayUnavailableError{Day: time.Sunday, ValidDays: []string{"Monday", "Saturday"}}
		cs.On("ShowTimes", mock.Anything, "Wicked", mock.Anything).Return(nil, dayErr)
		_, call := newContext("date=2026-10-18")

		err := call(NewCatalogHandler(cs, new(MockInventoryService)))
		assertHTTPError(t, err, http.StatusUnprocessableEntity, api.ReasonDayUnavailable)
	})
}

func TestCatalogHandler_Seats(t *testing.T) {
	e := NewTestEcho()
	monday := mustDate(t, "2026-10-19")
	matinee := seat.ShowTimeAt(13, 15)

	newContext := func(venueID, query string) (*httptest.ResponseRecorder, func(h *CatalogHandler) error) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/musicals/Wicked/venues/"+venueID+"/seats?"+query, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("name", "venue_id")
		c.SetParamValues("Wicked", venueID)
		return rec, func(h *CatalogHandler) error { return h.Seats(c) }
	}

	seatMap := func(degraded bool) *application.SeatMap {
		v := testVenue()
		booked := seat.NewBookedSet([]int{2, 5})
		if degraded {
			booked = seat.DegradedSet()
		}
		return &application.SeatMap{
			Musical: testMusical(),
			Venue:   v,
			Key:     seat.NewPerformanceKey(1, v.ID, monday, matinee),
			Sections: []application.SectionAvailability{
				{Section: v.Sections[0], Booked: booked},
				{Section: v.Sections[1], Booked: seat.NewBookedSet(nil)},
			},
			Degraded: degraded,
		}
	}

	t.Run("セクションごとの予約済み座席と空席数を返す", func(t *testing.T) {
		inv := new(MockInventoryService)
		inv.On("SeatMap", mock.Anything, "Wicked", int64(10), monday, matinee).Return(seatMap(false), nil)
		rec, call := newContext("10", "date=2026-10-19&time=13:15")

		require.NoError(t, call(NewCatalogHandler(new(MockCatalogService), inv)))
		var resp SeatMapResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "13:15", resp.Time)
		require.Len(t, resp.Sections, 2)
		assert.Equal(t, []int{2, 5}, resp.Sections[0].Booked)
		assert.Equal(t, 8, resp.Sections[0].Available)
		assert.Equal(t, 20, resp.Sections[1].Available)
	})

	t.Run("台帳を読めなければ全席空きとして返さず503", func(t *testing.T) {
		inv := new(MockInventoryService)
		inv.On("SeatMap", mock.Anything, "Wicked", int64(10), monday, matinee).
			Return(seatMap(true), errors.Join(booking.ErrLedgerUnavailable, errors.New("timeout")))
		rec, call := newContext("10", "date=2026-10-19&time=13:15")

		err := call(NewCatalogHandler(new(MockCatalogService), inv))
		assertHTTPError(t, err, http.StatusServiceUnavailable, api.ReasonLedgerUnavailable)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("会場IDが数値でなければ400", func(t *testing.T) {
		_, call := newContext("apollo", "date=2026-10-19&time=13:15")
		err := call(NewCatalogHandler(new(MockCatalogService), new(MockInventoryService)))
		assertHTTPError(t, err, http.StatusBadRequest, api.ReasonInvalidRequest)
	})

	t.Run("時刻の形式が不正なら400", func(t *testing.T) {
		_, call := newContext("10", "date=2026-10-19&time=noon")
		err := call(NewCatalogHandler(new(MockCatalogService), new(MockInventoryService)))
		assertHTTPError(t, err, http.StatusBadRequest, api.ReasonInvalidRequest)
	})
}
