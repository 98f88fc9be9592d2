package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

type CatalogHandler struct {
	catalog   CatalogServiceInterface
	inventory InventoryServiceInterface
}

func NewCatalogHandler(cs CatalogServiceInterface, inv InventoryServiceInterface) *CatalogHandler {
	return &CatalogHandler{catalog: cs, inventory: inv}
}

type MusicalResponse struct {
	ID               int64    `json:"id" example:"1"`
	Name             string   `json:"name" example:"Wicked"`
	RunTimeMinutes   int      `json:"run_time_minutes" example:"165"`
	Categories       []string `json:"categories"`
	AgeRestriction   string   `json:"age_restriction" example:"8+"`
	BasePrice        Money    `json:"base_price"`
	AvailableTickets int      `json:"available_tickets" example:"500"`
	AvailableDays    []string `json:"available_days"`
	ShowTimes        []string `json:"show_times"`
}

func toMusicalResponse(m *catalog.Musical) MusicalResponse {
	times := m.ShowTimes()
	st := make([]string, len(times))
	for i, t := range times {
		st[i] = t.String()
	}
	return MusicalResponse{
		ID: m.ID, Name: m.Name, RunTimeMinutes: m.RunTimeMinutes,
		Categories: m.Categories, AgeRestriction: m.AgeRestriction,
		BasePrice: toMoney(m.BasePrice), AvailableTickets: m.AvailableTickets,
		AvailableDays: m.AvailableDayNames(), ShowTimes: st,
	}
}

type SectionResponse struct {
	ID        int64  `json:"id" example:"100"`
	Name      string `json:"name" example:"Stalls"`
	Capacity  int    `json:"capacity" example:"10"`
	BasePrice Money  `json:"base_price"`
}

type VenueResponse struct {
	ID            int64             `json:"id" example:"10"`
	Name          string            `json:"name" example:"Apollo Victoria Theatre"`
	TotalCapacity int               `json:"total_capacity" example:"40"`
	Sections      []SectionResponse `json:"sections"`
}

func toVenueResponse(v *catalog.Venue) VenueResponse {
	sections := make([]SectionResponse, len(v.Sections))
	for i, s := range v.Sections {
		sections[i] = SectionResponse{ID: s.ID, Name: s.Name, Capacity: s.Capacity, BasePrice: toMoney(s.BasePrice)}
	}
	return VenueResponse{ID: v.ID, Name: v.Name, TotalCapacity: v.TotalCapacity, Sections: sections}
}

type ShowTimesResponse struct {
	Musical   string   `json:"musical" example:"Wicked"`
	Date      string   `json:"date" example:"2026-10-19"`
	ShowTimes []string `json:"show_times"`
}

// SectionSeatsResponse はセクション単位の空席状況
type SectionSeatsResponse struct {
	SectionResponse
	Booked    []int `json:"booked"`
	Available int   `json:"available" example:"8"`
}

type SeatMapResponse struct {
	Musical  string                 `json:"musical" example:"Wicked"`
	Venue    string                 `json:"venue" example:"Apollo Victoria Theatre"`
	Date     string                 `json:"date" example:"2026-10-19"`
	Time     string                 `json:"time" example:"13:15"`
	Sections []SectionSeatsResponse `json:"sections"`
}

func toSeatMapResponse(sm *application.SeatMap) SeatMapResponse {
	sections := make([]SectionSeatsResponse, len(sm.Sections))
	for i, sa := range sm.Sections {
		s := sa.Section
		sections[i] = SectionSeatsResponse{
			SectionResponse: SectionResponse{ID: s.ID, Name: s.Name, Capacity: s.Capacity, BasePrice: toMoney(s.BasePrice)},
			Booked:          sa.Booked.Numbers(),
			Available:       sa.Available(),
		}
	}
	return SeatMapResponse{
		Musical:  sm.Musical.Name,
		Venue:    sm.Venue.Name,
		Date:     seat.FormatDate(sm.Key.ShowDate),
		Time:     sm.Key.ShowTime.String(),
		Sections: sections,
	}
}

// musicalName はパスパラメータのミュージカル名を取り出す
func musicalName(c echo.Context) string {
	raw := c.Param("name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// List godoc
// @Summary ミュージカル一覧を取得
// @Tags musicals
// @Produce json
// @Success 200 {array} MusicalResponse
// @Router /musicals [get]
func (h *CatalogHandler) List(c echo.Context) error {
	musicals, err := h.catalog.ListMusicals(c.Request().Context())
	if err != nil {
		return api.FromDomainError(err)
	}
	resp := make([]MusicalResponse, len(musicals))
	for i, m := range musicals {
		resp[i] = toMusicalResponse(m)
	}
	return c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary ミュージカルを取得
// @Description 名前は大文字小文字を区別しない
// @Tags musicals
// @Produce json
// @Param name path string true "ミュージカル名"
// @Success 200 {object} MusicalResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /musicals/{name} [get]
func (h *CatalogHandler) Get(c echo.Context) error {
	m, err := h.catalog.GetMusical(c.Request().Context(), musicalName(c))
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusOK, toMusicalResponse(m))
}

// Venues godoc
// @Summary 上演会場の一覧を取得
// @Tags musicals
// @Produce json
// @Param name path string true "ミュージカル名"
// @Success 200 {array} VenueResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /musicals/{name}/venues [get]
func (h *CatalogHandler) Venues(c echo.Context) error {
	venues, err := h.catalog.GetVenues(c.Request().Context(), musicalName(c))
	if err != nil {
		return api.FromDomainError(err)
	}
	resp := make([]VenueResponse, len(venues))
	for i, v := range venues {
		resp[i] = toVenueResponse(v)
	}
	return c.JSON(http.StatusOK, resp)
}

// ShowTimes godoc
// @Summary 指定日の上演枠を取得
// @Tags musicals
// @Produce json
// @Param name path string true "ミュージカル名"
// @Param date query string true "公演日 (YYYY-MM-DD)"
// @Success 200 {object} ShowTimesResponse
// @Failure 422 {object} api.ErrorResponse "上演曜日外"
// @Router /musicals/{name}/showtimes [get]
func (h *CatalogHandler) ShowTimes(c echo.Context) error {
	date, err := seat.ParseShowDate(c.QueryParam("date"))
	if err != nil {
		return api.FromDomainError(err)
	}
	name := musicalName(c)
	times, err := h.catalog.ShowTimes(c.Request().Context(), name, date)
	if err != nil {
		return api.FromDomainError(err)
	}
	st := make([]string, len(times))
	for i, t := range times {
		st[i] = t.String()
	}
	return c.JSON(http.StatusOK, ShowTimesResponse{Musical: name, Date: seat.FormatDate(date), ShowTimes: st})
}

// Seats godoc
// @Summary 公演回の空席状況を取得
// @Description 予約台帳を読めない場合は 503 を返す
// @Tags musicals
// @Produce json
// @Param name path string true "ミュージカル名"
// @Param venue_id path int true "会場ID"
// @Param date query string true "公演日 (YYYY-MM-DD)"
// @Param time query string true "開演時刻 (HH:mm)"
// @Success 200 {object} SeatMapResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse "予約台帳を読み取れない"
// @Router /musicals/{name}/venues/{venue_id}/seats [get]
func (h *CatalogHandler) Seats(c echo.Context) error {
	venueID, err := strconv.ParseInt(c.Param("venue_id"), 10, 64)
	if err != nil {
		return api.NewError(http.StatusBadRequest, api.ReasonInvalidRequest, "会場IDが不正です")
	}
	date, showTime, err := parsePerformance(c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return err
	}
	sm, err := h.inventory.SeatMap(c.Request().Context(), musicalName(c), venueID, date, showTime)
	if err != nil {
		return api.FromDomainError(err)
	}
	if sm.Degraded {
		// 空の一覧を「全席空き」と誤認させない
		return api.FromDomainError(booking.ErrLedgerUnavailable)
	}
	return c.JSON(http.StatusOK, toSeatMapResponse(sm))
}
