package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type LineItemRequest struct {
	Type     string `json:"type" validate:"required" example:"Adult"`
	Quantity int    `json:"quantity" validate:"min=1" example:"2"`
}

type SeatRequest struct {
	SectionID int64 `json:"section_id" validate:"required" example:"100"`
	Number    int   `json:"number" validate:"min=1" example:"7"`
}

type CreateBookingRequest struct {
	Musical   string            `json:"musical" validate:"required" example:"Wicked"`
	VenueID   int64             `json:"venue_id" validate:"required" example:"10"`
	Date      string            `json:"date" validate:"required" example:"2026-10-19"`
	Time      string            `json:"time" validate:"required" example:"13:15"`
	LineItems []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	Seats     []SeatRequest     `json:"seats" validate:"required,min=1,dive"`
}

func toLineItems(reqs []LineItemRequest) []booking.LineItem {
	items := make([]booking.LineItem, len(reqs))
	for i, r := range reqs {
		items[i] = booking.LineItem{Type: pricing.ParseTicketType(r.Type), Quantity: r.Quantity}
	}
	return items
}

type AllocationResponse struct {
	Label      string `json:"label" example:"Stalls7"`
	SectionID  int64  `json:"section_id" example:"100"`
	Number     int    `json:"number" example:"7"`
	TicketType string `json:"ticket_type" example:"Adult"`
	Price      Money  `json:"price"`
}

type BookingResponse struct {
	ID         string               `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	CustomerID string               `json:"customer_id" example:"user-123"`
	MusicalID  int64                `json:"musical_id" example:"1"`
	ShowDate   string               `json:"show_date" example:"2026-10-19"`
	ShowTime   string               `json:"show_time" example:"13:15"`
	TotalPrice Money                `json:"total_price"`
	Seats      []AllocationResponse `json:"seats"`
	Receipt    string               `json:"receipt,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

func toBookingResponse(r *booking.Record) BookingResponse {
	seats := make([]AllocationResponse, len(r.Seats))
	for i, a := range r.Seats {
		seats[i] = AllocationResponse{
			Label: a.SeatLabel, SectionID: a.SectionID, Number: a.SeatNumber,
			TicketType: string(a.TicketType), Price: toMoney(a.Price),
		}
	}
	return BookingResponse{
		ID: r.ID, CustomerID: r.CustomerID, MusicalID: r.MusicalID,
		ShowDate: seat.FormatDate(r.ShowDate), ShowTime: r.ShowTime.String(),
		TotalPrice: toMoney(r.TotalPrice), Seats: seats,
		Receipt: r.ReceiptText, CreatedAt: r.CreatedAt,
	}
}

// CommitResponse は確定結果。レシートの出力に失敗しても予約は有効
type CommitResponse struct {
	BookingResponse
	ReceiptWarning string `json:"receipt_warning,omitempty"`
}

func toCommitResponse(res *application.CommitResult) CommitResponse {
	resp := CommitResponse{BookingResponse: toBookingResponse(res.Record)}
	if res.ReceiptErr != nil {
		resp.ReceiptWarning = res.ReceiptErr.Error()
	}
	return resp
}

// Create godoc
// @Summary 座席を指定して予約を確定
// @Description 選択セッションを使わずに座席とチケット明細を直接指定する
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateBookingRequest true "予約内容"
// @Success 201 {object} CommitResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席の衝突または残数不足"
// @Failure 422 {object} api.ErrorResponse "上演曜日外または枚数の不一致"
// @Failure 503 {object} api.ErrorResponse "予約台帳を読み取れない"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, showTime, err := parsePerformance(req.Date, req.Time)
	if err != nil {
		return err
	}
	seats := make([]seat.Ref, len(req.Seats))
	for i, s := range req.Seats {
		seats[i] = seat.Ref{VenueID: req.VenueID, SectionID: s.SectionID, Number: s.Number}
	}
	res, err := h.service.Commit(c.Request().Context(), application.CommitInput{
		CustomerID: customer,
		Musical:    req.Musical,
		ShowDate:   date,
		ShowTime:   showTime,
		LineItems:  toLineItems(req.LineItems),
		Seats:      seats,
	})
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusCreated, toCommitResponse(res))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	r, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(r))
}

// History godoc
// @Summary 予約履歴を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Param from query string false "公演日の下限 (YYYY-MM-DD)"
// @Param to query string false "公演日の上限 (YYYY-MM-DD)"
// @Success 200 {array} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) History(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	q := booking.HistoryQuery{CustomerID: customer}
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	q.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if q.From, err = optionalDate(c.QueryParam("from")); err != nil {
		return api.FromDomainError(err)
	}
	if q.To, err = optionalDate(c.QueryParam("to")); err != nil {
		return api.FromDomainError(err)
	}
	records, err := h.service.CustomerBookings(c.Request().Context(), q)
	if err != nil {
		return api.FromDomainError(err)
	}
	resp := make([]BookingResponse, len(records))
	for i, r := range records {
		resp[i] = toBookingResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}
