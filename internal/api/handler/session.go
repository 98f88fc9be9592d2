package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/application"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/selection"
)

// SessionHandler は座席選択セッションのハンドラー
// セッションは顧客ごとに1つで、X-User-ID ヘッダーで識別する
type SessionHandler struct {
	service SelectionServiceInterface
}

func NewSessionHandler(s SelectionServiceInterface) *SessionHandler {
	return &SessionHandler{service: s}
}

type StartSessionRequest struct {
	Musical  string `json:"musical" validate:"required" example:"Wicked"`
	VenueID  int64  `json:"venue_id" validate:"required" example:"10"`
	Date     string `json:"date" validate:"required" example:"2026-10-19"`
	Time     string `json:"time" validate:"required" example:"13:15"`
	Quantity int    `json:"quantity" validate:"min=1,max=100" example:"2"`
}

type ToggleSeatRequest struct {
	SectionID int64 `json:"section_id" validate:"required" example:"100"`
	Number    int   `json:"number" validate:"min=1" example:"7"`
}

type CommitSessionRequest struct {
	LineItems []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
}

type SelectedSeatResponse struct {
	Label     string `json:"label" example:"Stalls7"`
	SectionID int64  `json:"section_id" example:"100"`
	Number    int    `json:"number" example:"7"`
	BasePrice Money  `json:"base_price"`
}

type SessionResponse struct {
	ID        string                 `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Musical   string                 `json:"musical" example:"Wicked"`
	VenueID   int64                  `json:"venue_id" example:"10"`
	Date      string                 `json:"date" example:"2026-10-19"`
	Time      string                 `json:"time" example:"13:15"`
	Quantity  int                    `json:"quantity" example:"2"`
	State     string                 `json:"state" example:"partial"`
	Remaining int                    `json:"remaining" example:"1"`
	Selected  []SelectedSeatResponse `json:"selected"`
}

func toSessionResponse(v selection.View) SessionResponse {
	selected := make([]SelectedSeatResponse, len(v.Selected))
	for i, r := range v.Selected {
		selected[i] = SelectedSeatResponse{Label: r.Label(), SectionID: r.SectionID, Number: r.Number, BasePrice: toMoney(r.BasePrice)}
	}
	return SessionResponse{
		ID: v.ID, Musical: v.MusicalName, VenueID: v.Key.VenueID,
		Date: seat.FormatDate(v.Key.ShowDate), Time: v.Key.ShowTime.String(),
		Quantity: v.Quantity, State: string(v.State),
		Remaining: v.Quantity - len(v.Selected), Selected: selected,
	}
}

type ToggleResponse struct {
	Selected bool            `json:"selected"`
	Session  SessionResponse `json:"session"`
}

// Start godoc
// @Summary 座席選択を開始
// @Description 同じ顧客の既存セッションは無効化される
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body StartSessionRequest true "公演回と枚数"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "上演曜日外または上演枠外"
// @Failure 503 {object} api.ErrorResponse "予約台帳を読み取れない"
// @Router /sessions [post]
func (h *SessionHandler) Start(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	var req StartSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, showTime, err := parsePerformance(req.Date, req.Time)
	if err != nil {
		return err
	}
	sess, err := h.service.Start(c.Request().Context(), application.StartSelectionInput{
		CustomerID: customer,
		Musical:    req.Musical,
		VenueID:    req.VenueID,
		ShowDate:   date,
		ShowTime:   showTime,
		Quantity:   req.Quantity,
	})
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusCreated, toSessionResponse(sess.Snapshot()))
}

// Current godoc
// @Summary 現在の選択セッションを取得
// @Tags sessions
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /sessions/current [get]
func (h *SessionHandler) Current(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	sess, err := h.service.Current(customer)
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusOK, toSessionResponse(sess.Snapshot()))
}

// Toggle godoc
// @Summary 座席の選択を切り替える
// @Description 未選択なら選択し、選択済みなら解除する
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body ToggleSeatRequest true "座席"
// @Success 200 {object} ToggleResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "予約済みまたは上限到達"
// @Failure 410 {object} api.ErrorResponse "セッションが無効"
// @Router /sessions/current/seats/toggle [post]
func (h *SessionHandler) Toggle(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	var req ToggleSeatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	selected, view, err := h.service.Toggle(c.Request().Context(), customer, req.SectionID, req.Number)
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusOK, ToggleResponse{Selected: selected, Session: toSessionResponse(view)})
}

// Abandon godoc
// @Summary 選択セッションを破棄
// @Tags sessions
// @Param X-User-ID header string true "ユーザーID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /sessions/current [delete]
func (h *SessionHandler) Abandon(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	if err := h.service.Abandon(customer); err != nil {
		return api.FromDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Commit godoc
// @Summary 選択した座席で予約を確定
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CommitSessionRequest true "チケット明細"
// @Success 201 {object} CommitResponse
// @Failure 409 {object} api.ErrorResponse "座席の衝突"
// @Failure 422 {object} api.ErrorResponse "選択が未完了または枚数の不一致"
// @Router /sessions/current/commit [post]
func (h *SessionHandler) Commit(c echo.Context) error {
	customer, err := customerID(c)
	if err != nil {
		return err
	}
	var req CommitSessionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.Commit(c.Request().Context(), customer, toLineItems(req.LineItems))
	if err != nil {
		return api.FromDomainError(err)
	}
	return c.JSON(http.StatusCreated, toCommitResponse(res))
}
