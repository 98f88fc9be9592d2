package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-musical-box-office/internal/domain/booking"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/catalog"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/selection"
	"github.com/sanosuguru/go-musical-box-office/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
// Reason は失敗の種類を表す機械可読なコード
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// 失敗の種類
const (
	ReasonInvalidRequest        = "invalid_request"
	ReasonCustomerRequired      = "customer_required"
	ReasonNotFound              = "not_found"
	ReasonSelectionIncomplete   = "selection_incomplete"
	ReasonSeatCountMismatch     = "seat_count_mismatch"
	ReasonDayUnavailable        = "day_unavailable"
	ReasonShowTimeUnavailable   = "show_time_unavailable"
	ReasonInsufficientInventory = "insufficient_inventory"
	ReasonSeatConflict          = "seat_conflict"
	ReasonSeatBooked            = "seat_booked"
	ReasonSelectionFull         = "selection_full"
	ReasonSessionInvalidated    = "session_invalidated"
	ReasonCommitFailed          = "commit_failed"
	ReasonArtifactWriteFailed   = "artifact_write_failed"
	ReasonLedgerUnavailable     = "ledger_unavailable"
	ReasonInternalServerError   = "internal_error"
	ReasonUnauthorized          = "unauthorized"
	ReasonMethodNotAllowed      = "method_not_allowed"
)

type errorRule struct {
	target error
	status int
	reason string
}

// 上から順に評価する。SeatConflictError は一意制約違反を、
// 書き込み時の残数不足は ErrCommitFailed の下に ErrInsufficientInventory をラップするため先に判定する
var errorRules = []errorRule{
	{booking.ErrSeatConflict, http.StatusConflict, ReasonSeatConflict},
	{booking.ErrInsufficientInventory, http.StatusConflict, ReasonInsufficientInventory},
	{booking.ErrCommitFailed, http.StatusInternalServerError, ReasonCommitFailed},
	{booking.ErrLedgerUnavailable, http.StatusServiceUnavailable, ReasonLedgerUnavailable},
	{booking.ErrArtifactWriteFailed, http.StatusInternalServerError, ReasonArtifactWriteFailed},
	{booking.ErrDayUnavailable, http.StatusUnprocessableEntity, ReasonDayUnavailable},
	{catalog.ErrShowTimeUnavailable, http.StatusUnprocessableEntity, ReasonShowTimeUnavailable},
	{booking.ErrSeatCountMismatch, http.StatusUnprocessableEntity, ReasonSeatCountMismatch},
	{booking.ErrSelectionIncomplete, http.StatusUnprocessableEntity, ReasonSelectionIncomplete},
	{selection.ErrSeatBooked, http.StatusConflict, ReasonSeatBooked},
	{selection.ErrSelectionFull, http.StatusConflict, ReasonSelectionFull},
	{selection.ErrSessionInvalidated, http.StatusGone, ReasonSessionInvalidated},
	{booking.ErrCustomerIDRequired, http.StatusUnauthorized, ReasonCustomerRequired},
	{catalog.ErrMusicalNotFound, http.StatusNotFound, ReasonNotFound},
	{catalog.ErrVenueNotFound, http.StatusNotFound, ReasonNotFound},
	{catalog.ErrSectionNotFound, http.StatusNotFound, ReasonNotFound},
	{booking.ErrBookingNotFound, http.StatusNotFound, ReasonNotFound},
	{selection.ErrSessionNotFound, http.StatusNotFound, ReasonNotFound},
	{booking.ErrLineItemsRequired, http.StatusBadRequest, ReasonInvalidRequest},
	{booking.ErrInvalidQuantity, http.StatusBadRequest, ReasonInvalidRequest},
	{booking.ErrDuplicateSeat, http.StatusBadRequest, ReasonInvalidRequest},
	{booking.ErrMixedVenues, http.StatusBadRequest, ReasonInvalidRequest},
	{booking.ErrInvalidDateRange, http.StatusBadRequest, ReasonInvalidRequest},
	{selection.ErrInvalidQuantity, http.StatusBadRequest, ReasonInvalidRequest},
	{selection.ErrUnknownSection, http.StatusBadRequest, ReasonInvalidRequest},
	{selection.ErrSeatNotSelected, http.StatusBadRequest, ReasonInvalidRequest},
	{seat.ErrInvalidSeatNumber, http.StatusBadRequest, ReasonInvalidRequest},
	{seat.ErrInvalidShowDate, http.StatusBadRequest, ReasonInvalidRequest},
	{seat.ErrInvalidShowTime, http.StatusBadRequest, ReasonInvalidRequest},
}

// NewError はエラーレスポンスを持つ HTTPError を作る
func NewError(status int, reason, message string) *echo.HTTPError {
	return &echo.HTTPError{
		Code:    status,
		Message: ErrorResponse{Error: message, Code: status, Reason: reason},
	}
}

// FromDomainError はドメインのエラーを HTTP ステータスと失敗の種類に変換する
func FromDomainError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	status, reason := http.StatusInternalServerError, ReasonInternalServerError
	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			status, reason = r.status, r.reason
			break
		}
	}

	resp := ErrorResponse{Error: err.Error(), Code: status, Reason: reason}
	var conflict *booking.SeatConflictError
	var day *booking.DayUnavailableError
	switch {
	case errors.As(err, &conflict):
		resp.Details = strings.Join(conflict.Seats, ", ")
	case errors.As(err, &day):
		resp.Details = strings.Join(day.ValidDays, ", ")
	}
	if reason == ReasonInternalServerError {
		resp.Error = http.StatusText(status)
	}
	return &echo.HTTPError{Code: status, Message: resp, Internal: err}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := FromDomainError(err)
	resp, ok := he.Message.(ErrorResponse)
	if !ok {
		resp = ErrorResponse{Code: he.Code}
		if m, isString := he.Message.(string); isString {
			resp.Error = m
		} else {
			resp.Error = http.StatusText(he.Code)
		}
		switch he.Code {
		case http.StatusNotFound:
			resp.Reason = ReasonNotFound
		case http.StatusUnauthorized:
			resp.Reason = ReasonUnauthorized
		case http.StatusMethodNotAllowed:
			resp.Reason = ReasonMethodNotAllowed
		case http.StatusBadRequest:
			resp.Reason = ReasonInvalidRequest
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if he.Code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", he.Code),
			zap.String("reason", resp.Reason),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
