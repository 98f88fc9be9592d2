package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
	"github.com/sanosuguru/go-musical-box-office/internal/api/middleware"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/pricing"
	"github.com/sanosuguru/go-musical-box-office/internal/domain/seat"
)

// customerID は X-User-ID ヘッダーから顧客IDを取得する
func customerID(c echo.Context) (string, error) {
	id := strings.TrimSpace(c.Request().Header.Get(middleware.HeaderCustomerID))
	if id == "" {
		return "", api.NewError(http.StatusUnauthorized, api.ReasonCustomerRequired, "ユーザーIDが必要です")
	}
	return id, nil
}

// bindAndValidate はリクエストボディを読み込んで検証する
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return api.NewError(http.StatusBadRequest, api.ReasonInvalidRequest, "無効なリクエスト")
	}
	return c.Validate(req)
}

// parsePerformance は "YYYY-MM-DD" と "HH:mm" を解釈する
func parsePerformance(date, showTime string) (time.Time, seat.ShowTime, error) {
	d, err := seat.ParseShowDate(date)
	if err != nil {
		return time.Time{}, "", api.FromDomainError(err)
	}
	t, err := seat.ParseShowTime(showTime)
	if err != nil {
		return time.Time{}, "", api.FromDomainError(err)
	}
	return d, t, nil
}

// Money は金額の表示用とペンス単位の値
type Money struct {
	Display string `json:"display" example:"£80.00"`
	Pence   int64  `json:"pence" example:"8000"`
}

func toMoney(a pricing.Amount) Money {
	return Money{Display: a.String(), Pence: int64(a)}
}

// optionalDate は空文字ならゼロ値を返す
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return seat.ParseShowDate(s)
}
