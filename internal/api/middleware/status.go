package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-musical-box-office/internal/api"
)

// responseStatus はエラーハンドラーが返すことになるステータスと失敗の種類を求める
// ミドルウェアはエラーハンドラーより先に実行されるため、レスポンスにはまだ書かれていない
func responseStatus(c echo.Context, err error) (int, string) {
	if err == nil {
		return c.Response().Status, ""
	}
	he := api.FromDomainError(err)
	if resp, ok := he.Message.(api.ErrorResponse); ok {
		return he.Code, resp.Reason
	}
	return he.Code, ""
}
