package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api"
)

// NewTestEcho は本番と同じバリデーターとエラー変換を持つEchoを作成する
func NewTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	return e
}

// NewTestBookingRouter は予約エンドポイントだけを /api/v1 に登録したルーターを返す
func NewTestBookingRouter(svc BookingServiceInterface) *echo.Echo {
	e := NewTestEcho()
	NewBookingHandler(svc).Register(e.Group("/api/v1"))
	return e
}
