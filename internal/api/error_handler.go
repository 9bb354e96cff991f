package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
)

// ErrorResponse は予約APIのエラー応答。Kind はクライアントが再試行可否を判断するための種別
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// CustomHTTPErrorHandler は予約エラーの種別をステータスコードに変換して返す
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := middleware.StatusFor(err)
	message := err.Error()
	kind := ""

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if label := application.ResultLabel(err); label != "error" {
		kind = label
	}

	// 5xx は内部の詳細を返さない
	if code >= 500 {
		logger.Error("予約APIでサーバーエラー",
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.String("booking_id", c.Param("id")),
			zap.String("user_id", c.Request().Header.Get(middleware.HeaderUserID)),
			zap.Error(err),
		)
		message = http.StatusText(code)
	}

	if err := c.JSON(code, ErrorResponse{Error: message, Code: code, Kind: kind}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
