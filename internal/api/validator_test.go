package api

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatRequest struct {
	EventID    string `json:"event_id" validate:"required"`
	SeatNumber string `json:"seat_number,omitempty" validate:"required"`
	Price      int64  `json:"price" validate:"gte=0"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

func TestCustomValidator_Validate(t *testing.T) {
	v := NewValidator()

	t.Run("正常な入力はエラーなし", func(t *testing.T) {
		assert.NoError(t, v.Validate(&seatRequest{EventID: "E1", SeatNumber: "A-1"}))
	})

	t.Run("JSONのフィールド名でまとめて返す", func(t *testing.T) {
		err := v.Validate(&seatRequest{Price: -1})

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, "event_id は必須です; seat_number は必須です; price は 0 以上である必要があります", he.Message)
	})

	t.Run("その他のルールはタグ名を添える", func(t *testing.T) {
		err := v.Validate(&seatRequest{EventID: "E1", SeatNumber: "A-1", Currency: "JPYEN"})

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, "currency が不正です (len)", he.Message)
	})
}
