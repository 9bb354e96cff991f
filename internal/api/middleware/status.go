package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
)

// StatusFor は予約エラーの種別をHTTPステータスに変換する
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch {
	case errs.IsAny(err, booking.ErrInvalidInput, booking.ErrReservationRejected):
		return http.StatusBadRequest
	case errs.Is(err, booking.ErrForbidden):
		return http.StatusForbidden
	case errs.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound
	case errs.IsAny(err, booking.ErrSeatUnavailable, booking.ErrInvalidState, booking.ErrCannotCancelConfirmed):
		return http.StatusConflict
	case errs.Is(err, booking.ErrReservationConfirmFailed):
		return http.StatusUnprocessableEntity
	case errs.Is(err, booking.ErrBookingPersistenceFailed):
		return http.StatusInternalServerError
	case errs.Is(err, booking.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
