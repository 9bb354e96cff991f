package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-event-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-ticket-booking/internal/application"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

// Register は予約エンドポイントをグループに登録する
func (h *BookingHandler) Register(g *echo.Group) {
	g.POST("/bookings", h.Create)
	g.GET("/bookings/my", h.ListMine)
	g.GET("/bookings/:id", h.GetByID)
	g.POST("/bookings/:id/confirm", h.Confirm)
	g.DELETE("/bookings/:id", h.Cancel)
}

type CreateBookingRequest struct {
	EventID    string `json:"event_id" validate:"required"`
	SeatNumber string `json:"seat_number" validate:"required"`
	Price      int64  `json:"price" validate:"gte=0"`
}

type ConfirmBookingRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
}

type BookingResponse struct {
	BookingID     string     `json:"booking_id"`
	EventID       string     `json:"event_id"`
	SeatNumber    string     `json:"seat_number"`
	UserID        string     `json:"user_id"`
	Status        string     `json:"status"`
	ReservationID string     `json:"reservation_id,omitempty"`
	PaymentID     string     `json:"payment_id,omitempty"`
	Price         int64      `json:"price"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		BookingID: b.ID, EventID: b.EventID, SeatNumber: b.SeatNumber, UserID: b.UserID,
		Status: string(b.Status), ReservationID: b.ReservationID, PaymentID: b.PaymentID,
		Price: b.Price, CreatedAt: b.CreatedAt, ConfirmedAt: b.ConfirmedAt,
	}
}

func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(middleware.HeaderUserID)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	return id, nil
}

// Create は座席を確保して保留中の予約を作成する
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		EventID: req.EventID, SeatNumber: req.SeatNumber, UserID: uid, Price: req.Price,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h *BookingHandler) GetByID(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) ListMine(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	bookings, err := h.service.ListBookings(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	resp := BookingListResponse{Bookings: make([]BookingResponse, len(bookings)), Total: len(bookings)}
	for i, b := range bookings {
		resp.Bookings[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Confirm は決済済みの予約を確定する
func (h *BookingHandler) Confirm(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req ConfirmBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	b, err := h.service.ConfirmBooking(c.Request().Context(), application.ConfirmBookingInput{
		BookingID: c.Param("id"), PaymentID: req.PaymentID, UserID: uid,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel は保留中の予約を取り消し、座席を解放する
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.service.CancelBooking(c.Request().Context(), c.Param("id"), uid); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
