package grpc

const serviceName = "inventory.v1.InventoryService"

const (
	methodReserveSeat    = "/" + serviceName + "/ReserveSeat"
	methodConfirmBooking = "/" + serviceName + "/ConfirmBooking"
	methodReleaseSeat    = "/" + serviceName + "/ReleaseSeat"
)

// 業務エラーのコード
const (
	codeSeatUnavailable     = "SEAT_UNAVAILABLE"
	codeReservationNotFound = "RESERVATION_NOT_FOUND"
	codeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	codeRejected            = "REJECTED"
)

type reserveSeatRequest struct {
	EventID    string `json:"event_id"`
	SeatNumber string `json:"seat_number"`
	UserID     string `json:"user_id"`
}

type reserveSeatResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
}

type confirmBookingRequest struct {
	ReservationID string `json:"reservation_id"`
	UserID        string `json:"user_id"`
	PaymentID     string `json:"payment_id"`
}

type confirmBookingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

type releaseSeatRequest struct {
	EventID    string `json:"event_id"`
	SeatNumber string `json:"seat_number"`
	UserID     string `json:"user_id"`
}

type releaseSeatResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}
