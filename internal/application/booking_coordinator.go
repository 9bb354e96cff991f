package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/errs"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-ticket-booking/internal/pkg/tracing"
)

// DefaultCallTimeout は在庫サービス・ストア呼び出し1回あたりの既定の期限
const DefaultCallTimeout = 5 * time.Second

// BookingCoordinator は座席確保・予約保存・イベント発行を順に実行し、
// 途中で失敗した場合は座席の解放で補償する。
// 自身は共有状態を持たず、座席の一意性は在庫サービスの確保に委ねる。
type BookingCoordinator struct {
	inventory inventory.Client
	store     booking.Repository
	publisher booking.EventPublisher

	logger      *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
	callTimeout time.Duration
	sweepBatch  int
}

// Option はコーディネーターの設定を変更する
type Option func(*BookingCoordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *BookingCoordinator) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *BookingCoordinator) { c.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *BookingCoordinator) { c.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(c *BookingCoordinator) { c.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(c *BookingCoordinator) { c.newID = gen }
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *BookingCoordinator) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithSweepBatch は期限切れ処理で1回に扱う件数の上限を設定する
func WithSweepBatch(n int) Option {
	return func(c *BookingCoordinator) {
		if n > 0 {
			c.sweepBatch = n
		}
	}
}

// NewBookingCoordinator はコーディネーターを作成する
func NewBookingCoordinator(inv inventory.Client, store booking.Repository, pub booking.EventPublisher, opts ...Option) *BookingCoordinator {
	c := &BookingCoordinator{
		inventory:   inv,
		store:       store,
		publisher:   pub,
		logger:      logger.Get(),
		tracer:      tracing.Tracer(),
		now:         time.Now,
		newID:       uuid.NewString,
		callTimeout: DefaultCallTimeout,
		sweepBatch:  100,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewNop()
	}
	return c
}

// CreateBookingInput は予約作成の入力
type CreateBookingInput struct {
	EventID    string
	SeatNumber string
	UserID     string
	Price      int64
}

// ConfirmBookingInput は予約確定の入力
type ConfirmBookingInput struct {
	BookingID string
	PaymentID string
	UserID    string
}

// CreateBooking は座席を確保して PENDING の予約を作成する
func (c *BookingCoordinator) CreateBooking(ctx context.Context, input CreateBookingInput) (_ *booking.Booking, err error) {
	ctx, span := c.startSpan(ctx, "CreateBooking",
		attribute.String("event_id", input.EventID),
		attribute.String("seat_number", input.SeatNumber),
	)
	defer func() { c.finish(span, "create", err) }()

	params := booking.CreateParams{
		EventID:    input.EventID,
		SeatNumber: input.SeatNumber,
		UserID:     input.UserID,
		Price:      input.Price,
	}
	if err := params.Validate(); err != nil {
		return nil, errs.Mark(err, booking.ErrInvalidInput)
	}
	log := c.logger.With(logger.BookingFields("", input.EventID, input.SeatNumber, input.UserID)...)

	// 1. 座席確保
	reservationID, err := c.reserveSeat(ctx, input.EventID, input.SeatNumber, input.UserID)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrSeatUnavailable):
			return nil, errs.Mark(err, booking.ErrSeatUnavailable)
		case isTransportError(err):
			log.Warn("座席確保に失敗", zap.String("step", "reserve"), zap.Error(err))
			return nil, errs.Mark(errs.Wrap(err, "座席確保に失敗"), booking.ErrDependencyUnavailable)
		default:
			log.Info("在庫サービスが座席確保を拒否", zap.String("step", "reserve"), zap.Error(err))
			return nil, errs.Mark(err, booking.ErrReservationRejected)
		}
	}

	// 2. 予約保存（失敗時は座席を解放）
	b := booking.NewBooking(c.newID(), input.EventID, input.SeatNumber, input.UserID, reservationID, input.Price, c.now())
	log = log.With(zap.String("booking_id", b.ID))
	if err := c.putBooking(ctx, b); err != nil {
		log.Error("予約の保存に失敗、座席を解放します", zap.String("step", "persist"), zap.Error(err))
		c.releaseForCompensation(ctx, "create", b, log)
		return nil, errs.Mark(errs.Wrap(err, "予約の保存に失敗"), booking.ErrBookingPersistenceFailed)
	}

	// 3. イベント発行
	c.publish(ctx, booking.TopicBookingCreated, b, log)

	log.Info("予約を作成")
	return b, nil
}

// ConfirmBooking は在庫側で仮押さえを確定し、予約を CONFIRMED にする。
// 確定は座席の解放では取り消せないため、ストア更新の失敗は補償せず呼び出し元の再試行に任せる。
func (c *BookingCoordinator) ConfirmBooking(ctx context.Context, input ConfirmBookingInput) (_ *booking.Booking, err error) {
	ctx, span := c.startSpan(ctx, "ConfirmBooking", attribute.String("booking_id", input.BookingID))
	defer func() { c.finish(span, "confirm", err) }()

	if input.BookingID == "" {
		return nil, errs.Mark(booking.ErrBookingIDRequired, booking.ErrInvalidInput)
	}
	if input.PaymentID == "" {
		return nil, errs.Mark(booking.ErrPaymentIDRequired, booking.ErrInvalidInput)
	}

	b, err := c.loadOwned(ctx, input.BookingID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !b.IsPending() {
		return nil, errs.Wrapf(booking.ErrInvalidState, "現在の状態: %s", b.Status)
	}
	log := c.logger.With(logger.BookingFields(b.ID, b.EventID, b.SeatNumber, b.UserID)...)

	// 1. 在庫側で確定
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	err = c.inventory.ConfirmReservation(callCtx, b.ReservationID, input.UserID, input.PaymentID)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, inventory.ErrAlreadyConfirmed):
		// 前回ストア更新だけが失敗した場合の再試行。レコードを追いつかせる
		log.Info("在庫側は確定済み、予約レコードを更新します", zap.String("step", "confirm"))
	case isTransportError(err):
		log.Warn("在庫サービスでの確定に失敗", zap.String("step", "confirm"), zap.Error(err))
		return nil, errs.Mark(errs.Wrap(err, "座席確定に失敗"), booking.ErrDependencyUnavailable)
	case errors.Is(err, inventory.ErrReservationNotFound):
		return nil, errs.Mark(errs.Mark(err, booking.ErrReservationNotFound), booking.ErrReservationConfirmFailed)
	default:
		return nil, errs.Mark(err, booking.ErrReservationConfirmFailed)
	}

	// 2. ストア更新
	confirmed, err := c.updateStatus(ctx, b.ID, booking.ToConfirmed(input.PaymentID))
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			return nil, c.confirmConflict(ctx, b, input.PaymentID, err, log)
		}
		log.Error("在庫側は確定済みだが予約レコードの更新に失敗", zap.String("step", "persist"), zap.Error(err))
		return nil, errs.Mark(errs.Wrap(err, "予約の確定保存に失敗"), booking.ErrBookingPersistenceFailed)
	}

	// 3. イベント発行
	c.publish(ctx, booking.TopicBookingConfirmed, confirmed, log)

	log.Info("予約を確定", zap.String("payment_id", input.PaymentID))
	return confirmed, nil
}

// CancelBooking は座席を解放して予約を CANCELLED にする。
// 解放の失敗はログに残して続行し、仮押さえIDを残したままキャンセルを記録する。
// 在庫側が確定済みと返した場合は何も書き込まない。
func (c *BookingCoordinator) CancelBooking(ctx context.Context, bookingID, userID string) (err error) {
	ctx, span := c.startSpan(ctx, "CancelBooking", attribute.String("booking_id", bookingID))
	defer func() { c.finish(span, "cancel", err) }()

	b, err := c.loadOwned(ctx, bookingID, userID)
	if err != nil {
		return err
	}
	switch b.Status {
	case booking.StatusPending:
	case booking.StatusConfirmed:
		return booking.ErrCannotCancelConfirmed
	default:
		return errs.Wrapf(booking.ErrInvalidState, "現在の状態: %s", b.Status)
	}
	log := c.logger.With(logger.BookingFields(b.ID, b.EventID, b.SeatNumber, b.UserID)...)

	// 1. 座席解放（ベストエフォート）
	released := true
	if err := c.releaseSeat(ctx, b); err != nil {
		if errors.Is(err, inventory.ErrAlreadyConfirmed) {
			// 確定処理が先に在庫側を確定させた
			log.Warn("在庫側で確定済みのためキャンセルしません", zap.String("step", "release"))
			return errs.Mark(err, booking.ErrCannotCancelConfirmed)
		}
		released = false
		c.metrics.CompensationsTotal.WithLabelValues("cancel", "failed").Inc()
		log.Error("座席の解放に失敗",
			zap.String("step", "release"),
			zap.String("reservation_id", b.ReservationID),
			zap.Error(err),
		)
	} else {
		c.metrics.CompensationsTotal.WithLabelValues("cancel", "success").Inc()
	}

	// 2. ストア更新。解放できなかった仮押さえIDは再試行のために残す
	cancelled, err := c.updateStatus(ctx, b.ID, booking.ToCancelled(released))
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			return errs.Mark(err, booking.ErrInvalidState)
		}
		log.Error("予約のキャンセル保存に失敗", zap.String("step", "persist"), zap.Error(err))
		return errs.Mark(errs.Wrap(err, "予約のキャンセル保存に失敗"), booking.ErrBookingPersistenceFailed)
	}

	c.publish(ctx, booking.TopicBookingCancelled, cancelled, log)
	log.Info("予約をキャンセル")
	return nil
}

// GetBooking は所有者本人の予約を返す
func (c *BookingCoordinator) GetBooking(ctx context.Context, bookingID, userID string) (*booking.Booking, error) {
	return c.loadOwned(ctx, bookingID, userID)
}

// ListBookings はユーザーの予約一覧を返す
func (c *BookingCoordinator) ListBookings(ctx context.Context, userID string) ([]*booking.Booking, error) {
	if userID == "" {
		return nil, errs.Mark(booking.ErrUserIDRequired, booking.ErrInvalidInput)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	list, err := c.store.ListByUser(callCtx, userID)
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "予約一覧の取得に失敗"), booking.ErrDependencyUnavailable)
	}
	return list, nil
}

// ExpirePendingBookings は ttl を超えて PENDING のままの予約を EXPIRED にする。
// 座席の解放に成功した予約だけを遷移させ、失敗したものは次回に持ち越す。
// 在庫側で確定済みの予約は確定処理に任せて触らない。
func (c *BookingCoordinator) ExpirePendingBookings(ctx context.Context, ttl time.Duration) (_ int, err error) {
	ctx, span := c.startSpan(ctx, "ExpirePendingBookings")
	defer func() { c.finishSpan(span, err) }()

	cutoff := c.now().Add(-ttl)
	listCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	pending, err := c.store.ListPendingCreatedBefore(listCtx, cutoff, c.sweepBatch)
	cancel()
	if err != nil {
		return 0, errs.Mark(errs.Wrap(err, "期限切れ候補の取得に失敗"), booking.ErrDependencyUnavailable)
	}

	expired := 0
	for _, b := range pending {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		log := c.logger.With(logger.BookingFields(b.ID, b.EventID, b.SeatNumber, b.UserID)...)

		if err := c.releaseSeat(ctx, b); err != nil {
			if errors.Is(err, inventory.ErrAlreadyConfirmed) {
				// 確定処理と競合した。確定側がレコードを更新する
				c.metrics.CompensationsTotal.WithLabelValues("expire", "skipped").Inc()
				log.Warn("在庫側で確定済みのため失効させません", zap.String("step", "release"))
				continue
			}
			c.metrics.CompensationsTotal.WithLabelValues("expire", "failed").Inc()
			log.Warn("期限切れ予約の座席解放に失敗、次回再試行します", zap.String("step", "release"), zap.Error(err))
			continue
		}
		c.metrics.CompensationsTotal.WithLabelValues("expire", "success").Inc()

		updated, err := c.updateStatus(ctx, b.ID, booking.ToExpired())
		if err != nil {
			if errors.Is(err, booking.ErrInvalidTransition) {
				// 解放処理中に確定・キャンセルされた
				log.Debug("予約は既に終端状態のためスキップ")
				continue
			}
			log.Error("期限切れの保存に失敗", zap.String("step", "persist"), zap.Error(err))
			continue
		}
		expired++
		c.metrics.BookingsExpiredTotal.Inc()
		c.publish(ctx, booking.TopicBookingExpired, updated, log)
	}
	return expired, nil
}

// ReleaseUnreleasedHolds はキャンセル時に解放できなかった座席の解放を再試行する。
// 同じ座席に本人の有効な予約が後から作られていれば、解放せずに記録だけ消す。
func (c *BookingCoordinator) ReleaseUnreleasedHolds(ctx context.Context) (_ int, err error) {
	ctx, span := c.startSpan(ctx, "ReleaseUnreleasedHolds")
	defer func() { c.finishSpan(span, err) }()

	listCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	pending, err := c.store.ListUnreleased(listCtx, c.sweepBatch)
	cancel()
	if err != nil {
		return 0, errs.Mark(errs.Wrap(err, "解放待ち予約の取得に失敗"), booking.ErrDependencyUnavailable)
	}

	released := 0
	for _, b := range pending {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		log := c.logger.With(logger.BookingFields(b.ID, b.EventID, b.SeatNumber, b.UserID)...)
		log = log.With(zap.String("reservation_id", b.ReservationID))

		superseded, err := c.hasActiveBookingForSeat(ctx, b)
		if err != nil {
			log.Warn("同じ座席の予約確認に失敗、次回再試行します", zap.Error(err))
			continue
		}
		if !superseded {
			if err := c.releaseSeat(ctx, b); err != nil {
				if errors.Is(err, inventory.ErrAlreadyConfirmed) {
					c.metrics.SagaInconsistenciesTotal.WithLabelValues("reconcile").Inc()
					log.Error("終端の予約の座席が在庫側で確定済み", zap.String("status", string(b.Status)))
				} else {
					c.metrics.CompensationsTotal.WithLabelValues("reconcile", "failed").Inc()
					log.Warn("座席の再解放に失敗、次回再試行します", zap.String("step", "release"), zap.Error(err))
				}
				continue
			}
			c.metrics.CompensationsTotal.WithLabelValues("reconcile", "success").Inc()
		} else {
			c.metrics.CompensationsTotal.WithLabelValues("reconcile", "skipped").Inc()
		}

		markCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		_, err = c.store.MarkReleased(markCtx, b.ID)
		cancel()
		if err != nil && !errors.Is(err, booking.ErrNoUnreleasedHold) {
			log.Error("解放済みの記録に失敗", zap.String("step", "persist"), zap.Error(err))
			continue
		}
		released++
		log.Info("取り残された座席を解放")
	}
	return released, nil
}

// hasActiveBookingForSeat は同じ利用者が同じ座席に PENDING か CONFIRMED の予約を持つかを返す
func (c *BookingCoordinator) hasActiveBookingForSeat(ctx context.Context, b *booking.Booking) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	list, err := c.store.ListByUser(callCtx, b.UserID)
	if err != nil {
		return false, err
	}
	for _, other := range list {
		if other.ID == b.ID || other.EventID != b.EventID || other.SeatNumber != b.SeatNumber {
			continue
		}
		if other.Status == booking.StatusPending || other.Status == booking.StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

// loadOwned は予約を取得し、存在と所有者を確認する
func (c *BookingCoordinator) loadOwned(ctx context.Context, bookingID, userID string) (*booking.Booking, error) {
	if bookingID == "" {
		return nil, errs.Mark(booking.ErrBookingIDRequired, booking.ErrInvalidInput)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	b, err := c.store.Get(callCtx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, errs.Mark(errs.Wrap(err, "予約の取得に失敗"), booking.ErrDependencyUnavailable)
	}
	if !b.IsOwnedBy(userID) {
		return nil, booking.ErrForbidden
	}
	return b, nil
}

func (c *BookingCoordinator) reserveSeat(ctx context.Context, eventID, seatNumber, userID string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.inventory.ReserveSeat(callCtx, eventID, seatNumber, userID)
}

func (c *BookingCoordinator) putBooking(ctx context.Context, b *booking.Booking) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.store.Put(callCtx, b)
}

func (c *BookingCoordinator) updateStatus(ctx context.Context, id string, change booking.StatusChange) (*booking.Booking, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return c.store.UpdateStatus(callCtx, id, change)
}

// confirmConflict は在庫側の確定後にレコードが PENDING でなくなっていた場合を判定する。
// 別の確定が先に終わっていれば状態競合、それ以外は座席が販売済みのまま予約が終端になった食い違い。
func (c *BookingCoordinator) confirmConflict(ctx context.Context, b *booking.Booking, paymentID string, cause error, log *zap.Logger) error {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	current, err := c.store.Get(callCtx, b.ID)
	cancel()
	if err == nil && current.Status == booking.StatusConfirmed {
		return errs.Mark(cause, booking.ErrInvalidState)
	}

	status := "unknown"
	if current != nil {
		status = string(current.Status)
	}
	c.metrics.SagaInconsistenciesTotal.WithLabelValues("confirm").Inc()
	log.Error("在庫側は確定済みだが予約は確定できない状態",
		zap.String("step", "persist"),
		zap.String("reservation_id", b.ReservationID),
		zap.String("payment_id", paymentID),
		zap.String("status", status),
		zap.Error(cause),
	)
	return errs.Mark(errs.Wrap(cause, "在庫と予約の状態が一致しません"), booking.ErrBookingPersistenceFailed)
}

// releaseSeat は呼び出し元のキャンセルに影響されない期限付きで座席を解放する
func (c *BookingCoordinator) releaseSeat(ctx context.Context, b *booking.Booking) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
	defer cancel()
	return c.inventory.ReleaseSeat(callCtx, b.EventID, b.SeatNumber, b.UserID)
}

// releaseForCompensation は座席を解放し、失敗してもエラーを返さない。
// 取り残された座席は在庫側のTTLか期限切れ処理で回収される。
func (c *BookingCoordinator) releaseForCompensation(ctx context.Context, step string, b *booking.Booking, log *zap.Logger) {
	if err := c.releaseSeat(ctx, b); err != nil {
		c.metrics.CompensationsTotal.WithLabelValues(step, "failed").Inc()
		log.Error("座席の解放に失敗",
			zap.String("step", "release"),
			zap.String("reservation_id", b.ReservationID),
			zap.Error(err),
		)
		return
	}
	c.metrics.CompensationsTotal.WithLabelValues(step, "success").Inc()
}

// publish はイベントを発行する。失敗は記録のみで結果には影響しない
func (c *BookingCoordinator) publish(ctx context.Context, topic string, b *booking.Booking, log *zap.Logger) {
	if c.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
	defer cancel()

	if err := c.publisher.Publish(pubCtx, topic, booking.NewEvent(topic, b, c.now())); err != nil {
		c.metrics.EventPublishFailuresTotal.WithLabelValues(topic, "enqueue").Inc()
		log.Warn("イベント発行に失敗", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *BookingCoordinator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "BookingCoordinator."+name, trace.WithAttributes(attrs...))
}

func (c *BookingCoordinator) finish(span trace.Span, operation string, err error) {
	c.metrics.BookingsTotal.WithLabelValues(operation, ResultLabel(err)).Inc()
	c.finishSpan(span, err)
}

func (c *BookingCoordinator) finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// isTransportError は通信失敗（業務上の拒否ではない）かを返す
func isTransportError(err error) bool {
	return errors.Is(err, inventory.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// ResultLabel はエラー種別をメトリクスのラベルに変換する
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errs.Is(err, booking.ErrInvalidInput):
		return "invalid_input"
	case errs.Is(err, booking.ErrSeatUnavailable):
		return "seat_unavailable"
	case errs.Is(err, booking.ErrReservationRejected):
		return "reservation_rejected"
	case errs.Is(err, booking.ErrBookingNotFound):
		return "not_found"
	case errs.Is(err, booking.ErrForbidden):
		return "forbidden"
	case errs.Is(err, booking.ErrInvalidState), errs.Is(err, booking.ErrCannotCancelConfirmed):
		return "invalid_state"
	case errs.Is(err, booking.ErrReservationConfirmFailed):
		return "confirm_rejected"
	case errs.Is(err, booking.ErrBookingPersistenceFailed):
		return "persistence_failed"
	case errs.Is(err, booking.ErrDependencyUnavailable):
		return "dependency_unavailable"
	default:
		return "error"
	}
}
