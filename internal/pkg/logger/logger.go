package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

func init() {
	log = NewLogger("development")
}

// NewLogger は環境に応じたロガーを生成する。
// production は JSON 出力、それ以外はカラー付きコンソール出力。
func NewLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := config.Build(zap.Fields(zap.String("service", serviceName())))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Setup は環境に応じたロガーを生成してグローバルに設定する
func Setup(env string) *zap.Logger {
	l := NewLogger(env)
	Set(l)
	return l
}

func serviceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "booking-coordinator"
}

func Get() *zap.Logger {
	return log
}

func Set(l *zap.Logger) {
	log = l
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	log.Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return log.With(fields...)
}

func Sync() error {
	return log.Sync()
}

// BookingFields は予約ログ共通のフィールドを返す
func BookingFields(bookingID, eventID, seatNumber, userID string) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if bookingID != "" {
		fields = append(fields, zap.String("booking_id", bookingID))
	}
	if eventID != "" {
		fields = append(fields, zap.String("event_id", eventID))
	}
	if seatNumber != "" {
		fields = append(fields, zap.String("seat_number", seatNumber))
	}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return fields
}
