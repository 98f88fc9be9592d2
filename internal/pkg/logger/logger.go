package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "musical-box-office"

// リクエスト処理と監査ワーカーから同時に参照されるため atomic で差し替える
var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(NewLogger("development"))
}

// Init は環境に応じたロガーに差し替える
func Init(env string) *zap.Logger {
	l := NewLogger(env)
	current.Store(l)
	return l
}

// NewLogger は環境に応じたロガーを作る
// production は JSON、test は出力なし、それ以外は色付きのコンソール出力
func NewLogger(env string) *zap.Logger {
	var config zap.Config
	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.InitialFields = map[string]interface{}{"service": serviceName}
	case "test":
		return zap.NewNop()
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func Get() *zap.Logger {
	return current.Load()
}

func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Booking は予約処理のログに付けるフィールドを返す
func Booking(customerID, musical, showDate, showTime string) []zap.Field {
	return []zap.Field{
		zap.String("customer_id", customerID),
		zap.String("musical", musical),
		zap.String("show_date", showDate),
		zap.String("show_time", showTime),
	}
}

// Seats は座席ラベルのフィールド
func Seats(labels []string) zap.Field {
	return zap.Strings("seats", labels)
}

func Sync() error {
	return Get().Sync()
}
