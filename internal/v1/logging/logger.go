package logging

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	PeerIDKey        contextKey = "peer_id"
	RoomKeyKey       contextKey = "room_key"
)

// contextField names one value appendContextFields pulls out of a
// context.Context and the zap field key it's logged under.
type contextField struct {
	key   contextKey
	field string
}

// contextFields lists, in log order, every context value that gets promoted
// to a structured field. Adding a new correlated value (e.g. a device ID)
// means appending one entry here rather than another if-block.
var contextFields = []contextField{
	{CorrelationIDKey, "correlation_id"},
	{PeerIDKey, "peer_id"},
	{RoomKeyKey, "room_key"},
}

const serviceName = "voicesync"

// WithCorrelationID returns a context carrying a correlation ID for request
// tracing across the signaling/session/dispatch boundary. If id is empty one
// is generated, mirroring the peer-ID generation in internal/v1/server.Hub.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// Initialize sets up the global logger based on the environment
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var config zap.Config
		if development {
			config = zap.NewDevelopmentConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			config = zap.NewProductionConfig()
			config.EncoderConfig.TimeKey = "timestamp"
			config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		// Common configuration
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		logger, err = config.Build(zap.AddCallerSkip(1))
	})
	return err
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback specific for tests or before init
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// Info logs a message at InfoLevel
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Info(msg, appendContextFields(ctx, fields)...)
}

// Warn logs a message at WarnLevel
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, appendContextFields(ctx, fields)...)
}

// Error logs a message at ErrorLevel
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Error(msg, appendContextFields(ctx, fields)...)
}

// Fatal logs a message at FatalLevel
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, appendContextFields(ctx, fields)...)
}

// appendContextFields promotes the values named in contextFields from ctx
// onto fields, then stamps the service name.
func appendContextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return append(fields, zap.String("service", serviceName))
	}

	for _, cf := range contextFields {
		if v, ok := ctx.Value(cf.key).(string); ok {
			fields = append(fields, zap.String(cf.field, v))
		}
	}

	return append(fields, zap.String("service", serviceName))
}

// RedactDisplayName masks all but the first character of a display name, for
// logging join/leave events without leaking full names into log aggregators.
func RedactDisplayName(name string) string {
	if len(name) == 0 {
		return ""
	}
	r := []rune(name)
	if len(r) == 1 {
		return string(r[0]) + "***"
	}
	return string(r[0]) + "***"
}
