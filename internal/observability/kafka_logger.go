package observability

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaLogger adapts zerolog to kafka-go's Printf style Logger interface.
// Writer diagnostics go to debug, writer errors to error.
type KafkaLogger struct {
	logger zerolog.Logger
	level  zerolog.Level
}

var _ kafka.Logger = (*KafkaLogger)(nil)

// NewKafkaLogger returns a debug-level adapter tagged "component":"kafka".
func NewKafkaLogger(logger zerolog.Logger) *KafkaLogger {
	return &KafkaLogger{
		logger: logger.With().Str("component", "kafka").Logger(),
		level:  zerolog.DebugLevel,
	}
}

// NewKafkaErrorLogger returns an error-level adapter tagged "component":"kafka".
func NewKafkaErrorLogger(logger zerolog.Logger) *KafkaLogger {
	return &KafkaLogger{
		logger: logger.With().Str("component", "kafka").Logger(),
		level:  zerolog.ErrorLevel,
	}
}

// Printf implements kafka.Logger.
func (l *KafkaLogger) Printf(format string, args ...interface{}) {
	l.logger.WithLevel(l.level).Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
