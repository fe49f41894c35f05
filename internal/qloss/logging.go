package qloss

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// debugLogLimiter throttles high-frequency per-packet debug logging (ack
// processing, loss declarations) so a lossy connection cannot flood the
// log sink. It never gates warnings or errors.
type debugLogLimiter struct {
	logger  *zap.Logger
	limiter *rate.Limiter
}

// newDebugLogLimiter wraps logger with a rate limit of eventsPerSecond,
// bursting up to burst events before throttling kicks in.
func newDebugLogLimiter(logger *zap.Logger, eventsPerSecond float64, burst int) *debugLogLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &debugLogLimiter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

func (l *debugLogLimiter) debug(msg string, fields ...zap.Field) {
	if l.limiter.Allow() {
		l.logger.Debug(msg, fields...)
	}
}
