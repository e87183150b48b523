package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowThreshold is the duration above which OperationTimer logs at warn level
const SlowThreshold = 5 * time.Second

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func (e *Engine) Valuate(...) {
//	    defer utils.OperationTimer("valuate", e.log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		if duration > SlowThreshold {
			log.Warn().Str("operation", operation).Dur("duration", duration).Msg("Slow operation detected")
			return
		}
		log.Debug().Str("operation", operation).Dur("duration", duration).Msg("Operation completed")
	}
}
