package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Default thresholds above which a timed operation is reported at info/warn level.
const (
	DefaultSlowThreshold     = 10 * time.Second
	DefaultVerySlowThreshold = 30 * time.Second
)

// Timer measures one operation and logs its duration when stopped.
type Timer struct {
	start    time.Time
	name     string
	log      zerolog.Logger
	slow     time.Duration
	verySlow time.Duration
	enabled  bool
}

// NewTimer starts a timer with the default slow thresholds.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start:    time.Now(),
		name:     name,
		log:      log,
		slow:     DefaultSlowThreshold,
		verySlow: DefaultVerySlowThreshold,
		enabled:  true,
	}
}

// WithThresholds overrides the info/warn thresholds.
func (t *Timer) WithThresholds(slow, verySlow time.Duration) *Timer {
	t.slow = slow
	t.verySlow = verySlow
	return t
}

// Stop stops the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	return t.StopWithContext(nil)
}

// StopWithContext stops the timer and logs with additional context
func (t *Timer) StopWithContext(context map[string]interface{}) time.Duration {
	if !t.enabled {
		return 0
	}

	duration := time.Since(t.start)

	event := t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds())

	for key, value := range context {
		switch v := value.(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	event.Msg("Performance measurement")

	if duration > t.verySlow {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected")
	} else if duration > t.slow {
		t.log.Info().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Operation took longer than expected")
	}

	return duration
}

// Disable disables the timer
func (t *Timer) Disable() {
	t.enabled = false
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func RefreshPrices() {
//	    defer utils.OperationTimer("refresh_prices", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	timer := NewTimer(operation, log)
	return func() {
		timer.Stop()
	}
}

// MeasureDBQuery measures database query performance
func MeasureDBQuery(queryName string, log zerolog.Logger) func(rowsAffected int64) {
	start := time.Now()

	return func(rowsAffected int64) {
		duration := time.Since(start)

		log.Debug().
			Str("query", queryName).
			Dur("duration_ms", duration).
			Int64("rows_affected", rowsAffected).
			Msg("Database query completed")

		if duration > 5*time.Second {
			log.Warn().
				Str("query", queryName).
				Dur("duration", duration).
				Int64("rows_affected", rowsAffected).
				Msg("Slow database query detected")
		}
	}
}
