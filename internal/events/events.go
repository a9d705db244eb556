// Package events carries outbound pipeline progress notifications consumed
// by UI layers. Publishing is fire-and-forget and never blocks pipeline work.
package events

import "go.uber.org/zap"

// Event is one progress notification from the gate pipeline or the
// bootstrap ingestion worker.
type Event struct {
	Source  string  // document id or dataset source name
	Stage   string  // pipeline stage or worker phase
	Percent float64 // 0..100, -1 when indeterminate
	Message string  // human-readable
}

// Publisher delivers progress events.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(e Event)

// Publish calls f(e).
func (f PublisherFunc) Publish(e Event) { f(e) }

// NewZapPublisher returns a publisher that logs events at Info level, the
// default sink when no UI transport is attached.
func NewZapPublisher(logger *zap.Logger) Publisher {
	return PublisherFunc(func(e Event) {
		logger.Info("pipeline progress",
			zap.String("source", e.Source),
			zap.String("stage", e.Stage),
			zap.Float64("percent", e.Percent),
			zap.String("message", e.Message),
		)
	})
}

// Nop returns a publisher that drops all events.
func Nop() Publisher {
	return PublisherFunc(func(Event) {})
}
