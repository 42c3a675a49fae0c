package usecase

import (
	"bibomarket/internal/infrastructure/events"
	"bibomarket/pkg/logger"
)

// EventPublisher is the outbound side of the view-event bus: controllers
// publish, renderers subscribe.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Resetter drops per-user controller state.
type Resetter interface {
	Reset()
}

// ResetOnSessionEnd resets every controller for each event received on
// endings, until the channel is closed.
func ResetOnSessionEnd(endings <-chan events.Event, controllers ...Resetter) {
	for range endings {
		logger.Info("Session ended, clearing controller state")
		for _, c := range controllers {
			c.Reset()
		}
	}
}
