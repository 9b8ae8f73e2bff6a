package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous; each subscriber sees events in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(JobCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event is generic over the concrete type, so dispatch on it here.
	switch e := ev.(type) {
	case RunStartedEvent:
		event.Publish(b.dispatcher, e)
	case StepChangedEvent:
		event.Publish(b.dispatcher, e)
	case JobProgressEvent:
		event.Publish(b.dispatcher, e)
	case PassCompletedEvent:
		event.Publish(b.dispatcher, e)
	case JobCompletedEvent:
		event.Publish(b.dispatcher, e)
	case JobFailedEvent:
		event.Publish(b.dispatcher, e)
	case TrackExtractedEvent:
		event.Publish(b.dispatcher, e)
	case PackagedEvent:
		event.Publish(b.dispatcher, e)
	case RunFinishedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler's parameter type selects which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e JobFailedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RunStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StepChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PassCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TrackExtractedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PackagedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a typed subscription to a channel for
// select-loop consumers. Events are dropped when the channel is full so a
// slow reader never stalls the pipeline.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
