package services

// Notifier pushes domain events to connected clients. Implementations must
// never block: events are emitted after the owning transaction commits and
// a slow consumer must not stall a service call.
type Notifier interface {
	Publish(tournamentID int, event string, payload interface{})
}

// NopNotifier discards all events. Used in tests and in tools that run the
// services without a live hub.
type NopNotifier struct{}

func (NopNotifier) Publish(tournamentID int, event string, payload interface{}) {}
