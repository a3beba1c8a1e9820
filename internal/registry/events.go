package registry

// Event is one handle lifecycle notification: load_start, load_ready,
// load_error, unload_start, unload_done, train_done, save_done. Fields carry
// event-specific detail (durations, error text, checkpoint paths).
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives lifecycle events from handles. Publish is called
// while a transition is in flight, so implementations must not block and
// must not call back into the registry.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher drops events; the default when none is installed.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
