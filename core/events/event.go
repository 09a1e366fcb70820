package events

// Event is implemented by every dispatch event.
type Event interface {
	// Kind is a short lowercase name used in topics and logs.
	Kind() string
	// Order returns the order identifier.
	Order() string
	// Riders returns the riders concerned by the event.
	Riders() []string
}

// Publisher receives dispatch events. eventbus.Bus satisfies it.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(e).
func (f PublisherFunc) Publish(e Event) { f(e) }
