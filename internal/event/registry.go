package event

import (
	"fmt"
	"sort"
)

// Registry maps topic names to handlers. It is written once at service
// startup and read by the consumer loop; it is not safe for concurrent
// registration after Run starts. Each service builds its own instance
// from its own handler set; the shape is shared convention, not shared
// state.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for its topic. Registering two handlers for the
// same topic is a programming error and is rejected.
func (r *Registry) Register(h Handler) error {
	topic := h.Topic()
	if topic == "" {
		return fmt.Errorf("event: handler has empty topic")
	}
	if _, exists := r.handlers[topic]; exists {
		return fmt.Errorf("event: handler already registered for topic %s", topic)
	}
	r.handlers[topic] = h
	return nil
}

// MustRegister registers handlers and panics on error. For use in service
// startup where a duplicate registration is unrecoverable.
func (r *Registry) MustRegister(handlers ...Handler) {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// Dispatch returns the handler registered for a topic.
func (r *Registry) Dispatch(topic string) (Handler, bool) {
	h, ok := r.handlers[topic]
	return h, ok
}

// Topics returns the registered topic names, sorted.
func (r *Registry) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
