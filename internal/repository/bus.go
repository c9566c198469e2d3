package repository

// MessageBus is the fire-and-forget notification boundary. The broker gives
// at-least-once delivery; callers own retry and never block a saga on it.
type MessageBus interface {
	Publish(topic string, data []byte) error
}
