// Package eventstream publishes study client events to an event stream
// backend. Implementations live in subpackages.
package eventstream

import "context"

// Publisher publishes chat turn events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *ChatTurnEvent) error
	Close() error
}
