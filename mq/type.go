package mq

import (
	"context"
)

// Producer publishes firing events.
type Producer interface {
	Product(ctx context.Context, value []byte) error
	// Close flushes pending messages.
	Close() error
}

// Consumer reads firing events back.
type Consumer interface {
	// Consume calls callback for every message until ctx is done.
	Consume(ctx context.Context, callback func(value []byte) error) error
	Close() error
}
