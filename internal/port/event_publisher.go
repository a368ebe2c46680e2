package port

import "context"

type EventPublisher interface {
	// Publish sends value under key; events sharing a key keep their order
	Publish(ctx context.Context, key string, value any) error
	Close() error
}
