// Package transport implements the outbound side of every wire protocol a
// client-side queue can flush into: HTTP, gRPC, Kafka, RabbitMQ, and Redis.
// Each file implements the shared Producer interface behind that
// transport's own delivery, batching, and retry contract.
package transport

import (
	"context"

	"scouter/wire"
)

// Producer ships a materialized batch of wire.Record values from a
// queue.Queue to server ingestion. Implementations own their own
// retry/backoff and must honor ctx cancellation. Producer satisfies
// queue.Sink without this package importing queue.
type Producer interface {
	Send(ctx context.Context, records []wire.Record) error
	Close(ctx context.Context) error
}

// Auth holds the credentials HTTP and gRPC producers accept: either a
// (username, password) pair or a bearer token. Zero value means
// unauthenticated.
type Auth struct {
	Username string
	Password string
	Token    string
}

func (a Auth) hasBasic() bool { return a.Username != "" || a.Password != "" }
func (a Auth) hasToken() bool { return a.Token != "" }
