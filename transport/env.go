package transport

import "os"

// envOr reads key directly from the process environment, distinct from
// the application's own SCOUTER_-prefixed koanf configuration: client-side
// producers run inside SDK processes that never load the server's config
// tree, so the RabbitMQ and Redis transports read their own unprefixed
// environment variables through it.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
