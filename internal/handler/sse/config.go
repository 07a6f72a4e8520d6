package sse

import "time"

// Config tunes event streams.
type Config struct {
	// KeepAliveInterval stays under the idle timeout of proxies in front of
	// the server.
	KeepAliveInterval time.Duration

	// RetryInterval is the reconnect delay announced to the browser.
	RetryInterval time.Duration
}

// DefaultConfig pings every 10s and asks clients to retry after 3s.
func DefaultConfig() *Config {
	return &Config{KeepAliveInterval: 10 * time.Second, RetryInterval: 3 * time.Second}
}
