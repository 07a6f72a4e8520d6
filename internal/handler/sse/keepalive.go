package sse

import (
	"context"
	"time"
)

// Pinger writes keep-alive comments to a stream.
type Pinger interface {
	WriteKeepAlive() error
}

// KeepAlive pings p every interval until ctx ends or a write fails. The
// returned channel receives the write error, if any, and is closed when the
// pinging stops.
func KeepAlive(ctx context.Context, p Pinger, interval time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.WriteKeepAlive(); err != nil {
					done <- err
					return
				}
			}
		}
	}()
	return done
}
