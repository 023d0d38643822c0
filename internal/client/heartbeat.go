package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HeartbeatInterval keeps a participant inside the server's 15 second
// freshness window with one beat to spare.
const HeartbeatInterval = 10 * time.Second

// Heartbeat repeats a presence call until stopped. Failed beats are logged
// and the loop carries on.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat sends one beat immediately and then every interval. The
// loop keeps ctx's values but not its cancellation; only Stop ends it.
func StartHeartbeat(ctx context.Context, interval time.Duration, beat func(context.Context) error, logger *slog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = HeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		send := func() {
			beatCtx, cancelBeat := context.WithTimeout(loopCtx, interval)
			defer cancelBeat()
			if err := beat(beatCtx); err != nil && loopCtx.Err() == nil {
				logger.WarnContext(beatCtx, "heartbeat failed", "error", err)
			}
		}

		send()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				send()
			}
		}
	}()

	return h
}

// Stop ends the loop and waits for an in-flight beat to finish. It is safe
// to call more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}
