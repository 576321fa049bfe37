// Package keepalive runs the idle-prevention side task: a periodic no-op
// input that stops a display from sleeping mid-broadcast. The actual input
// simulation is an injected capability; this package owns only the schedule
// and lifecycle.
package keepalive

import (
	"sync"
	"time"

	"github.com/pithecene-io/prism/log"
)

// Clicker simulates one no-op input event.
type Clicker interface {
	Click() error
}

// Start launches the keep-alive loop, clicking every interval until the
// returned stop function is called. Stop is idempotent.
//
// A nil clicker means the capability is unavailable on this build; Start
// warns once and returns a no-op stop so callers need no special casing.
func Start(clicker Clicker, interval time.Duration, logger *log.Logger) (stop func()) {
	if clicker == nil {
		logger.Warn("keep-awake requested but no input capability is available", nil)
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		logger.Info("keep-awake enabled", map[string]any{"interval": interval.String()})
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := clicker.Click(); err != nil {
					// The capability broke (screen locked, device gone).
					// Stop quietly rather than spamming faults on a side task.
					logger.Warn("keep-awake click failed, disabling", map[string]any{
						"error": err.Error(),
					})
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-stopped
	}
}
