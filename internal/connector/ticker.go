package connector

import (
	"sync"
	"time"
)

// Ticker drives CheckResults at a fixed cadence. It is the reference
// periodic driver; hosts with their own scheduler can call CheckResults
// directly instead.
type Ticker struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartTicker begins draining c every interval and attaches itself so
// c.Close stops it.
func StartTicker(c *Connector, interval time.Duration) *Ticker {
	t := &Ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.AttachDriver(t)

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.CheckResults(); err != nil {
					c.logger.Error("drain results", "error", err)
				}
			case <-t.stop:
				return
			}
		}
	}()

	return t
}

// Stop halts the tick loop and waits for it to exit. Safe to call more
// than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}
