package realtime

import (
	"sync"
	"time"

	"github.com/example/autoride/internal/observability"
)

// Client is one realtime connection. Outbound events go through a bounded
// queue drained by a dedicated writer, so a slow peer never blocks
// publishers; when the queue is full the oldest event is dropped.
type Client struct {
	ID string

	gw   *Gateway
	sink Sink
	ride string // guarded by gw.mu

	mu     sync.Mutex // serializes enqueuers
	closed bool
	out    chan Event
	done   chan struct{}
}

// Ride returns the ride channel the client is currently in, if any.
func (c *Client) Ride() string {
	c.gw.mu.RLock()
	defer c.gw.mu.RUnlock()
	return c.ride
}

// Send queues an event for this client only, e.g. an error reply.
func (c *Client) Send(ev Event) {
	c.enqueue(ev)
}

func (c *Client) enqueue(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for {
		select {
		case c.out <- ev:
			return
		default:
		}
		// Queue full: only the writer can be draining concurrently, so after
		// one eviction the next send succeeds.
		select {
		case <-c.out:
			observability.RealtimeDropped.Inc()
		default:
		}
	}
}

func (c *Client) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Client) writeLoop() {
	defer c.sink.Close()
	pinger, _ := c.sink.(Pinger)
	var tick <-chan time.Time
	if pinger != nil {
		t := time.NewTicker(c.gw.pingEvery)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.out:
			if err := c.sink.Send(ev); err != nil {
				c.gw.log.Debug("realtime send failed", "client_id", c.ID, "error", err)
				c.gw.Disconnect(c)
				return
			}
		case <-tick:
			if err := pinger.Ping(); err != nil {
				c.gw.log.Debug("realtime ping failed", "client_id", c.ID, "error", err)
				c.gw.Disconnect(c)
				return
			}
		}
	}
}
