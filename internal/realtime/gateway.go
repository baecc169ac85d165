// Package realtime fans ride-scoped events out to connected clients. Each
// ride has a channel; a client listens to at most one channel at a time.
package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/observability"
)

var (
	ErrChannelFull   = errors.New("ride channel is full")
	ErrNotConnected  = errors.New("client is not connected")
	ErrMissingRideID = errors.New("rideId required")
)

const (
	DefaultMaxSubscribers = 16
	DefaultQueueSize      = 32
	// DefaultPingInterval must stay below the peer's read deadline.
	DefaultPingInterval = 54 * time.Second
)

// Sink is the transport behind a client, typically a websocket connection.
// Send is only ever called from the client's writer goroutine.
type Sink interface {
	Send(ev Event) error
	Close() error
}

// Pinger is implemented by sinks that keep the peer alive with control
// frames. Ping is called from the writer goroutine, like Send.
type Pinger interface {
	Ping() error
}

type Options struct {
	MaxSubscribers int           // per ride channel
	QueueSize      int           // per client outbound queue
	PingInterval   time.Duration // for sinks that implement Pinger
}

type Gateway struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
	last     map[string]Event // last location-update per ride

	maxSubs   int
	queueSize int
	pingEvery time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func New(opts Options, log *slog.Logger) *Gateway {
	if opts.MaxSubscribers <= 0 {
		opts.MaxSubscribers = DefaultMaxSubscribers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		clients:   make(map[*Client]struct{}),
		channels:  make(map[string]map[*Client]struct{}),
		last:      make(map[string]Event),
		maxSubs:   opts.MaxSubscribers,
		queueSize: opts.QueueSize,
		pingEvery: opts.PingInterval,
		log:       log,
		now:       time.Now,
	}
}

// Connect registers a client and starts its writer goroutine.
func (g *Gateway) Connect(id string, sink Sink) *Client {
	c := &Client{
		ID:   id,
		gw:   g,
		sink: sink,
		out:  make(chan Event, g.queueSize),
		done: make(chan struct{}),
	}
	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
	observability.RealtimeClients.Inc()
	go c.writeLoop()
	g.log.Debug("realtime client connected", "client_id", id)
	return c
}

// Subscribe moves c into the channel of rideID, leaving any previous channel.
func (g *Gateway) Subscribe(c *Client, rideID string) error {
	if rideID == "" {
		return ErrMissingRideID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.clients[c]; !ok {
		return ErrNotConnected
	}
	if c.ride == rideID {
		return nil
	}
	members := g.channels[rideID]
	if len(members) >= g.maxSubs {
		return ErrChannelFull
	}
	g.leaveLocked(c)
	if members == nil {
		members = make(map[*Client]struct{})
		g.channels[rideID] = members
	}
	members[c] = struct{}{}
	c.ride = rideID
	return nil
}

// Unsubscribe removes c from rideID's channel. It is a no-op when c is not
// in that channel.
func (g *Gateway) Unsubscribe(c *Client, rideID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c.ride == rideID {
		g.leaveLocked(c)
	}
}

// Disconnect forgets c and stops its writer. Safe to call more than once.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	_, ok := g.clients[c]
	if ok {
		g.leaveLocked(c)
		delete(g.clients, c)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	c.stop()
	observability.RealtimeClients.Dec()
	g.log.Debug("realtime client disconnected", "client_id", c.ID)
}

// PublishLocation sends a location-update to the ride's channel and records
// it as the ride's last known driver position. Reports without a ride only
// reach the directory, not the gateway.
func (g *Gateway) PublishLocation(driverID string, lat, lng float64, rideID string) int {
	if rideID == "" {
		return 0
	}
	ev := locationEvent(driverID, lat, lng, rideID)
	g.mu.Lock()
	g.last[rideID] = ev
	g.mu.Unlock()
	return g.broadcast(rideID, ev)
}

// PublishChat relays a chat message to every subscriber of the ride,
// including the sender.
func (g *Gateway) PublishChat(rideID, from, text string) int {
	now := g.now()
	return g.broadcast(rideID, Event{Type: TypeChat, RideID: rideID, From: from, Text: text, Time: &now})
}

// Notify turns a ledger event into a ride-status message. Terminal statuses
// also forget the ride's last location.
func (g *Gateway) Notify(re models.RideEvent) {
	at := re.At
	g.broadcast(re.RideID, Event{Type: TypeRideStatus, RideID: re.RideID, DriverID: re.DriverID, Status: re.Status, At: &at})
	if re.Status.Terminal() {
		g.mu.Lock()
		delete(g.last, re.RideID)
		g.mu.Unlock()
	}
}

// LastLocation returns the most recent location-update published for rideID.
func (g *Gateway) LastLocation(rideID string) (Event, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ev, ok := g.last[rideID]
	return ev, ok
}

// Subscribers reports the size of rideID's channel.
func (g *Gateway) Subscribers(rideID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.channels[rideID])
}

func (g *Gateway) broadcast(rideID string, ev Event) int {
	g.mu.RLock()
	members := make([]*Client, 0, len(g.channels[rideID]))
	for c := range g.channels[rideID] {
		members = append(members, c)
	}
	g.mu.RUnlock()

	for _, c := range members {
		c.enqueue(ev)
	}
	if len(members) > 0 {
		observability.RealtimeDelivered.WithLabelValues(ev.Type).Add(float64(len(members)))
	}
	return len(members)
}

// leaveLocked removes c from its current channel. g.mu must be held.
func (g *Gateway) leaveLocked(c *Client) {
	if c.ride == "" {
		return
	}
	if members := g.channels[c.ride]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(g.channels, c.ride)
		}
	}
	c.ride = ""
}
