// Package publish fans completed frames out to in-process subscribers and
// keeps the most recent frame for polling clients.
package publish

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/simpeaks/internal/ndarray"
)

// Config holds hub sizing.
type Config struct {
	// QueueSize is the depth of the shared inbound queue.
	QueueSize int
	// ClientBuffer is the per-subscriber channel depth.
	ClientBuffer int
	// MaxClients caps concurrent subscribers. 0 means unlimited.
	MaxClients int
}

// DefaultConfig returns the default hub sizing.
func DefaultConfig() Config {
	return Config{
		QueueSize:    64,
		ClientBuffer: 8,
		MaxClients:   16,
	}
}

// Hub implements acquire.Publisher. Publish never blocks: frames are dropped
// when the queue or a subscriber is full.
type Hub struct {
	config Config

	frameChan chan *ndarray.Array
	latest    atomic.Pointer[ndarray.Array]

	clients   map[string]chan *ndarray.Array
	clientsMu sync.RWMutex

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewHub creates a hub. Call Start before publishing.
func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	return &Hub{
		config:    cfg,
		frameChan: make(chan *ndarray.Array, cfg.QueueSize),
		clients:   make(map[string]chan *ndarray.Array),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the broadcast goroutine.
func (h *Hub) Start() {
	if h.running.Swap(true) {
		return
	}
	h.wg.Add(1)
	go h.broadcastLoop()
}

// Stop halts broadcasting and closes every subscriber channel.
func (h *Hub) Stop() {
	if !h.running.Swap(false) {
		return
	}
	close(h.stopCh)
	h.wg.Wait()

	h.clientsMu.Lock()
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.clientsMu.Unlock()
	log.Printf("[publish] hub stopped")
}

// Publish records a as the latest frame and queues it for subscribers.
// The hub takes ownership of a; it must not be modified afterwards.
func (h *Hub) Publish(a *ndarray.Array) {
	if a == nil {
		return
	}
	h.latest.Store(a)
	h.published.Add(1)
	if !h.running.Load() {
		return
	}
	select {
	case h.frameChan <- a:
	default:
		dropped := h.dropped.Add(1)
		log.Printf("[publish] queue full, dropped frame %d (total dropped: %d)", a.UniqueID, dropped)
	}
}

// Latest returns the most recently published frame, or nil.
func (h *Hub) Latest() *ndarray.Array {
	return h.latest.Load()
}

// Subscribe registers a new subscriber. The returned channel is closed by
// Unsubscribe or Stop. ok is false when MaxClients is reached.
func (h *Hub) Subscribe() (id string, frames <-chan *ndarray.Array, ok bool) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.config.MaxClients > 0 && len(h.clients) >= h.config.MaxClients {
		return "", nil, false
	}
	id = uuid.NewString()
	ch := make(chan *ndarray.Array, h.config.ClientBuffer)
	h.clients[id] = ch
	log.Printf("[publish] subscriber connected: %s (total: %d)", id, len(h.clients))
	return id, ch, true
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	ch, ok := h.clients[id]
	if !ok {
		return
	}
	close(ch)
	delete(h.clients, id)
	log.Printf("[publish] subscriber disconnected: %s (remaining: %d)", id, len(h.clients))
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		case a := <-h.frameChan:
			h.clientsMu.RLock()
			for _, ch := range h.clients {
				select {
				case ch <- a:
					h.delivered.Add(1)
				default:
					// Slow subscriber, drop for this one only.
					h.dropped.Add(1)
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Clients   int    `json:"clients"`
	Running   bool   `json:"running"`
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.clientsMu.RLock()
	n := len(h.clients)
	h.clientsMu.RUnlock()
	return Stats{
		Published: h.published.Load(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
		Clients:   n,
		Running:   h.running.Load(),
	}
}
