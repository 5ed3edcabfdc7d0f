package main

import (
	"context"
	"crypto/rand"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type client struct {
	id       string // connection id
	identity Identity
	local    bool // in-process, no websocket pumps behind it
	send     chan any
}

type request struct {
	c   *client
	msg ClientMessage
}

// Hub owns one wheel session: the authoritative store, the connected
// clients with their per-collection subscriptions, and the session's turn
// orchestrator. Every state change flows through the run loop, so events
// are delivered to each subscriber in commit order, and a new subscriber's
// snapshot replay cannot interleave with a mutation.
type Hub struct {
	id    string
	cfg   *Config
	store *Store
	clock clockwork.Clock

	register chan *client
	unreg    chan *client
	requests chan request
	frames   chan any

	clients map[*client]bool
	subs    map[*client]map[Collection]bool

	lastWheel *WheelStateMessage

	mu         sync.RWMutex
	lastActive time.Time

	cancel context.CancelFunc
}

func newHub(cfg *Config, id string, clock clockwork.Clock, rng *mathrand.Rand) *Hub {
	h := &Hub{
		id:         id,
		cfg:        cfg,
		store:      newStore(),
		clock:      clock,
		register:   make(chan *client),
		unreg:      make(chan *client),
		requests:   make(chan request, 64),
		frames:     make(chan any, 64),
		clients:    make(map[*client]bool),
		subs:       make(map[*client]map[Collection]bool),
		lastActive: clock.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go h.run(ctx)

	orc := newOrchestrator(h, clock, rng, cfg.spinDuration, cfg.countdown)
	go orc.run(ctx)

	return h
}

// newLocalClient attaches an in-process subscriber, used by the session's
// orchestrator and by tests. Local clients receive the same messages a
// websocket client would.
func (h *Hub) newLocalClient(identity Identity) *client {
	c := &client{
		id:       uuid.NewString(),
		identity: identity,
		local:    true,
		send:     make(chan any, 256),
	}
	h.register <- c

	return c
}

func (h *Hub) close() {
	h.cancel()
}

func (h *Hub) run(ctx context.Context) {
	done := ctx.Done()
	closing := false
	pumps := 0 // live websocket pump pairs, so shutdown knows when to exit

	for {
		select {
		case <-done:
			done = nil
			closing = true
			for c := range h.clients {
				h.drop(c)
			}
			if pumps == 0 {
				return
			}
			// Keep absorbing until every pump has unregistered.

		case c := <-h.register:
			if closing {
				// Refused; closing the channel shuts the pumps down, and
				// the read pump still unregisters on its way out.
				if !c.local {
					pumps++
				}
				close(c.send)

				continue
			}

			h.touch()
			if !c.local {
				pumps++
			}
			h.clients[c] = true
			h.subs[c] = make(map[Collection]bool)

			// Presence is permanent for the session: a reconnect with a
			// known identity re-affirms the row without an event.
			if c.identity != "" {
				h.broadcast(h.store.Connect(c.identity))
			}

		case c := <-h.unreg:
			if !c.local {
				pumps--
			}
			if closing {
				if pumps == 0 {
					return
				}

				continue
			}

			h.touch()
			if h.clients[c] {
				h.drop(c)
			}
			// Disconnect deliberately mutates nothing.

		case req := <-h.requests:
			h.touch()
			h.handle(req)

		case msg := <-h.frames:
			if state, ok := msg.(WheelStateMessage); ok {
				h.lastWheel = &state
			}
			h.fanout(CollectionWheel, msg)
		}
	}
}

func (h *Hub) handle(req request) {
	c, msg := req.c, req.msg

	if !h.clients[c] {
		return
	}

	switch msg.Type {
	case "subscribe":
		for _, collection := range msg.Collections {
			h.subscribe(c, collection)
		}
	case "unsubscribe":
		for _, collection := range msg.Collections {
			delete(h.subs[c], collection)
		}
	case "rename":
		events, err := h.store.Rename(c.identity, msg.Name)
		if err != nil {
			h.sendTo(c, ErrorMessage{Type: "error", Field: "name", Message: err.Error()})

			return
		}
		h.broadcast(events)
	case "join_queue":
		h.broadcast(h.store.JoinQueue(c.identity))
	case "leave_queue":
		h.broadcast(h.store.LeaveQueue(c.identity))
	case "add_action":
		events, err := h.store.AddAction(c.identity, msg.Text)
		if err != nil {
			h.sendTo(c, ErrorMessage{Type: "error", Field: "action", Message: err.Error()})

			return
		}
		h.broadcast(events)
	case "remove_action":
		// The host UI only offers removal to VIPs; like the rest of the
		// request surface, the store itself does not gate it.
		h.broadcast(h.store.RemoveAction(msg.Owner, msg.Text))
	case "pop_queue":
		h.broadcast(h.store.PopQueue())
	default:
		// ignore unknown types
	}
}

// subscribe marks the collection for delivery and replays the current
// snapshot to this client first: one inserted event per existing row, then
// a snapshot_complete marker. Replay and the subscription mark happen in
// the same loop iteration, so no mutation can slip between them.
func (h *Hub) subscribe(c *client, collection Collection) {
	subs, ok := h.subs[c]
	if !ok || subs[collection] {
		return
	}
	subs[collection] = true

	if collection == CollectionWheel {
		if h.lastWheel != nil {
			h.sendTo(c, *h.lastWheel)
		}

		return
	}

	for _, ev := range h.store.Snapshot(collection) {
		msg, err := encodeEvent(ev)
		if err != nil {
			log.Error().Err(err).Str("session", h.id).Msg("encoding snapshot event")

			continue
		}
		if !h.sendTo(c, msg) {
			return
		}
	}

	h.sendTo(c, SnapshotCompleteMessage{Type: "snapshot_complete", Collection: collection})
}

func (h *Hub) broadcast(events []Event) {
	for _, ev := range events {
		msg, err := encodeEvent(ev)
		if err != nil {
			log.Error().Err(err).Str("session", h.id).Msg("encoding event")

			continue
		}

		for c := range h.clients {
			if h.subs[c][ev.Collection] {
				h.sendTo(c, msg)
			}
		}
	}
}

func (h *Hub) fanout(collection Collection, msg any) {
	for c := range h.clients {
		if h.subs[c][collection] {
			h.sendTo(c, msg)
		}
	}
}

// sendTo delivers without blocking the loop; a client that cannot keep up
// is dropped. It reports whether the client is still attached, so replay
// loops stop writing to a closed channel.
func (h *Hub) sendTo(c *client, msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		h.drop(c)

		return false
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	delete(h.subs, c)
	close(c.send)
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = h.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

// SessionManager holds a set of hubs keyed by session ID, so each
// /wheel/:sessionid is its own isolated game, and reaps sessions that sit
// idle longer than the configured timeout.
type SessionManager struct {
	mu    sync.Mutex
	hubs  map[string]*Hub
	cfg   *Config
	clock clockwork.Clock
}

func newSessionManager(cfg *Config, clock clockwork.Clock) *SessionManager {
	sm := &SessionManager{
		hubs:  make(map[string]*Hub),
		cfg:   cfg,
		clock: clock,
	}

	if cfg.sessionTimeout > 0 {
		go sm.reaperLoop()
	}

	return sm
}

func (sm *SessionManager) getHub(sessionID string) *Hub {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if hub, ok := sm.hubs[sessionID]; ok {
		return hub
	}

	hub := newHub(sm.cfg, sessionID, sm.clock, newRNG())
	sm.hubs[sessionID] = hub

	log.Info().Str("session", sessionID).Msg("session started")

	return hub
}

// newSessionID generates a crypto-random session ID and ensures it doesn't
// collide with a live session.
func (sm *SessionManager) newSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		sm.mu.Lock()
		_, exists := sm.hubs[id]
		sm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

func (sm *SessionManager) reaperLoop() {
	ticker := sm.clock.NewTicker(sm.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for range ticker.Chan() {
		cutoff := sm.clock.Now().Add(-sm.cfg.sessionTimeout)

		sm.mu.Lock()
		for id, hub := range sm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(sm.hubs, id)
				hub.close()

				log.Info().Str("session", id).Msg("reaped idle session")
			}
		}
		sm.mu.Unlock()
	}
}
