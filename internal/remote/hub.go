package remote

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tunehaven/tunehaven/internal/metrics"
)

// TokenTTL is how long an issued pairing token stays usable after it was
// issued or last had a socket join it.
const TokenTTL = 12 * time.Hour

type Role string

const (
	RolePlayer     Role = "player"
	RoleController Role = "controller"
)

// pairing groups the sockets sharing one token.
type pairing struct {
	player      *client
	controllers map[*client]struct{}
}

// Hub relays messages between the player and controllers of each pairing.
// Only tokens handed out by Issue may be joined.
type Hub struct {
	mu       sync.Mutex
	pairings map[string]*pairing
	issued   map[string]time.Time // token to expiry
	ttl      time.Duration
	now      func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		pairings: make(map[string]*pairing),
		issued:   make(map[string]time.Time),
		ttl:      TokenTTL,
		now:      time.Now,
	}
}

// Issue returns a fresh pairing token and forgets expired ones that no
// socket is using.
func (h *Hub) Issue() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for token, exp := range h.issued {
		if _, busy := h.pairings[token]; !busy && now.After(exp) {
			delete(h.issued, token)
		}
	}
	token := uuid.NewString()
	h.issued[token] = now.Add(h.ttl)
	return token
}

// Valid reports whether token was issued and has not expired. A token with
// sockets still attached stays valid.
func (h *Hub) Valid(token string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	exp, ok := h.issued[token]
	if !ok {
		return false
	}
	if _, busy := h.pairings[token]; busy {
		return true
	}
	return !h.now().After(exp)
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.issued[c.token]; ok {
		h.issued[c.token] = h.now().Add(h.ttl)
	}

	p, ok := h.pairings[c.token]
	if !ok {
		p = &pairing{controllers: make(map[*client]struct{})}
		h.pairings[c.token] = p
	}
	switch c.role {
	case RolePlayer:
		if p.player != nil {
			p.player.close()
		}
		p.player = c
	case RoleController:
		p.controllers[c] = struct{}{}
	}
	metrics.RemoteConnections.Inc()
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	metrics.RemoteConnections.Dec()
	p, ok := h.pairings[c.token]
	if !ok {
		return
	}
	switch c.role {
	case RolePlayer:
		if p.player != c {
			return
		}
		p.player = nil
		for ctl := range p.controllers {
			ctl.deliver(disconnectedMessage)
		}
	case RoleController:
		delete(p.controllers, c)
	}
	if p.player == nil && len(p.controllers) == 0 {
		delete(h.pairings, c.token)
	}
}

// toPlayer forwards a controller command. It reports whether a player was connected.
func (h *Hub) toPlayer(token string, msg []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pairings[token]
	if !ok || p.player == nil {
		return false
	}
	p.player.deliver(msg)
	return true
}

func (h *Hub) toControllers(token string, msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pairings[token]
	if !ok {
		return 0
	}
	for ctl := range p.controllers {
		ctl.deliver(msg)
	}
	return len(p.controllers)
}

// Connected reports whether the token has a player and how many controllers.
func (h *Hub) Connected(token string) (player bool, controllers int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pairings[token]
	if !ok {
		return false, 0
	}
	return p.player != nil, len(p.controllers)
}
