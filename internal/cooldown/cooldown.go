// Package cooldown throttles how often each actor may invoke a command.
//
// The gate lives in the caller layer: the lifecycle engine stays safe at
// arbitrary concurrency whether or not anyone throttles it.
package cooldown

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Gate enforces a minimum interval between commands per actor identity.
// The zero interval disables throttling. Safe for concurrent use.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	until    map[uuid.UUID]time.Time
	clock    func() time.Time
}

// New constructs a gate. clock nil defaults to time.Now.
func New(interval time.Duration, clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		interval: interval,
		until:    make(map[uuid.UUID]time.Time),
		clock:    clock,
	}
}

// Remaining reports how long the actor must still wait. Zero means the
// actor may act now.
func (g *Gate) Remaining(id uuid.UUID) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	d := g.until[id].Sub(g.clock())
	if d < 0 {
		return 0
	}
	return d
}

// Ready reports whether the actor's cooldown has elapsed.
func (g *Gate) Ready(id uuid.UUID) bool {
	return g.Remaining(id) == 0
}

// Arm starts the actor's cooldown. Called after a command is dispatched;
// help-style commands that skip Arm never throttle the actor.
func (g *Gate) Arm(id uuid.UUID) {
	if g.interval == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.until[id] = g.clock().Add(g.interval)
}
