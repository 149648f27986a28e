package engine

import (
	"context"
	"sync"
)

// ScriptedGenerator replays canned replies in order, repeating the
// last one when the script runs out. It keeps the offline simulator
// and tests deterministic and off the network.
type ScriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	next    int
}

// NewScriptedGenerator builds a generator over the given replies.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	return &ScriptedGenerator{replies: replies}
}

// Complete returns the next scripted reply.
func (g *ScriptedGenerator) Complete(_ context.Context, _ []ChatEntry) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.replies) == 0 {
		return `{"message": "...", "action": "none"}`, nil
	}
	reply := g.replies[g.next]
	if g.next < len(g.replies)-1 {
		g.next++
	}
	return reply, nil
}
