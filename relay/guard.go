package relay

import "sync"

// TurnGuard serializes turns per session within this process. A second turn
// arriving while one is in flight on the same session is rejected instead of
// interleaving persisted messages.
type TurnGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewTurnGuard() *TurnGuard {
	return &TurnGuard{inflight: make(map[string]struct{})}
}

// TryAcquire marks the session as having a turn in flight. It returns false
// if one already is.
func (g *TurnGuard) TryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[sessionID]; busy {
		return false
	}
	g.inflight[sessionID] = struct{}{}
	return true
}

// Release clears the in-flight mark for the session
func (g *TurnGuard) Release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, sessionID)
}
