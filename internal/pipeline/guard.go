package pipeline

import "sync"

// Guard is the run latch of one stage instance. At most one run holds it at a
// time; a trigger while it is held is suppressed, not queued. Every run is
// tagged with a generation so that a result produced for a superseded input
// can be recognised and discarded.
type Guard struct {
	mu         sync.Mutex
	running    bool
	generation uint64
}

// TryAcquire sets the latch and returns the generation of the new run.
// ok is false when a run is already in flight.
func (g *Guard) TryAcquire() (generation uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return 0, false
	}
	g.running = true
	g.generation++
	return g.generation, true
}

// Release clears the latch. Call it in a defer so it runs on success and failure alike.
func (g *Guard) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// Running reports whether a run holds the latch.
func (g *Guard) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Supersede advances the generation so that the in-flight run, if any, becomes stale.
// The latch is left untouched.
func (g *Guard) Supersede() {
	g.mu.Lock()
	g.generation++
	g.mu.Unlock()
}

// Current reports whether generation is still the latest.
func (g *Guard) Current(generation uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation == generation
}
