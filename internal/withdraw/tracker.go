package withdraw

import (
	"sync"
	"time"
)

// Step is the stage of the withdrawal dialogue an identity is in
type Step int

const (
	StepNone Step = iota
	StepAwaitingPayoutInfo
	StepAwaitingAmount
)

type trackedStep struct {
	step    Step
	touched time.Time
}

// Tracker holds the per-identity conversation step. State is in-memory
// only; it does not survive a restart and does not need to.
type Tracker struct {
	mu    sync.Mutex
	steps map[string]trackedStep
	ttl   time.Duration
}

// NewTracker creates a tracker. A ttl of 0 disables expiry, matching the
// legacy behavior where an abandoned conversation can be resumed any
// time later.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		steps: make(map[string]trackedStep),
		ttl:   ttl,
	}
}

// Step returns the identity's current step, expiring stale entries
func (t *Tracker) Step(identity string) Step {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.steps[identity]
	if !ok {
		return StepNone
	}
	if t.ttl > 0 && time.Since(entry.touched) > t.ttl {
		delete(t.steps, identity)
		return StepNone
	}
	return entry.step
}

// Set records the identity's step
func (t *Tracker) Set(identity string, step Step) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if step == StepNone {
		delete(t.steps, identity)
		return
	}
	t.steps[identity] = trackedStep{step: step, touched: time.Now()}
}

// Clear resets the identity to StepNone
func (t *Tracker) Clear(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.steps, identity)
}
