// Package slot implements per-timeslot ownership: which upstream
// network currently holds timeslot 1 or 2, and the inactivity countdown
// that releases it. Each timeslot is a single clock-driven State rather
// than parallel owner/timer arrays; there are no goroutines or mutexes
// here — the dispatcher calls Clock once per tick from its own
// single-threaded loop.
package slot

import "fmt"

// Owner identifies which upstream network currently holds a timeslot.
type Owner int

const (
	None Owner = iota
	DmrNet1
	DmrNet2
	XlxRefl1
	XlxRefl2
)

func (o Owner) String() string {
	switch o {
	case None:
		return "none"
	case DmrNet1:
		return "DMR-1"
	case DmrNet2:
		return "DMR-2"
	case XlxRefl1:
		return "XLX-1"
	case XlxRefl2:
		return "XLX-2"
	default:
		return fmt.Sprintf("Owner(%d)", int(o))
	}
}

// State tracks the owner of one timeslot and its inactivity countdown.
// Timeout is in milliseconds, matching the resolution of Clock calls,
// so timing is not quantised to whole seconds.
type State struct {
	owner     Owner
	running   bool
	remaining int64
	Timeout   int64
}

// NewState creates a slot state with the given inactivity timeout in
// milliseconds. A State with Timeout <= 0 never expires on its own.
func NewState(timeoutMs int64) *State {
	return &State{Timeout: timeoutMs}
}

// Owner reports the current holder of the slot, or None if unclaimed.
func (s *State) Owner() Owner {
	return s.owner
}

// Claim assigns ownership to the given owner and (re)starts the
// inactivity countdown. It is always safe to re-claim by the same
// owner — this both refreshes the timer and is how the dispatcher
// treats "still talking" frames from the current owner.
func (s *State) Claim(o Owner) {
	s.owner = o
	s.running = true
	s.remaining = s.Timeout
}

// CanClaim reports whether o is allowed to take the slot: it is free,
// already idle-timed-out, or already owned by o.
func (s *State) CanClaim(o Owner) bool {
	return s.owner == None || s.owner == o
}

// Release frees the slot immediately, independent of the timer.
func (s *State) Release() {
	s.owner = None
	s.running = false
	s.remaining = 0
}

// Clock advances the inactivity countdown by elapsed milliseconds. When
// it reaches zero the slot is released.
func (s *State) Clock(elapsedMs int64) {
	if !s.running || s.Timeout <= 0 {
		return
	}

	s.remaining -= elapsedMs
	if s.remaining <= 0 {
		s.Release()
	}
}

// Slots holds the pair of timeslot states the gateway maintains — one
// for TS1, one for TS2 — indexed by the conventional slot numbers 1 and 2.
type Slots struct {
	slots [3]*State // index 0 unused, matches the original's 1-based slot numbering
}

// NewSlots builds a fresh pair of slot states sharing the same
// inactivity timeout.
func NewSlots(timeoutMs int64) *Slots {
	return &Slots{slots: [3]*State{nil, NewState(timeoutMs), NewState(timeoutMs)}}
}

// Get returns the state for timeslot 1 or 2. It panics on any other
// value, since a caller asking for slot 0 or 3 is a programming error,
// not a runtime condition to recover from.
func (s *Slots) Get(ts int) *State {
	if ts != 1 && ts != 2 {
		panic(fmt.Sprintf("slot: invalid timeslot %d", ts))
	}
	return s.slots[ts]
}

// Clock advances both timeslots' countdowns by elapsed milliseconds.
func (s *Slots) Clock(elapsedMs int64) {
	s.slots[1].Clock(elapsedMs)
	s.slots[2].Clock(elapsedMs)
}
