package display

import (
	"log/slog"
	"sync"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/jonboulle/clockwork"
)

const DefaultTransition = 300 * time.Millisecond

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseShowing
	PhaseTransitioning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseShowing:
		return "showing"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// State is what the screen shows. While transitioning, Index is the
// outgoing item and Next the incoming one; otherwise they are equal.
// Item is the item at Index, nil when idle.
type State struct {
	Phase Phase
	Index int
	Next  int
	Item  *domain.PlaylistItem
}

// Scheduler rotates through the latest playlist, showing each item for its
// duration with a short transition in between. At most one timer is live;
// a timer that fires after being replaced does nothing.
type Scheduler struct {
	clock      clockwork.Clock
	transition time.Duration
	onChange   func(State)

	mu         sync.Mutex
	items      []domain.PlaylistItem
	phase      Phase
	cursor     int
	next       int
	timer      clockwork.Timer
	generation uint64
	stopped    bool
}

type SchedulerOption func(*Scheduler)

func WithTransition(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.transition = d }
}

// WithOnChange sets a callback run after every state change. It runs
// outside the scheduler's lock and may call State.
func WithOnChange(fn func(State)) SchedulerOption {
	return func(s *Scheduler) { s.onChange = fn }
}

func NewScheduler(clock clockwork.Clock, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:      clock,
		transition: DefaultTransition,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the playlist. The cursor only moves when the list became
// empty, the scheduler was idle, or the cursor fell off the end; otherwise
// the current item keeps its running dwell timer.
func (s *Scheduler) Update(items []domain.PlaylistItem) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.items = append(s.items[:0:0], items...)
	switch {
	case len(s.items) == 0:
		s.idleLocked()
	case s.phase == PhaseIdle, s.cursor >= len(s.items):
		s.showLocked(0)
	case s.phase == PhaseTransitioning:
		s.next = s.successorLocked()
	}
	state := s.stateLocked()
	s.mu.Unlock()

	s.emit(state)
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Stop cancels the live timer. Later updates are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.disarmLocked()
}

func (s *Scheduler) idleLocked() {
	s.disarmLocked()
	s.phase = PhaseIdle
	s.cursor, s.next = 0, 0
}

func (s *Scheduler) showLocked(i int) {
	s.phase = PhaseShowing
	s.cursor, s.next = i, i
	s.armLocked(dwell(s.items[i]), s.dwellExpired)
}

func (s *Scheduler) dwellExpired() {
	if len(s.items) == 0 {
		s.idleLocked()
		return
	}
	s.phase = PhaseTransitioning
	s.next = s.successorLocked()
	s.armLocked(s.transition, s.transitionDone)
}

func (s *Scheduler) transitionDone() {
	if len(s.items) == 0 {
		s.idleLocked()
		return
	}
	// The list may have changed while fading.
	s.showLocked(s.successorLocked())
}

func (s *Scheduler) successorLocked() int {
	return (s.cursor + 1) % len(s.items)
}

func (s *Scheduler) armLocked(d time.Duration, fn func()) {
	s.disarmLocked()
	gen := s.generation
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen, fn) })
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}

func (s *Scheduler) fire(gen uint64, fn func()) {
	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	fn()
	state := s.stateLocked()
	s.mu.Unlock()

	s.emit(state)
}

func (s *Scheduler) stateLocked() State {
	st := State{Phase: s.phase, Index: s.cursor, Next: s.next}
	if s.phase != PhaseIdle && s.cursor < len(s.items) {
		item := s.items[s.cursor]
		st.Item = &item
	}
	return st
}

func (s *Scheduler) emit(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

// dwell is the item's display time, clamped to the allowed range.
func dwell(item domain.PlaylistItem) time.Duration {
	seconds := item.DurationSeconds
	if !domain.ValidDuration(seconds) {
		slog.Warn("Item duration out of range, clamping", "item_id", item.ID, "duration_seconds", seconds)
		seconds = max(domain.MinDurationSeconds, min(seconds, domain.MaxDurationSeconds))
	}
	return time.Duration(seconds) * time.Second
}
