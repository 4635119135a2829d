package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type FrameKind int

const (
	FrameSnapshot FrameKind = iota
	FrameKeepAlive
)

func (k FrameKind) String() string {
	switch k {
	case FrameSnapshot:
		return "snapshot"
	case FrameKeepAlive:
		return "keepalive"
	default:
		return "unknown"
	}
}

// Frame is one outbound message. Data holds the encoded domain.Snapshot for
// FrameSnapshot and is empty for FrameKeepAlive.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Subscriber is the hub side of one display stream. The frames channel is
// never closed; Done is closed once the subscriber leaves the hub.
type Subscriber struct {
	id        uuid.UUID
	hub       *Hub
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSubscriber(h *Hub, bufferSize int) *Subscriber {
	return &Subscriber{
		id:     uuid.New(),
		hub:    h,
		frames: make(chan Frame, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) ID() uuid.UUID { return s.id }

func (s *Subscriber) Frames() <-chan Frame { return s.frames }

// Done is closed when the subscriber was unsubscribed or dropped.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// offer enqueues f without blocking. It reports false when the subscriber
// is closed or its buffer is full.
func (s *Subscriber) offer(f Frame) bool {
	if s.closed() {
		return false
	}
	select {
	case s.frames <- f:
		return true
	default:
		return false
	}
}

func (s *Subscriber) startPulse(interval time.Duration) {
	s.wg.Add(1)
	go s.pulse(interval)
}

func (s *Subscriber) pulse(interval time.Duration) {
	defer s.wg.Done()

	ticker := s.hub.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			if !s.offer(Frame{Kind: FrameKeepAlive}) {
				s.close()
				s.hub.removeAsync(s, dropReasonPulse)
				return
			}
			s.hub.metrics.IncFrames(FrameKeepAlive.String())
		}
	}
}
