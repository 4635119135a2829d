package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0x-mperego/unimec-display/internal/adapter/metrics"
	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultPulseInterval = 30 * time.Second

	defaultBufferSize      = 16
	defaultSnapshotTimeout = 5 * time.Second
	commandTimeout         = 5 * time.Second
	stopTimeout            = 10 * time.Second
	commandBufferSize      = 256

	dropReasonSlow  = "slow"
	dropReasonPulse = "pulse"
)

var ErrHubStopped = errors.New("broadcast hub stopped")

// SnapshotSource reads the live playlist in presentation order.
type SnapshotSource interface {
	ListOrdered(ctx context.Context) ([]domain.PlaylistItem, error)
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type subscribeCmd struct {
	baseHubCmd
	subscriber *Subscriber
	reply      chan error
}

type unsubscribeCmd struct {
	baseHubCmd
	subscriber *Subscriber
	reason     string
	ack        chan struct{} // nil when the sender does not wait
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

// Hub keeps every subscribed display supplied with the current ordered
// playlist. Construct it with NewHub and release it with Stop.
type Hub struct {
	source  SnapshotSource
	clock   clockwork.Clock
	metrics *metrics.HubMetrics

	cmdCh    chan hubCmd
	notifyCh chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	subscribers map[*Subscriber]struct{}

	pulseInterval   time.Duration
	bufferSize      int
	snapshotTimeout time.Duration
}

type Option func(*Hub)

func WithPulseInterval(d time.Duration) Option {
	return func(h *Hub) { h.pulseInterval = d }
}

// WithBufferSize sets how many frames a subscriber may have queued before
// it counts as slow.
func WithBufferSize(n int) Option {
	return func(h *Hub) { h.bufferSize = n }
}

func WithSnapshotTimeout(d time.Duration) Option {
	return func(h *Hub) { h.snapshotTimeout = d }
}

func WithMetrics(m *metrics.HubMetrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub and starts its actor goroutine.
func NewHub(source SnapshotSource, clock clockwork.Clock, opts ...Option) *Hub {
	h := &Hub{
		source:          source,
		clock:           clock,
		cmdCh:           make(chan hubCmd, commandBufferSize),
		notifyCh:        make(chan struct{}, 1),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		subscribers:     make(map[*Subscriber]struct{}),
		pulseInterval:   DefaultPulseInterval,
		bufferSize:      defaultBufferSize,
		snapshotTimeout: defaultSnapshotTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

// Attach registers NotifyChanged on feed and returns the func that detaches it.
func (h *Hub) Attach(feed domain.ChangeFeed) (detach func()) {
	return feed.OnChange(h.NotifyChanged)
}

// Subscribe registers a new subscriber. Its first frame is a snapshot of
// the current playlist; its keep-alive pulse starts once Subscribe returns.
func (h *Hub) Subscribe(ctx context.Context) (*Subscriber, error) {
	sub := newSubscriber(h, h.bufferSize)
	reply := make(chan error, 1)
	if err := h.send(ctx, subscribeCmd{subscriber: sub, reply: reply}); err != nil {
		return nil, err
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		h.Unsubscribe(sub)
		return nil, fmt.Errorf("subscribe cancelled: %w", ctx.Err())
	case <-timer.Chan():
		h.Unsubscribe(sub)
		return nil, fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	case <-h.done:
		return nil, ErrHubStopped
	}

	sub.startPulse(h.pulseInterval)
	return sub, nil
}

// Unsubscribe stops the subscriber's pulse and removes it from the
// registry before returning. Calling it again, or after the hub dropped
// the subscriber, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	sub.close()
	sub.wg.Wait()

	ack := make(chan struct{})
	select {
	case h.cmdCh <- unsubscribeCmd{subscriber: sub, ack: ack}:
	case <-h.quit:
		return
	case <-h.done:
		return
	}

	select {
	case <-ack:
	case <-h.done:
	}
}

// NotifyChanged schedules a snapshot fan-out. It never blocks; calls that
// arrive while one is already pending collapse into it.
func (h *Hub) NotifyChanged() {
	select {
	case h.notifyCh <- struct{}{}:
	default:
	}
}

// SubscriberCount returns the number of registered subscribers, or -1 if
// the hub did not answer in time.
func (h *Hub) SubscriberCount() int {
	reply := make(chan int, 1)
	if err := h.send(context.Background(), countCmd{reply: reply}); err != nil {
		return -1
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-timer.Chan():
		slog.Warn("SubscriberCount timed out", "timeout", commandTimeout)
		return -1
	case <-h.done:
		return -1
	}
}

// Stop closes every subscriber and waits for the actor to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Broadcast hub stopped")
	case <-timer.Chan():
		slog.Warn("Broadcast hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

// removeAsync asks the actor to drop sub without waiting for it.
func (h *Hub) removeAsync(sub *Subscriber, reason string) {
	select {
	case h.cmdCh <- unsubscribeCmd{subscriber: sub, reason: reason}:
	case <-h.quit:
	case <-h.done:
	}
}

func (h *Hub) send(ctx context.Context, cmd hubCmd) error {
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.quit:
		return ErrHubStopped
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcast hub panic recovered", "panic", r)
		}
		h.closeAll()
	}()

	for {
		select {
		case <-h.quit:
			return
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case subscribeCmd:
				h.handleSubscribe(c)
			case unsubscribeCmd:
				h.handleUnsubscribe(c)
			case countCmd:
				c.reply <- len(h.subscribers)
			default:
				slog.Warn("Broadcast hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-h.notifyCh:
			h.handleNotify()
		}
	}
}

func (h *Hub) handleSubscribe(c subscribeCmd) {
	if c.subscriber.closed() {
		c.reply <- errors.New("subscriber closed before registration")
		return
	}

	data, err := h.snapshot()
	if err != nil {
		c.reply <- err
		return
	}

	h.subscribers[c.subscriber] = struct{}{}
	c.subscriber.offer(Frame{Kind: FrameSnapshot, Data: data})
	h.metrics.IncFrames(FrameSnapshot.String())
	h.metrics.SetSubscribers(len(h.subscribers))

	slog.Debug("Subscriber registered", "subscriber_id", c.subscriber.id, "total_subscribers", len(h.subscribers))
	c.reply <- nil
}

func (h *Hub) handleUnsubscribe(c unsubscribeCmd) {
	if c.ack != nil {
		defer close(c.ack)
	}

	if _, ok := h.subscribers[c.subscriber]; !ok {
		return
	}
	delete(h.subscribers, c.subscriber)
	c.subscriber.close()
	h.metrics.SetSubscribers(len(h.subscribers))

	if c.reason != "" {
		h.metrics.IncDropped(c.reason)
		slog.Warn("Subscriber dropped", "subscriber_id", c.subscriber.id, "reason", c.reason)
		return
	}
	slog.Debug("Subscriber unregistered", "subscriber_id", c.subscriber.id, "remaining_subscribers", len(h.subscribers))
}

func (h *Hub) handleNotify() {
	data, err := h.snapshot()
	if err != nil {
		slog.Error("Skipping broadcast, snapshot failed", "error", err)
		return
	}
	h.metrics.IncBroadcasts()

	frame := Frame{Kind: FrameSnapshot, Data: data}
	var gone []unsubscribeCmd
	for sub := range h.subscribers {
		switch {
		case sub.closed():
			// Unsubscribing; its removal command is on the way.
			gone = append(gone, unsubscribeCmd{subscriber: sub})
		case sub.offer(frame):
			h.metrics.IncFrames(FrameSnapshot.String())
		default:
			gone = append(gone, unsubscribeCmd{subscriber: sub, reason: dropReasonSlow})
		}
	}

	for _, c := range gone {
		h.handleUnsubscribe(c)
	}
}

// snapshot reads and encodes the ordered playlist. The read is bounded so a
// hung store cannot stall the actor.
func (h *Hub) snapshot() ([]byte, error) {
	start := h.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.snapshotTimeout)
	defer cancel()

	items, err := h.source.ListOrdered(ctx)
	if err != nil {
		h.metrics.IncSnapshotErrors()
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("failed to load playlist snapshot: %w", err)
	}

	data, err := json.Marshal(domain.NewSnapshot(items, h.clock.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to encode playlist snapshot: %w", err)
	}

	h.metrics.ObserveSnapshot(h.clock.Since(start).Seconds())
	return data, nil
}

func (h *Hub) closeAll() {
	for sub := range h.subscribers {
		sub.close()
		delete(h.subscribers, sub)
	}
	h.metrics.SetSubscribers(0)
}
