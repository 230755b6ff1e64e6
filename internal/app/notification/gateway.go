// Package notification provides best-effort delivery of game events to
// participants subscribed over streaming RPC.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Everyone subscribes to every message regardless of addressing.
const Everyone = "*"

// Message kinds.
const (
	KindPhaseChanged    = "phase_changed"
	KindRoleAssigned    = "role_assigned"
	KindRolesReset      = "roles_reset"
	KindOutsideZone     = "outside_zone"
	KindPhotoSubmitted  = "photo_submitted"
	KindPhotoDecided    = "photo_decided"
	KindParticipantJoin = "participant_joined"
	KindParticipantLeft = "participant_left"
	KindSubscribed      = "subscribed"
	KindStartFailed     = "start_failed"
)

// Message is one notification.
type Message struct {
	SequenceNo uint64
	Kind       string
	SessionID  string
	Text       string
	Data       map[string]string
	CreatedAt  time.Time
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(Message) error
}

// Observer receives delivery outcomes. Implementations must not block.
type Observer interface {
	Delivered(kind string)
	Dropped(kind, reason string)
}

// Config represents gateway configuration.
type Config struct {
	QueueSize   int           // Pending deliveries before new ones are dropped
	RatePerSec  float64       // Delivery rate, 0 for unlimited
	Burst       int           // Rate limiter burst
	SendTimeout time.Duration // Per stream send
	Observer    Observer      // Optional
}

type delivery struct {
	recipients []string
	msg        Message
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	userID string
	stream Stream
}

// Gateway queues notifications and delivers them on a single worker.
// Notify never blocks the caller.
type Gateway struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex

	queue       chan delivery
	limiter     *rate.Limiter
	sendTimeout time.Duration
	observer    Observer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewGateway creates a new notification gateway.
func NewGateway(cfg Config) *Gateway {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 500 * time.Millisecond
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Gateway{
		subscriptions: make(map[string]*subscription),
		queue:         make(chan delivery, cfg.QueueSize),
		limiter:       rate.NewLimiter(limit, cfg.Burst),
		sendTimeout:   cfg.SendTimeout,
		observer:      cfg.Observer,
	}
}

// Start starts the delivery worker.
func (g *Gateway) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	go g.run(ctx)
}

// Close stops the worker and removes all subscriptions. Queued messages are
// discarded.
func (g *Gateway) Close() {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions = make(map[string]*subscription)
}

// Subscribe adds a stream for a user and returns the subscription ID.
// Use Everyone to receive all messages.
func (g *Gateway) Subscribe(userID string, stream Stream) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := uuid.New().String()
	g.subscriptions[id] = &subscription{
		id:     id,
		userID: userID,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (g *Gateway) Unsubscribe(subscriptionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subscriptions, subscriptionID)
}

// SubscriberCount returns the number of active subscribers.
func (g *Gateway) SubscriberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subscriptions)
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (g *Gateway) NextSequenceNo() uint64 {
	g.sequenceNoMu.Lock()
	defer g.sequenceNoMu.Unlock()
	g.sequenceNo++
	return g.sequenceNo
}

// Notify queues a message for the given recipients. It returns immediately;
// a full queue drops the message.
func (g *Gateway) Notify(recipients []string, msg Message) {
	if len(recipients) == 0 {
		return
	}
	msg.SequenceNo = g.NextSequenceNo()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	select {
	case g.queue <- delivery{recipients: append([]string(nil), recipients...), msg: msg}:
	default:
		zlog.Warn().
			Str("session_id", msg.SessionID).
			Msgf("notification dropped, queue full: kind=%s seq=%d", msg.Kind, msg.SequenceNo)
		g.dropped(msg.Kind, "queue_full")
	}
}

// Pending returns the number of queued deliveries.
func (g *Gateway) Pending() int {
	return len(g.queue)
}

func (g *Gateway) run(ctx context.Context) {
	defer close(g.done)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-g.queue:
			if err := g.limiter.Wait(ctx); err != nil {
				return
			}
			g.deliver(d)
		}
	}
}

// deliver sends a message to every matching subscription in parallel, each
// bounded by the send timeout.
func (g *Gateway) deliver(d delivery) {
	targets := make(map[string]bool, len(d.recipients))
	for _, r := range d.recipients {
		targets[r] = true
	}

	g.mu.RLock()
	subs := make([]*subscription, 0)
	for _, sub := range g.subscriptions {
		if sub.userID == Everyone || targets[sub.userID] {
			subs = append(subs, sub)
		}
	}
	g.mu.RUnlock()

	if len(subs) == 0 {
		zlog.Debug().Msgf("notification has no subscribers: kind=%s seq=%d", d.msg.Kind, d.msg.SequenceNo)
		g.dropped(d.msg.Kind, "no_subscriber")
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			if err := g.sendWithTimeout(s, d.msg); err != nil {
				zlog.Debug().Err(err).Msgf("notification send failed: subscription=%s kind=%s", s.id, d.msg.Kind)
				g.dropped(d.msg.Kind, "send_failed")
				return
			}
			if g.observer != nil {
				g.observer.Delivered(d.msg.Kind)
			}
		}(sub)
	}
	wg.Wait()
}

func (g *Gateway) sendWithTimeout(s *subscription, msg Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), g.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.stream.Send(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) dropped(kind, reason string) {
	if g.observer != nil {
		g.observer.Dropped(kind, reason)
	}
}
