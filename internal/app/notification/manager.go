// Package notification provides the notification manager for broadcasting state changes.
package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// sendTimeout bounds a single subscriber send.
const sendTimeout = 500 * time.Millisecond

// ErrStreamFull is returned by a ChannelStream whose buffer is full.
var ErrStreamFull = errors.New("notification stream is full")

// Notification tells subscribers that the session state changed.
// Subscribers re-read the state; the notification carries no payload.
type Notification struct {
	Sequence uint64 // Strictly increasing per manager
	Reason   string // Command or event that caused the change
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequence      atomic.Uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a notification with the next sequence number to all
// subscribers. Each send runs in its own goroutine with a timeout.
func (m *Manager) Broadcast(reason string) *Notification {
	n := &Notification{Sequence: m.sequence.Add(1), Reason: reason}

	m.mu.RLock()
	subs := lo.Values(m.subscriptions)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil && !errors.Is(err, ErrStreamFull) {
					zlog.Debug().Err(err).Msgf("notification: dropping subscriber %s", s.id)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send to %s timed out", s.id)
			}
		}(sub)
	}

	wg.Wait()
	return n
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

// ChannelStream delivers notifications on a buffered channel.
// A full buffer drops the notification; readers only need the latest state.
type ChannelStream struct {
	ch chan *Notification
}

// NewChannelStream creates a channel stream with the given buffer size.
func NewChannelStream(size int) *ChannelStream {
	if size < 1 {
		size = 1
	}
	return &ChannelStream{ch: make(chan *Notification, size)}
}

// Send implements Stream.
func (s *ChannelStream) Send(n *Notification) error {
	select {
	case s.ch <- n:
		return nil
	default:
		return ErrStreamFull
	}
}

// C returns the receive channel.
func (s *ChannelStream) C() <-chan *Notification {
	return s.ch
}
