// Package notification provides the notification manager for broadcasting
// playback activity to admin subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Type represents a notification type.
type Type string

const (
	TypeTrackStarted Type = "track_started"
	TypeTrackEnded   Type = "track_ended"
	TypeTrackSkipped Type = "track_skipped"
	TypeStateChanged Type = "state_changed"
	TypeQueueEmpty   Type = "queue_empty"
	TypeStartFailed  Type = "start_failed"
	TypeStopped      Type = "stopped"
)

// Notification is one broadcast message.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       Type      `json:"type"`
	GuildID    string    `json:"guild_id"`
	Title      string    `json:"title,omitempty"`
	Requester  string    `json:"requester,omitempty"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id      string
	guildID string // Empty receives every guild
	stream  Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
// An empty guildID subscribes to every guild.
func (m *Manager) Subscribe(guildID string, stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:      id,
		guildID: guildID,
		stream:  stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast stamps a sequence number on n and sends it to every matching
// subscriber. Each send runs in its own goroutine with a timeout so a slow
// subscriber cannot hold up the others.
func (m *Manager) Broadcast(n *Notification) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.guildID == "" || sub.guildID == n.GuildID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: subscription_id=%s type=%s error=%v", s.id, n.Type, err)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: subscription_id=%s type=%s guild_id=%s", s.id, n.Type, n.GuildID)
			}
		}(sub)
	}
	wg.Wait()
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
