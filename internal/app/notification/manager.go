// Package notification broadcasts core-to-UI events to remote subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultSendTimeout bounds one delivery to one subscriber.
const DefaultSendTimeout = 500 * time.Millisecond

// Notification field names.
const (
	FieldSequence = "seq"
	FieldName     = "name"
	FieldArgs     = "args"
)

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*structpb.Struct) error
}

type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
// Every notification carries a sequence number, so a subscriber can tell
// that its initial snapshot precedes the broadcasts that follow it.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sendTimeout   time.Duration

	seqMu sync.Mutex
	seq   uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
	}
}

// New builds a notification with the next sequence number.
func (m *Manager) New(name string, args ...any) (*structpb.Struct, error) {
	if args == nil {
		args = []any{}
	}
	m.seqMu.Lock()
	m.seq++
	seq := m.seq
	m.seqMu.Unlock()

	n, err := structpb.NewStruct(map[string]any{
		FieldSequence: seq,
		FieldName:     name,
		FieldArgs:     args,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode notification %s", name)
	}
	return n, nil
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{id: id, stream: stream}
	zlog.Debug().Msgf("subscriber added: id=%s total=%d", id, len(m.subscriptions))
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a notification to all subscribers in parallel and waits
// until each send finished or timed out. Subscribers whose send fails are
// dropped.
func (m *Manager) Broadcast(name string, args ...any) error {
	n, err := m.New(name, args...)
	if err != nil {
		return err
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
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
					zlog.Debug().Msgf("dropping subscriber after send error: id=%s error=%v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification send timed out: id=%s name=%s", s.id, name)
			}
		}(sub)
	}
	wg.Wait()
	return nil
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

// Decoded is a notification read back from the wire.
type Decoded struct {
	Sequence uint64
	Name     string
	Args     []any
}

// Decode unpacks a notification. Numbers come back as float64.
func Decode(n *structpb.Struct) (Decoded, error) {
	if n == nil {
		return Decoded{}, errors.New("nil notification")
	}
	fields := n.GetFields()

	name := fields[FieldName].GetStringValue()
	if name == "" {
		return Decoded{}, errors.New("notification has no name")
	}
	var args []any
	if list := fields[FieldArgs].GetListValue(); list != nil {
		args = list.AsSlice()
	}
	return Decoded{
		Sequence: uint64(fields[FieldSequence].GetNumberValue()),
		Name:     name,
		Args:     args,
	}, nil
}
