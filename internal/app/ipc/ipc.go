// Package ipc provides the asynchronous named-event channel that connects the
// playback state machine to the UI and to the streaming backend.
//
// A Pipe has two independent directions. Sending never blocks and delivery
// within one direction is FIFO. Messages carry no request/response
// correlation: every event name is unambiguous on its own.
package ipc

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// Message is one named event with positional arguments.
type Message struct {
	Name string
	Args []any
}

// Endpoint is one side of a pipe.
type Endpoint struct {
	name string
	out  *mailbox
	in   *mailbox
}

// NewPipe creates a connected pair of endpoints.
// Whatever a sends, b receives, and the other way round.
func NewPipe(aName, bName string) (*Endpoint, *Endpoint) {
	ab := newMailbox()
	ba := newMailbox()
	a := &Endpoint{name: aName, out: ab, in: ba}
	b := &Endpoint{name: bName, out: ba, in: ab}
	return a, b
}

// Name returns the endpoint name used in logs.
func (e *Endpoint) Name() string {
	return e.name
}

// Send queues a message for the other side. It never blocks.
// Messages sent after Close are dropped.
func (e *Endpoint) Send(name string, args ...any) {
	msg := Message{Name: name, Args: append([]any(nil), args...)}
	if !e.out.put(msg) {
		zlog.Debug().Msgf("ipc: dropped message after close: endpoint=%s name=%s", e.name, name)
	}
}

// Messages returns the inbound message channel.
// The channel is closed once the endpoint is closed.
func (e *Endpoint) Messages() <-chan Message {
	return e.in.out
}

// Close shuts down both directions of the pipe.
func (e *Endpoint) Close() {
	e.out.close()
	e.in.close()
}

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg Message)

// Router dispatches messages to handlers by name.
type Router struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// On registers the handler for a message name, replacing any previous one.
func (r *Router) On(name string, h Handler) *Router {
	r.handlers[name] = h
	return r
}

// Otherwise registers the handler for names nobody claimed.
func (r *Router) Otherwise(h Handler) *Router {
	r.fallback = h
	return r
}

// Dispatch calls the handler registered for msg.Name.
// It reports whether any handler ran.
func (r *Router) Dispatch(ctx context.Context, msg Message) bool {
	if h, ok := r.handlers[msg.Name]; ok {
		h(ctx, msg)
		return true
	}
	if r.fallback != nil {
		r.fallback(ctx, msg)
		return true
	}
	zlog.Debug().Msgf("ipc: no handler for message: name=%s", msg.Name)
	return false
}

// Serve dispatches inbound messages of e one at a time until ctx is done or
// the endpoint is closed. Handlers never run concurrently with each other.
func Serve(ctx context.Context, e *Endpoint, r *Router) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-e.Messages():
			if !ok {
				return nil
			}
			r.Dispatch(ctx, msg)
		}
	}
}

// mailbox is an unbounded FIFO drained by a single pump goroutine.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool

	wake      chan struct{}
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		out:  make(chan Message),
		done: make(chan struct{}),
	}
	go m.pump()
	return m
}

func (m *mailbox) put(msg Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.queue = nil
		m.mu.Unlock()
		close(m.done)
	})
}

func (m *mailbox) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.wake:
				continue
			case <-m.done:
				return
			}
		}
		msg := m.queue[0]
		m.queue[0] = Message{}
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- msg:
		case <-m.done:
			return
		}
	}
}
