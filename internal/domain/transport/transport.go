// Package transport defines the contract between a playback session and the
// audio output that decodes and plays its bytes.
package transport

import "context"

// Kind is the type of a transport event.
type Kind int

const (
	KindDuration Kind = iota // Total duration became known
	KindProgress             // Playback position changed
	KindEnd                  // Output exhausted
	KindError                // Decode, output or stream failure
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindProgress:
		return "progress"
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a transport.
type Event struct {
	Kind Kind
	Ms   int64 // Duration or progress in milliseconds
	Err  error // Set for KindError
}

// Feed is the byte source a transport consumes. *stream.Source satisfies it.
type Feed interface {
	Start(ctx context.Context) error
	Pause()
	Reset()
	OnData(fn func([]byte))
	OnEnd(fn func())
	OnError(fn func(error))
}
