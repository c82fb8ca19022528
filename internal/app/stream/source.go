// Package stream provides the rate-limited buffering source that sits between
// a remote track byte stream and the audio decoder.
package stream

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Defaults for Config.
const (
	DefaultInitialFlushBytes = 64 * 1024
	DefaultReadChunkBytes    = 16 * 1024
)

// TokenBucket grants flush permission. *ratelimit.Limiter satisfies it.
type TokenBucket interface {
	RemoveTokens(ctx context.Context, n int) error
}

// Opener opens the inbound byte stream of a track.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Config holds source configuration.
type Config struct {
	InitialFlushBytes int // Bytes to accumulate before the first flush
	ReadChunkBytes    int // Size of each read from the inbound stream
}

// Source buffers an inbound byte stream and re-emits it in flushes.
//
// The first flush waits until more than InitialFlushBytes are pending so the
// decoder can sniff the container format. Every flush costs one limiter token
// and flushes never overlap. End is signalled only after the last byte has
// been flushed.
type Source struct {
	mu sync.Mutex

	open    Opener
	limiter TokenBucket
	cfg     Config

	onData     []func([]byte)
	onEnd      []func()
	onProgress []func(float64)
	onError    []func(error)

	gen         uint64
	cancel      context.CancelFunc
	stream      io.ReadCloser
	opening     bool
	paused      bool
	gate        chan struct{} // closed while not paused
	pending     []byte
	threshold   int
	flushQueued bool
	eof         bool
	ended       bool
}

// NewSource creates a source reading from open and pacing flushes with limiter.
func NewSource(open Opener, limiter TokenBucket, cfg Config) *Source {
	if cfg.InitialFlushBytes <= 0 {
		cfg.InitialFlushBytes = DefaultInitialFlushBytes
	}
	if cfg.ReadChunkBytes <= 0 {
		cfg.ReadChunkBytes = DefaultReadChunkBytes
	}
	s := &Source{
		open:      open,
		limiter:   limiter,
		cfg:       cfg,
		threshold: cfg.InitialFlushBytes,
		gate:      make(chan struct{}),
	}
	close(s.gate)
	return s
}

// OnData registers a callback receiving each flushed buffer.
// The buffer is owned by the callee.
func (s *Source) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = append(s.onData, fn)
}

// OnEnd registers a callback invoked once all bytes have been flushed.
func (s *Source) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// OnProgress registers a callback receiving download progress in percent.
func (s *Source) OnProgress(fn func(float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = append(s.onProgress, fn)
}

// OnError registers a callback receiving inbound stream errors.
func (s *Source) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

// Start opens the stream, or resumes reading if it is paused.
// The stream lives until Reset or until ctx is cancelled.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stream != nil || s.opening {
		if s.paused {
			s.paused = false
			close(s.gate)
			zlog.Debug().Msg("stream: resumed")
		}
		s.mu.Unlock()
		return nil
	}
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.opening = true
	gen := s.gen
	genCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	r, err := s.open(genCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Reset while opening.
		if r != nil {
			_ = r.Close()
		}
		cancel()
		return nil
	}
	s.opening = false
	if err != nil {
		cancel()
		s.cancel = nil
		return errors.Wrap(err, "failed to open track stream")
	}
	s.stream = r
	zlog.Debug().Msgf("stream: opened: gen=%d", gen)
	go s.read(genCtx, gen, r)
	return nil
}

// Pause stops pulling from the inbound stream.
// Flushes already queued still fire.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.gate = make(chan struct{})
	zlog.Debug().Msg("stream: paused")
}

// Reset closes the stream and discards buffered bytes.
// The next Start reopens from the beginning.
func (s *Source) Reset() {
	s.mu.Lock()
	stream := s.stream
	cancel := s.cancel

	s.gen++
	s.stream = nil
	s.cancel = nil
	s.opening = false
	s.pending = nil
	s.threshold = s.cfg.InitialFlushBytes
	s.flushQueued = false
	s.eof = false
	s.ended = false
	if s.paused {
		s.paused = false
		close(s.gate)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			zlog.Debug().Err(err).Msg("stream: close on reset")
		}
	}
	zlog.Debug().Msg("stream: reset")
}

func (s *Source) read(ctx context.Context, gen uint64, r io.Reader) {
	buf := make([]byte, s.cfg.ReadChunkBytes)
	for {
		if !s.waitUnpaused(ctx, gen) {
			return
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.push(ctx, gen, buf[:n])
		}
		if errors.Is(err, io.EOF) {
			s.finish(ctx, gen)
			return
		}
		if err != nil {
			s.fail(gen, err)
			return
		}
	}
}

func (s *Source) waitUnpaused(ctx context.Context, gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	gate := s.gate
	s.mu.Unlock()

	select {
	case <-gate:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Source) push(ctx context.Context, gen uint64, chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.pending = append(s.pending, chunk...)
	s.queueFlushLocked(ctx, gen)
}

// queueFlushLocked queues a flush if enough bytes are pending and none is queued.
func (s *Source) queueFlushLocked(ctx context.Context, gen uint64) {
	if s.flushQueued || len(s.pending) <= s.threshold {
		return
	}
	s.flushQueued = true
	go s.flush(ctx, gen)
}

func (s *Source) finish(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.eof = true
	zlog.Debug().Msgf("stream: end of input: pending=%d", len(s.pending))
	if s.flushQueued {
		s.mu.Unlock()
		return
	}
	if len(s.pending) > 0 {
		s.flushQueued = true
		s.mu.Unlock()
		go s.flush(ctx, gen)
		return
	}
	s.mu.Unlock()
	s.end(gen)
}

func (s *Source) flush(ctx context.Context, gen uint64) {
	if err := s.limiter.RemoveTokens(ctx, 1); err != nil {
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	data := s.pending
	s.pending = nil
	s.threshold = 0
	observers := s.onData
	s.mu.Unlock()

	for _, fn := range observers {
		fn(data)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.flushQueued = false
	s.queueFlushLocked(ctx, gen)
	done := s.eof && !s.flushQueued
	s.mu.Unlock()

	if done {
		s.end(gen)
	}
}

func (s *Source) end(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	stream := s.stream
	s.stream = nil
	progress := s.onProgress
	ends := s.onEnd
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	zlog.Debug().Msgf("stream: ended: gen=%d", gen)
	for _, fn := range progress {
		fn(100)
	}
	for _, fn := range ends {
		fn()
	}
}

func (s *Source) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	observers := s.onError
	s.mu.Unlock()

	zlog.Warn().Err(err).Msg("stream: read failed")
	wrapped := errors.Wrap(err, "track stream read failed")
	for _, fn := range observers {
		fn(wrapped)
	}
}
