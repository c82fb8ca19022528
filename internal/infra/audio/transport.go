// Package audio provides the beep-backed audio transport: flushed bytes are
// decoded on the fly and played through a shared output device.
package audio

import (
	"bufio"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"

	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/domain/transport"
	zlog "github.com/rs/zerolog/log"
)

// Defaults for Config.
const (
	DefaultProgressInterval = 250 * time.Millisecond
	DefaultSampleBuffer     = 16384
	DefaultResampleQuality  = 4
)

var errStopped = errors.New("transport stopped")

// Output is the device samples are played on.
// Lock and Unlock guard state read by the device while it pulls samples.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

// Config holds transport configuration.
type Config struct {
	ProgressInterval time.Duration
	SampleBuffer     int // Decoded samples buffered ahead of the device
	ResampleQuality  int
}

// Transport plays one session's bytes.
type Transport struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	feed   transport.Feed
	out    Output
	track  *track.Track
	cfg    Config

	events chan transport.Event
	done   chan struct{}

	pr *io.PipeReader
	pw *io.PipeWriter

	ctrl     *beep.Ctrl // nil until the decoder is ready
	wantPlay bool

	samples chan [2]float64
	played  atomic.Int64 // samples handed to the device, at the device rate
	stopped atomic.Bool

	preloadOnce sync.Once
	stopOnce    sync.Once
	endOnce     sync.Once
	failOnce    sync.Once
}

// New creates a transport consuming feed. Nothing is read until Preload.
func New(ctx context.Context, feed transport.Feed, t *track.Track, out Output, cfg Config) *Transport {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.SampleBuffer <= 0 {
		cfg.SampleBuffer = DefaultSampleBuffer
	}
	if cfg.ResampleQuality <= 0 {
		cfg.ResampleQuality = DefaultResampleQuality
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	tr := &Transport{
		ctx:     ctx,
		cancel:  cancel,
		feed:    feed,
		out:     out,
		track:   t,
		cfg:     cfg,
		events:  make(chan transport.Event, 64),
		done:    make(chan struct{}),
		pr:      pr,
		pw:      pw,
		samples: make(chan [2]float64, cfg.SampleBuffer),
	}

	feed.OnData(tr.write)
	feed.OnEnd(func() { _ = pw.Close() })
	feed.OnError(func(err error) {
		_ = pw.CloseWithError(err)
		tr.fail(err)
	})
	return tr
}

// Events returns the transport event channel. It is never closed.
func (t *Transport) Events() <-chan transport.Event {
	return t.events
}

// Preload starts fetching and decoding without making sound.
func (t *Transport) Preload() {
	if t.stopped.Load() {
		return
	}
	t.preloadOnce.Do(func() {
		zlog.Debug().Msgf("audio: preloading: title=%q", t.track.Song.Title)
		go t.decodeLoop()
		go func() {
			if err := t.feed.Start(t.ctx); err != nil && !t.stopped.Load() {
				t.fail(err)
			}
		}()
	})
}

// Play starts or resumes output. Before the decoder is ready the intent is
// remembered.
func (t *Transport) Play() {
	t.Preload()
	t.setPaused(false)
}

// Pause pauses output.
func (t *Transport) Pause() {
	t.setPaused(true)
}

func (t *Transport) setPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped.Load() {
		return
	}
	t.wantPlay = !paused
	if t.ctrl != nil {
		t.out.Lock()
		t.ctrl.Paused = paused
		t.out.Unlock()
	}
}

// Stop releases the transport. It is idempotent.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped.Store(true)
		t.mu.Unlock()

		close(t.done)
		t.cancel()
		_ = t.pr.CloseWithError(errStopped)
		_ = t.pw.CloseWithError(errStopped)
		zlog.Debug().Msgf("audio: stopped: title=%q", t.track.Song.Title)
	})
}

func (t *Transport) write(b []byte) {
	if t.stopped.Load() {
		return
	}
	if _, err := t.pw.Write(b); err != nil && !errors.Is(err, errStopped) {
		zlog.Debug().Err(err).Msg("audio: dropped flush")
	}
}

func (t *Transport) decodeLoop() {
	br := bufio.NewReader(t.pr)
	header, err := br.Peek(sniffLen)
	if err != nil && len(header) == 0 {
		if !t.stopped.Load() {
			t.fail(errors.Wrap(err, "no audio data"))
		}
		return
	}

	container := Sniff(header)
	streamer, format, err := decode(container, struct {
		io.Reader
		io.Closer
	}{br, t.pr})
	if err != nil {
		if !t.stopped.Load() {
			t.fail(err)
		}
		return
	}
	defer streamer.Close()

	rate := t.out.SampleRate()
	duration := durationOf(streamer.Len(), format.SampleRate, t.track.Duration)
	zlog.Info().Msgf("audio: decoder ready: container=%s rate=%d duration=%s", container, format.SampleRate, duration)

	var source beep.Streamer = streamer
	if format.SampleRate != rate {
		source = beep.Resample(t.cfg.ResampleQuality, format.SampleRate, rate, streamer)
	}

	if !t.ready() {
		return
	}
	t.emit(transport.Event{Kind: transport.KindDuration, Ms: duration.Milliseconds()})
	go t.progressLoop(rate)

	buf := make([][2]float64, 512)
	for {
		n, ok := source.Stream(buf)
		for i := 0; i < n; i++ {
			select {
			case t.samples <- buf[i]:
			case <-t.done:
				return
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil && !t.stopped.Load() && !errors.Is(err, errStopped) {
		t.fail(errors.Wrap(err, "decode failed"))
		return
	}
	close(t.samples)
}

// ready hands the output streamer to the device, paused unless Play was called.
func (t *Transport) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped.Load() {
		return false
	}
	t.ctrl = &beep.Ctrl{Streamer: &feeder{t: t}, Paused: !t.wantPlay}
	t.out.Play(t.ctrl)
	return true
}

func (t *Transport) progressLoop(rate beep.SampleRate) {
	ticker := time.NewTicker(t.cfg.ProgressInterval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			ms := rate.D(int(t.played.Load())).Milliseconds()
			if ms != last {
				last = ms
				t.emit(transport.Event{Kind: transport.KindProgress, Ms: ms})
			}
		}
	}
}

func (t *Transport) finish() {
	t.endOnce.Do(func() {
		zlog.Debug().Msgf("audio: drained: title=%q", t.track.Song.Title)
		// Called on the device goroutine, which must not block.
		go t.emit(transport.Event{Kind: transport.KindEnd})
	})
}

func (t *Transport) fail(err error) {
	t.failOnce.Do(func() {
		zlog.Warn().Err(err).Msgf("audio: failed: title=%q", t.track.Song.Title)
		t.emit(transport.Event{Kind: transport.KindError, Err: err})
	})
}

func (t *Transport) emit(ev transport.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}

// feeder is the device-side streamer. It never blocks: an empty buffer
// plays silence, a drained buffer ends the stream.
type feeder struct {
	t *Transport
}

func (f *feeder) Stream(samples [][2]float64) (int, bool) {
	t := f.t
	if t.stopped.Load() {
		return 0, false
	}
	for i := range samples {
		select {
		case s, ok := <-t.samples:
			if !ok {
				if i == 0 {
					t.finish()
					return 0, false
				}
				clear(samples[i:])
				return len(samples), true
			}
			samples[i] = s
			t.played.Add(1)
		default:
			samples[i] = [2]float64{}
		}
	}
	return len(samples), true
}

func (f *feeder) Err() error {
	return nil
}

// durationOf prefers the decoder's length and falls back to the track hint.
func durationOf(samples int, rate beep.SampleRate, hint time.Duration) time.Duration {
	if samples > 0 {
		return rate.D(samples)
	}
	return hint
}
