//go:build (linux && cgo) || windows || darwin

package device

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

// Available reports whether audio output is supported in this build.
const Available = true

// Speaker is the process-wide output device.
// The underlying speaker can only be initialised once per process.
type Speaker struct {
	once   sync.Once
	err    error
	rate   beep.SampleRate
	buffer time.Duration
}

// NewSpeaker creates a speaker running at sampleRate with the given buffer.
func NewSpeaker(sampleRate int, buffer time.Duration) *Speaker {
	return &Speaker{rate: beep.SampleRate(sampleRate), buffer: buffer}
}

// Init opens the device. Later calls return the first result.
func (s *Speaker) Init() error {
	s.once.Do(func() {
		if err := speaker.Init(s.rate, s.rate.N(s.buffer)); err != nil {
			s.err = errors.Wrap(err, "failed to initialize speaker")
			return
		}
		zlog.Info().Msgf("audio: speaker initialized: rate=%d buffer=%s", s.rate, s.buffer)
	})
	return s.err
}

// SampleRate returns the device sample rate.
func (s *Speaker) SampleRate() beep.SampleRate {
	return s.rate
}

// Play adds a streamer to the device mix.
func (s *Speaker) Play(st beep.Streamer) {
	speaker.Play(st)
}

// Lock locks the device.
func (s *Speaker) Lock() {
	speaker.Lock()
}

// Unlock unlocks the device.
func (s *Speaker) Unlock() {
	speaker.Unlock()
}

// Close clears all streamers and releases the device.
func (s *Speaker) Close() {
	speaker.Clear()
	speaker.Close()
}
