//go:build !((linux && cgo) || windows || darwin)

package device

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
)

// Available reports whether audio output is supported in this build.
// Audio requires cgo for the native sound libraries.
const Available = false

// Speaker is a silent device for builds without cgo. Streamers are drained
// in real time so playback still progresses and ends.
type Speaker struct {
	mu     sync.Mutex
	rate   beep.SampleRate
	buffer time.Duration
	mixer  beep.Mixer
	once   sync.Once
}

// NewSpeaker creates a silent speaker running at sampleRate.
func NewSpeaker(sampleRate int, buffer time.Duration) *Speaker {
	return &Speaker{rate: beep.SampleRate(sampleRate), buffer: buffer}
}

// Init starts draining streamers.
func (s *Speaker) Init() error {
	if s.buffer <= 0 {
		return errors.New("speaker buffer must be positive")
	}
	s.once.Do(func() { go s.drain() })
	return nil
}

func (s *Speaker) drain() {
	buf := make([][2]float64, s.rate.N(s.buffer))
	ticker := time.NewTicker(s.buffer)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		s.mixer.Stream(buf)
		s.mu.Unlock()
	}
}

// SampleRate returns the device sample rate.
func (s *Speaker) SampleRate() beep.SampleRate {
	return s.rate
}

// Play adds a streamer to the mix.
func (s *Speaker) Play(st beep.Streamer) {
	s.mu.Lock()
	s.mixer.Add(st)
	s.mu.Unlock()
}

// Lock locks the device.
func (s *Speaker) Lock() {
	s.mu.Lock()
}

// Unlock unlocks the device.
func (s *Speaker) Unlock() {
	s.mu.Unlock()
}

// Close clears all streamers.
func (s *Speaker) Close() {
	s.mu.Lock()
	s.mixer.Clear()
	s.mu.Unlock()
}
