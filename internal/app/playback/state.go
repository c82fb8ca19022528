// Package playback provides the playlist/playback state machine.
//
// The machine is a pure reducer: Reduce takes an immutable State and a Command
// and returns the next State together with the effects it emitted. Player runs
// the reducer against the UI and backend channels.
package playback

import (
	"github.com/interfect/Kruna/internal/domain/playlist"
	"github.com/interfect/Kruna/internal/domain/song"
)

// PlayState represents whether playback is running.
type PlayState int

const (
	StatePaused  PlayState = iota // Nothing audible (also used for "stopped")
	StatePlaying                  // Audio should be coming out
)

// String returns the string representation of the state.
func (s PlayState) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Status is the playback status reported to the UI.
type Status struct {
	State      PlayState
	DurationMs int64
	ProgressMs int64
}

// State is a snapshot of the whole machine.
type State struct {
	Playlist       playlist.Playlist
	PlayingIndex   int // len(Playlist) means nothing is playing
	Status         Status
	AvailableSongs []song.Song
	NextNonce      int64
	SearchQuery    string

	// Nonce of the session last requested from the backend.
	// Transport events carrying any other nonce are stale.
	ActiveNonce int64
	HasActive   bool
}

// NowPlaying returns the entry under the play cursor, if any.
func (s State) NowPlaying() (song.Entry, bool) {
	return s.Playlist.At(s.PlayingIndex)
}

// Clone returns a deep copy of the slices held by the state.
func (s State) Clone() State {
	s.Playlist = s.Playlist.Clone()
	s.AvailableSongs = append([]song.Song(nil), s.AvailableSongs...)
	return s
}

// ToMap renders the state as a generic data model for the UI.
func (s State) ToMap() map[string]any {
	entries := make([]any, len(s.Playlist))
	for i, e := range s.Playlist {
		entries[i] = map[string]any{
			"song":  e.Song.ToMap(),
			"nonce": e.Nonce,
		}
	}

	m := map[string]any{
		"playlist":     entries,
		"playingIndex": int64(s.PlayingIndex),
		"playback": map[string]any{
			"state":    s.Status.State.String(),
			"duration": s.Status.DurationMs,
			"progress": s.Status.ProgressMs,
		},
		"availableSongs": song.ListToAny(s.AvailableSongs),
		"searchQuery":    s.SearchQuery,
		"nowPlaying":     nil,
	}
	if np, ok := s.NowPlaying(); ok {
		m["nowPlaying"] = map[string]any{
			"song":  np.Song.ToMap(),
			"nonce": np.Nonce,
		}
	}
	return m
}
