package playback

import (
	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/domain/song"
)

// Reduce applies cmd to prev and returns the next state and emitted effects.
// prev is never modified.
func Reduce(prev State, cmd Command) (State, []Effect) {
	next, effects := apply(prev.Clone(), cmd)
	next = derive(next)
	next, transport := transitions(prev, next)
	return next, append(effects, transport...)
}

func apply(s State, cmd Command) (State, []Effect) {
	switch c := cmd.(type) {
	case Play:
		if c.Index != nil && *c.Index >= 0 && *c.Index < s.Playlist.Len() {
			s.PlayingIndex = *c.Index
		}
		if s.PlayingIndex >= s.Playlist.Len() {
			s.PlayingIndex = 0
		}
		s.Status.State = StatePlaying

	case Pause:
		s.Status.State = StatePaused

	case SkipAhead:
		s = skipAhead(s)

	case SkipBack:
		if s.PlayingIndex > 0 {
			s.PlayingIndex--
			s.Status.State = StatePlaying
		}

	case Enqueue:
		if c.Ref < 0 || c.Ref >= len(s.AvailableSongs) {
			return s, nil
		}
		s.Playlist = s.Playlist.Append(song.Entry{Song: s.AvailableSongs[c.Ref], Nonce: s.NextNonce})
		s.NextNonce++

	case Remove:
		if c.Index < 0 || c.Index >= s.Playlist.Len() {
			return s, nil
		}
		if c.Index < s.PlayingIndex {
			s.PlayingIndex--
		}
		s.Playlist = s.Playlist.Without(c.Index)

	case SetAvailableSongs:
		s.AvailableSongs = append([]song.Song(nil), c.Songs...)
		return s, []Effect{NotifySongs{Songs: s.AvailableSongs}}

	case ReplacePlaylist:
		entries := make([]song.Entry, len(c.Songs))
		for i, sg := range c.Songs {
			entries[i] = song.Entry{Song: sg, Nonce: s.NextNonce}
			s.NextNonce++
		}
		s.Playlist = entries
		s.PlayingIndex = 0

	case Search:
		s.SearchQuery = c.Query
		return s, []Effect{SearchCatalog{Query: c.Query}}

	case TransportDuration:
		ms, ok := millis(c.Value)
		if !ok || !s.current(c.Nonce) {
			return s, nil
		}
		s.Status.DurationMs = ms
		return s, []Effect{NotifyDuration{Ms: ms}}

	case TransportProgress:
		ms, ok := millis(c.Value)
		if !ok || !s.current(c.Nonce) {
			return s, nil
		}
		s.Status.ProgressMs = ms
		return s, []Effect{NotifyProgress{Ms: ms}}

	case TransportEnded:
		if !s.current(c.Nonce) {
			return s, nil
		}
		return skipAhead(s), []Effect{NotifyEnded{}}

	case TransportFailed:
		if !s.current(c.Nonce) {
			return s, nil
		}
		s.Status.State = StatePaused
		s.HasActive = false
	}
	return s, nil
}

// skipAhead moves the cursor forward and keeps playing while it stays on an
// entry. Running off the end is turned into paused by derive.
func skipAhead(s State) State {
	if s.PlayingIndex < s.Playlist.Len() {
		s.PlayingIndex++
		if s.PlayingIndex < s.Playlist.Len() {
			s.Status.State = StatePlaying
		}
	}
	return s
}

// derive enforces the state invariants after any mutation.
func derive(s State) State {
	if s.PlayingIndex > s.Playlist.Len() {
		s.PlayingIndex = s.Playlist.Len()
	}
	if s.PlayingIndex < 0 {
		s.PlayingIndex = 0
	}
	if _, ok := s.NowPlaying(); !ok {
		s.Status.State = StatePaused
	}
	return s
}

// transitions compares the track under the cursor before and after a command
// and emits the backend commands needed to follow it.
func transitions(prev, next State) (State, []Effect) {
	prevNP, prevOK := prev.NowPlaying()
	nextNP, nextOK := next.NowPlaying()

	if prevOK != nextOK || (prevOK && prevNP.Nonce != nextNP.Nonce) {
		next.Status.DurationMs = 0
		next.Status.ProgressMs = 0
		next.HasActive = false
		effects := []Effect{StopSession{}}
		if nextOK && nextNP.Song.Playable() {
			effects = append(effects, StartSession{
				Nonce:   nextNP.Nonce,
				URL:     nextNP.Song.URL,
				PlayNow: next.Status.State == StatePlaying,
			})
			next.ActiveNonce = nextNP.Nonce
			next.HasActive = true
		}
		return next, effects
	}

	if prev.Status.State == next.Status.State {
		return next, nil
	}
	if next.Status.State == StatePaused {
		return next, []Effect{PauseTransport{}}
	}
	// A failed session leaves nothing to resume, so start it again.
	if !next.HasActive && nextOK && nextNP.Song.Playable() {
		next.ActiveNonce = nextNP.Nonce
		next.HasActive = true
		return next, []Effect{StartSession{Nonce: nextNP.Nonce, URL: nextNP.Song.URL, PlayNow: true}}
	}
	return next, []Effect{ResumeTransport{}}
}

func (s State) current(nonce int64) bool {
	return s.HasActive && s.ActiveNonce == nonce
}

// millis accepts only finite non-negative numbers.
func millis(v any) (int64, bool) {
	f, ok := ipc.Number(v)
	if !ok || f < 0 {
		return 0, false
	}
	return int64(f), true
}
