// Package playlist provides the Playlist domain entity.
//
// A Playlist is treated as an immutable snapshot: every mutation returns a new
// slice and leaves the receiver untouched, so observers holding an older value
// never see it change underneath them.
package playlist

import "github.com/interfect/Kruna/internal/domain/song"

// Playlist is an ordered sequence of entries.
type Playlist []song.Entry

// Len returns the number of entries.
func (p Playlist) Len() int {
	return len(p)
}

// Append returns a new playlist with e added at the end.
func (p Playlist) Append(e song.Entry) Playlist {
	out := make(Playlist, len(p), len(p)+1)
	copy(out, p)
	return append(out, e)
}

// Without returns a new playlist with the entry at index removed.
// Out-of-range indices return an unchanged copy.
func (p Playlist) Without(index int) Playlist {
	if index < 0 || index >= len(p) {
		return p.Clone()
	}
	out := make(Playlist, 0, len(p)-1)
	out = append(out, p[:index]...)
	return append(out, p[index+1:]...)
}

// At returns the entry at index, or false if index is past the end.
func (p Playlist) At(index int) (song.Entry, bool) {
	if index < 0 || index >= len(p) {
		return song.Entry{}, false
	}
	return p[index], true
}

// Clone returns a copy of the playlist.
func (p Playlist) Clone() Playlist {
	out := make(Playlist, len(p))
	copy(out, p)
	return out
}

// Nonces returns the nonces of all entries in order.
func (p Playlist) Nonces() []int64 {
	ids := make([]int64, len(p))
	for i, e := range p {
		ids[i] = e.Nonce
	}
	return ids
}
