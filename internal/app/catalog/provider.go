// Package catalog resolves song URLs into playable tracks and searches the
// configured song sources.
package catalog

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
)

var (
	// ErrUnsupportedURL is returned when no provider handles a URL.
	ErrUnsupportedURL = errors.New("unsupported song url")
	// ErrTrackUnavailable is returned for tracks that exist but cannot be streamed.
	ErrTrackUnavailable = errors.New("track unavailable")
)

// Provider is one song source.
type Provider interface {
	// Name returns the provider type (used in config).
	Name() string

	// Handles reports whether FetchTrack accepts url.
	Handles(url string) bool

	FetchTrack(ctx context.Context, url string) (*track.Track, error)

	// OpenStream opens the audio bytes of a track returned by FetchTrack.
	OpenStream(ctx context.Context, t *track.Track) (io.ReadCloser, error)

	// Search returns matching songs. An empty result is not an error.
	Search(ctx context.Context, query string) ([]song.Song, error)
}

// StreamOpener opens a byte stream by URL.
type StreamOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// SpotifyClient defines the Spotify operations needed by the providers.
type SpotifyClient interface {
	Market() string
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error)
	FindTrack(ctx context.Context, title, artist string) (*track.Track, error)
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
}

func songsOf(tracks []track.Track) []song.Song {
	out := make([]song.Song, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.Song)
	}
	return out
}
