package catalog

import (
	"context"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/infra/lastfm"
)

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	err    error
}

func (o *fakeOpener) Open(_ context.Context, url string) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opened = append(o.opened, url)
	return io.NopCloser(strings.NewReader("audio:" + url)), nil
}

func playable(id, title, artist string) track.Track {
	return track.Track{
		ID:        id,
		Song:      song.Song{Title: title, Artist: artist, URL: "spotify:track:" + id},
		Source:    "spotify",
		StreamURL: "https://p.scdn.co/mp3-preview/" + id,
	}
}

type fakeSpotify struct {
	market    string
	tracks    map[string]track.Track // by id
	playlists map[string][]track.Track
	searchErr error

	mu       sync.Mutex
	searches []string
	finds    []string
}

func (f *fakeSpotify) Market() string { return f.market }

func (f *fakeSpotify) GetTrack(_ context.Context, trackID string) (*track.Track, error) {
	id := strings.TrimPrefix(trackID, "spotify:track:")
	t, ok := f.tracks[id]
	if !ok {
		return nil, errors.Newf("track %s not found", id)
	}
	return &t, nil
}

func (f *fakeSpotify) SearchTracks(_ context.Context, query string, limit int) ([]track.Track, error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []track.Track
	for _, id := range sortedIDs(f.tracks) {
		t := f.tracks[id]
		if strings.Contains(strings.ToLower(t.Song.Title), strings.ToLower(query)) && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSpotify) FindTrack(_ context.Context, title, artist string) (*track.Track, error) {
	f.mu.Lock()
	f.finds = append(f.finds, artist+" - "+title)
	f.mu.Unlock()
	for _, id := range sortedIDs(f.tracks) {
		t := f.tracks[id]
		if t.Song.Title == title && t.Song.Artist == artist {
			return &t, nil
		}
	}
	return nil, errors.Newf("no match for %s - %s", artist, title)
}

func (f *fakeSpotify) GetPlaylistTracks(_ context.Context, playlistURL string) ([]track.Track, error) {
	tracks, ok := f.playlists[playlistURL]
	if !ok {
		return nil, errors.New("playlist not found")
	}
	return tracks, nil
}

func sortedIDs(m map[string]track.Track) []string {
	return slices.Sorted(maps.Keys(m))
}

type fakeLastFm struct {
	refs  map[string][]lastfm.TrackRef
	err   error
	calls []string
}

func (f *fakeLastFm) get(key string) ([]lastfm.TrackRef, error) {
	f.calls = append(f.calls, key)
	if f.err != nil {
		return nil, f.err
	}
	return f.refs[key], nil
}

func (f *fakeLastFm) SearchTracks(_ context.Context, query string, _ int) ([]lastfm.TrackRef, error) {
	return f.get("search:" + query)
}

func (f *fakeLastFm) GetSimilarTracks(_ context.Context, trackName, artistName string, _ int) ([]lastfm.TrackRef, error) {
	return f.get("similar:" + artistName + "/" + trackName)
}

func (f *fakeLastFm) GetTopTracks(_ context.Context, tagName string, _ int) ([]lastfm.TrackRef, error) {
	return f.get("tag:" + tagName)
}

// stubProvider is a scripted Provider for chain tests.
type stubProvider struct {
	name    string
	prefix  string
	results []song.Song
	err     error
	calls   int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Handles(url string) bool {
	return s.prefix != "" && strings.HasPrefix(url, s.prefix)
}

func (s *stubProvider) FetchTrack(_ context.Context, url string) (*track.Track, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &track.Track{ID: url, Song: song.Song{URL: url}, Source: s.name, StreamURL: url}, nil
}

func (s *stubProvider) OpenStream(_ context.Context, t *track.Track) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.name + ":" + t.StreamURL)), nil
}

func (s *stubProvider) Search(context.Context, string) ([]song.Song, error) {
	s.calls++
	return s.results, s.err
}
