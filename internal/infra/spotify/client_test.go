package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Plain playlist ID",
			input:    "37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "HTTP URL (not HTTPS)",
			input:    "http://open.spotify.com/playlist/testID",
			expected: "testID",
		},
		{
			name:     "URL with multiple query params",
			input:    "https://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy",
			expected: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractPlaylistID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractPlaylistID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Spotify URI format", "spotify:track:6tdp8sdXrXlPV6AZZN2PE8", "6tdp8sdXrXlPV6AZZN2PE8"},
		{"Spotify URL format", "https://open.spotify.com/track/6tdp8sdXrXlPV6AZZN2PE8", "6tdp8sdXrXlPV6AZZN2PE8"},
		{"Localized URL", "https://open.spotify.com/intl-ja/track/6tdp8sdXrXlPV6AZZN2PE8?si=x", "6tdp8sdXrXlPV6AZZN2PE8"},
		{"Trailing slash", "https://open.spotify.com/track/abc/", "abc"},
		{"Plain track ID", "abc", "abc"},
		{"Whitespace", "  spotify:track:abc ", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTrackID(tt.input))
		})
	}
}

func TestIsTrackURL(t *testing.T) {
	assert.True(t, IsTrackURL("spotify:track:abc"))
	assert.True(t, IsTrackURL("https://open.spotify.com/track/abc"))
	assert.False(t, IsTrackURL("spotify:playlist:abc"))
	assert.False(t, IsTrackURL("https://example.com/track/abc.mp3"))
	assert.True(t, IsPlaylistURL("https://open.spotify.com/playlist/abc"))
	assert.False(t, IsPlaylistURL("spotify:track:abc"))
}

const trackJSON = `{
	"id": "abc",
	"name": "Song",
	"artists": [{"name": "First"}, {"name": "Second"}],
	"album": {"name": "Album", "images": [{"url": "https://i.scdn.co/image/1"}]},
	"duration_ms": 215000,
	"preview_url": "https://p.scdn.co/mp3-preview/abc",
	"explicit": true,
	"available_markets": ["JP", "US"]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := newClient(spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/")), "JP")
	c.retryDelay = time.Millisecond
	return c
}

func TestGetTrack(t *testing.T) {
	var gotPath, gotMarket string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMarket = r.URL.Query().Get("market")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(trackJSON))
	})

	tr, err := c.GetTrack(context.Background(), "https://open.spotify.com/track/abc?si=1")
	require.NoError(t, err)

	assert.Equal(t, "/tracks/abc", gotPath)
	assert.Equal(t, "JP", gotMarket)
	assert.Equal(t, "abc", tr.ID)
	assert.Equal(t, "Song", tr.Song.Title)
	assert.Equal(t, "First, Second", tr.Song.Artist)
	assert.Equal(t, "Album", tr.Song.Album)
	assert.Equal(t, "spotify:track:abc", tr.Song.URL)
	assert.Equal(t, SourceName, tr.Source)
	assert.Equal(t, "https://p.scdn.co/mp3-preview/abc", tr.StreamURL)
	assert.Equal(t, 215*time.Second, tr.Duration)
	assert.Equal(t, "https://i.scdn.co/image/1", tr.AlbumArtURL)
	assert.True(t, tr.Explicit)
	assert.Equal(t, []string{"JP", "US"}, tr.Markets)
}

func TestSearchTracks(t *testing.T) {
	var gotQuery, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotType = r.URL.Query().Get("type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks": {"items": [` + trackJSON + `], "total": 1}}`))
	})

	tracks, err := c.SearchTracks(context.Background(), "song", 5)
	require.NoError(t, err)

	assert.Equal(t, "song", gotQuery)
	assert.Equal(t, "track", gotType)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Song", tracks[0].Song.Title)

	_, err = c.SearchTracks(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestFindTrack_NoMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks": {"items": [], "total": 0}}`))
	})

	_, err := c.FindTrack(context.Background(), "Song", "Artist")
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	c := newClient(nil, "")
	c.retryDelay = time.Millisecond

	calls := 0
	err := c.retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("503 Service Unavailable")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = c.retry(context.Background(), func() error {
		calls++
		return errors.New("404 not found")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.retryDelay = time.Hour
	err = c.retry(ctx, func() error { return errors.New("429") })
	assert.ErrorIs(t, err, context.Canceled)
}
