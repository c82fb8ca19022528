package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interfect/Kruna/internal/domain/song"
)

func TestDecodeState(t *testing.T) {
	st, err := decodeState(map[string]any{
		"playlist": []any{
			map[string]any{
				"song":  map[string]any{"title": "Believe", "artist": "Cher", "album": "", "url": "spotify:track:a1"},
				"nonce": float64(4),
			},
		},
		"playingIndex": float64(0),
		"playback":     map[string]any{"state": "playing", "duration": float64(30000), "progress": float64(1500)},
		"availableSongs": []any{
			map[string]any{"title": "Believe", "artist": "Cher", "album": "", "url": "spotify:track:a1"},
		},
		"searchQuery": "cher",
		"nowPlaying":  nil,
	})
	require.NoError(t, err)

	require.Len(t, st.Playlist, 1)
	assert.Equal(t, float64(4), st.Playlist[0].Nonce)
	assert.Equal(t, "playing", st.Playback.State)
	assert.Equal(t, float64(30000), st.Playback.Duration)
	assert.Equal(t, "cher", st.SearchQuery)
	assert.Equal(t, []song.Song{{Title: "Believe", Artist: "Cher", URL: "spotify:track:a1"}}, st.AvailableSongs)

	_, err = decodeState("not a map")
	assert.Error(t, err)
}

func TestFormatMs(t *testing.T) {
	assert.Equal(t, "0s", formatMs(0))
	assert.Equal(t, "1m30s", formatMs(90500))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Cher - Believe", describe(song.Song{Title: "Believe", Artist: "Cher", URL: "u"}))
	assert.Equal(t, "Believe", describe(song.Song{Title: "Believe", URL: "u"}))
	assert.Equal(t, "u", describe(song.Song{URL: "u"}))
}
