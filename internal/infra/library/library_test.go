package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interfect/Kruna/internal/domain/song"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected []song.Song
		wantErr  bool
	}{
		{
			name: "yaml list",
			data: `
- title: Believe
  artist: Cher
  url: spotify:track:abc
- title: Local
  url: file:///music/local.flac
`,
			expected: []song.Song{
				{Title: "Believe", Artist: "Cher", URL: "spotify:track:abc"},
				{Title: "Local", URL: "file:///music/local.flac"},
			},
		},
		{
			name: "yaml mapping",
			data: `
songs:
  - title: Believe
    album: Believe
    url: spotify:track:abc
`,
			expected: []song.Song{{Title: "Believe", Album: "Believe", URL: "spotify:track:abc"}},
		},
		{
			name:     "json list",
			data:     `[{"title": "A", "artist": "B", "url": "https://example.com/a.mp3"}]`,
			expected: []song.Song{{Title: "A", Artist: "B", URL: "https://example.com/a.mp3"}},
		},
		{
			name:     "empty document",
			data:     "",
			expected: []song.Song{},
		},
		{
			name:     "mapping without songs",
			data:     "other: 1",
			expected: []song.Song{},
		},
		{
			name:    "missing url",
			data:    `[{"title": "A"}]`,
			wantErr: true,
		},
		{
			name:    "scalar",
			data:    "just text",
			wantErr: true,
		},
		{
			name:    "malformed",
			data:    "[{",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			songs, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, songs)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- title: A\n  url: file:///a.wav\n"), 0o644))

	songs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []song.Song{{Title: "A", URL: "file:///a.wav"}}, songs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	songs := []song.Song{
		{Title: "Believe", Artist: "Cher", URL: "1"},
		{Title: "Strong Enough", Artist: "Cher", URL: "2"},
		{Title: "Around the World", Artist: "Daft Punk", Album: "Homework", URL: "3"},
	}

	assert.Len(t, Filter(songs, ""), 3)
	assert.Len(t, Filter(songs, "  "), 3)
	assert.Len(t, Filter(songs, "cher"), 2)
	assert.Equal(t, []song.Song{songs[2]}, Filter(songs, "HOMEWORK"))
	assert.Empty(t, Filter(songs, "abba"))
}
