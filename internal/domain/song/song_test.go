package song

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSong_Playable(t *testing.T) {
	tests := []struct {
		name     string
		song     Song
		expected bool
	}{
		{
			name:     "with url",
			song:     Song{Title: "A", URL: "spotify:track:abc"},
			expected: true,
		},
		{
			name:     "empty url",
			song:     Song{Title: "A"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.song.Playable())
		})
	}
}

func TestListFromAny(t *testing.T) {
	songs := []Song{
		{Title: "One", Artist: "X", Album: "Y", URL: "https://example.com/1.mp3"},
		{Title: "Two", URL: "https://example.com/2.mp3"},
	}

	t.Run("generic maps", func(t *testing.T) {
		got, err := ListFromAny(ListToAny(songs))
		require.NoError(t, err)
		assert.Equal(t, songs, got)
	})

	t.Run("typed list is copied", func(t *testing.T) {
		got, err := ListFromAny(songs)
		require.NoError(t, err)
		got[0].Title = "changed"
		assert.Equal(t, "One", songs[0].Title)
	})

	t.Run("nil", func(t *testing.T) {
		got, err := ListFromAny(nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("non-object item", func(t *testing.T) {
		_, err := ListFromAny([]any{"nope"})
		assert.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ListFromAny(42)
		assert.Error(t, err)
	})
}
