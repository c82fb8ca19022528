package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupports(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/a.mp3", true},
		{"HTTPS://example.com/a.ogg", true},
		{"file:///music/a.flac", true},
		{"spotify:track:abc", false},
		{"ftp://example.com/a.mp3", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Supports(tt.url))
		})
	}
}

func TestOpen_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kruna-test", r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	client := New(Config{UserAgent: "kruna-test"})

	body, err := client.Open(context.Background(), server.URL+"/song.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "ID3audio", string(data))

	_, err = client.Open(context.Background(), server.URL+"/missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFdata"), 0o644))

	body, err := New(Config{}).Open(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := New(Config{}).Open(context.Background(), "spotify:track:abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))
}

func TestOpen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Open(ctx, "http://127.0.0.1:1/a.mp3")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Around the World", Title("https://example.com/music/Around%20the%20World.mp3"))
	assert.Equal(t, "track", Title("file:///music/track.flac"))
	assert.Equal(t, "example.com", Title("https://example.com/"))
	assert.Equal(t, "stream", Title("http://radio.example.com/stream"))
}
