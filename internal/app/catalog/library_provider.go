package catalog

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/infra/library"
)

type LibraryProviderConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LibraryProvider searches a fixed song list loaded from a file.
// Songs are resolved by the provider that handles their URL.
type LibraryProvider struct {
	songs []song.Song
}

// NewLibraryProvider loads the library named in settings.
func NewLibraryProvider(settings map[string]any) (*LibraryProvider, error) {
	var config LibraryProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	songs, err := library.Load(config.Path)
	if err != nil {
		return nil, err
	}
	zlog.Info().Msgf("library loaded: path=%s songs=%d", config.Path, len(songs))
	return NewLibraryProviderFromSongs(songs), nil
}

// NewLibraryProviderFromSongs creates a provider over songs.
func NewLibraryProviderFromSongs(songs []song.Song) *LibraryProvider {
	return &LibraryProvider{songs: append([]song.Song(nil), songs...)}
}

// Name returns the provider name.
func (p *LibraryProvider) Name() string {
	return "library"
}

func (p *LibraryProvider) Handles(string) bool {
	return false
}

func (p *LibraryProvider) FetchTrack(_ context.Context, url string) (*track.Track, error) {
	return nil, errors.Wrapf(ErrUnsupportedURL, "%s", url)
}

func (p *LibraryProvider) OpenStream(_ context.Context, t *track.Track) (io.ReadCloser, error) {
	return nil, errors.Wrapf(ErrUnsupportedURL, "%s", t.Song.URL)
}

// Search matches title, artist and album. The empty query lists everything.
func (p *LibraryProvider) Search(_ context.Context, query string) ([]song.Song, error) {
	return library.Filter(p.songs, query), nil
}
