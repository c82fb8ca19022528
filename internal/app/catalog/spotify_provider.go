package catalog

import (
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	spotifyinfra "github.com/interfect/Kruna/internal/infra/spotify"
)

// playlistPrefix makes a search query list a playlist instead.
const playlistPrefix = "playlist:"

type SpotifyProviderConfig struct {
	SearchLimit int `mapstructure:"search_limit" default:"20" validate:"gte=1,lte=50"`
	// IncludeUnplayable keeps search hits without a preview or outside the market.
	IncludeUnplayable bool `mapstructure:"include_unplayable"`
}

// SpotifyProvider resolves Spotify track URLs and streams their preview clip.
type SpotifyProvider struct {
	spotify SpotifyClient
	opener  StreamOpener
	config  *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(spotify SpotifyClient, opener StreamOpener, settings map[string]any) (*SpotifyProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	if opener == nil {
		return nil, errors.New("stream opener is required")
	}

	var config SpotifyProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	zlog.Debug().Msgf("spotify provider config: %+v", config)

	return &SpotifyProvider{spotify: spotify, opener: opener, config: &config}, nil
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return spotifyinfra.SourceName
}

func (p *SpotifyProvider) Handles(url string) bool {
	return spotifyinfra.IsTrackURL(url)
}

func (p *SpotifyProvider) FetchTrack(ctx context.Context, url string) (*track.Track, error) {
	t, err := p.spotify.GetTrack(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}
	if err := p.check(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *SpotifyProvider) check(t *track.Track) error {
	if market := p.spotify.Market(); !t.IsAvailableInMarket(market) {
		return errors.Wrapf(ErrTrackUnavailable, "%s is not available in market %s", t.Song.URL, market)
	}
	if !t.HasStream() {
		return errors.Wrapf(ErrTrackUnavailable, "%s has no preview stream", t.Song.URL)
	}
	return nil
}

func (p *SpotifyProvider) OpenStream(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	if !t.HasStream() {
		return nil, errors.Wrapf(ErrTrackUnavailable, "%s has no preview stream", t.Song.URL)
	}
	return p.opener.Open(ctx, t.StreamURL)
}

// Search searches tracks by free text. A query naming a playlist
// ("playlist:<url>" or a playlist URL) lists that playlist instead.
// The empty query yields nothing.
func (p *SpotifyProvider) Search(ctx context.Context, query string) ([]song.Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var (
		tracks []track.Track
		err    error
	)
	if playlist, ok := strings.CutPrefix(query, playlistPrefix); ok {
		tracks, err = p.spotify.GetPlaylistTracks(ctx, strings.TrimSpace(playlist))
	} else if spotifyinfra.IsPlaylistURL(query) {
		tracks, err = p.spotify.GetPlaylistTracks(ctx, query)
	} else {
		tracks, err = p.spotify.SearchTracks(ctx, query, p.config.SearchLimit)
	}
	if err != nil {
		return nil, err
	}

	if !p.config.IncludeUnplayable {
		playable := make([]track.Track, 0, len(tracks))
		for _, t := range tracks {
			if p.check(&t) == nil {
				playable = append(playable, t)
			}
		}
		zlog.Debug().Msgf("spotify search filtered: query=%q total=%d playable=%d", query, len(tracks), len(playable))
		tracks = playable
	}
	return songsOf(tracks), nil
}
