package catalog

import (
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/infra/lastfm"
)

const (
	tagPrefix     = "tag:"
	similarPrefix = "similar:"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]lastfm.TrackRef, error)
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.TrackRef, error)
	GetTopTracks(ctx context.Context, tagName string, limit int) ([]lastfm.TrackRef, error)
}

type LastFmProviderConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
	Limit  int    `mapstructure:"limit" default:"10" validate:"gte=1,lte=50"`
	// Lookups is how many Last.fm results are tried against Spotify, as
	// many of them have no playable match.
	Lookups int `mapstructure:"lookups" default:"30" validate:"gte=1,lte=100"`
}

// LastFmProvider searches Last.fm and resolves each hit to a Spotify track.
//
// Queries:
//
//	tag:<tag>                   top tracks of a tag
//	similar:<artist> - <title>  tracks similar to a track
//	anything else               free text track search
type LastFmProvider struct {
	lastfm  LastFmClient
	spotify SpotifyClient
	config  *LastFmProviderConfig
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(spotify SpotifyClient, settings map[string]any) (*LastFmProvider, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is required")
	}
	var config LastFmProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, err
	}
	return newLastFmProvider(client, spotify, &config), nil
}

func newLastFmProvider(lf LastFmClient, spotify SpotifyClient, config *LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{lastfm: lf, spotify: spotify, config: config}
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

func (p *LastFmProvider) Handles(string) bool {
	return false
}

func (p *LastFmProvider) FetchTrack(_ context.Context, url string) (*track.Track, error) {
	return nil, errors.Wrapf(ErrUnsupportedURL, "%s", url)
}

func (p *LastFmProvider) OpenStream(_ context.Context, t *track.Track) (io.ReadCloser, error) {
	return nil, errors.Wrapf(ErrUnsupportedURL, "%s", t.Song.URL)
}

func (p *LastFmProvider) Search(ctx context.Context, query string) ([]song.Song, error) {
	refs, err := p.lookup(ctx, strings.TrimSpace(query))
	if err != nil || len(refs) == 0 {
		return nil, err
	}
	return p.resolve(ctx, refs), nil
}

func (p *LastFmProvider) lookup(ctx context.Context, query string) ([]lastfm.TrackRef, error) {
	if query == "" {
		return nil, nil
	}
	if tag, ok := strings.CutPrefix(query, tagPrefix); ok {
		return p.lastfm.GetTopTracks(ctx, strings.TrimSpace(tag), p.config.Lookups)
	}
	if seed, ok := strings.CutPrefix(query, similarPrefix); ok {
		artist, title, found := strings.Cut(seed, " - ")
		if !found {
			return nil, errors.Newf("similar query must be \"similar:<artist> - <title>\", got %q", query)
		}
		return p.lastfm.GetSimilarTracks(ctx, strings.TrimSpace(title), strings.TrimSpace(artist), p.config.Lookups)
	}
	return p.lastfm.SearchTracks(ctx, query, p.config.Lookups)
}

// resolve maps refs to playable Spotify songs, keeping Last.fm order.
func (p *LastFmProvider) resolve(ctx context.Context, refs []lastfm.TrackRef) []song.Song {
	market := p.spotify.Market()
	seen := make(map[string]bool)
	songs := make([]song.Song, 0, p.config.Limit)

	for _, ref := range refs {
		if len(songs) >= p.config.Limit || ctx.Err() != nil {
			break
		}
		t, err := p.spotify.FindTrack(ctx, ref.Name, ref.Artist)
		if err != nil {
			zlog.Debug().Msgf("no spotify match: artist=%s track=%s error=%v", ref.Artist, ref.Name, err)
			continue
		}
		if !t.HasStream() || !t.IsAvailableInMarket(market) || seen[t.Song.URL] {
			continue
		}
		seen[t.Song.URL] = true
		songs = append(songs, t.Song)
	}

	zlog.Debug().Msgf("last.fm results resolved: refs=%d songs=%d", len(refs), len(songs))
	return songs
}
