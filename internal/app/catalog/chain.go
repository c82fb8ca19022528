package catalog

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain routes URLs to the first provider that handles them and searches
// providers in order.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{providers: providers}
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

func (c *Chain) route(url string) (ProviderWithMetadata, bool) {
	for _, pm := range c.providers {
		if pm.Provider.Handles(url) {
			return pm, true
		}
	}
	return ProviderWithMetadata{}, false
}

// FetchTrack resolves url with the first provider that handles it.
func (c *Chain) FetchTrack(ctx context.Context, url string) (*track.Track, error) {
	pm, ok := c.route(url)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedURL, "%s", url)
	}
	zlog.Debug().Msgf("fetching track: provider=%s url=%s", pm.DisplayName, url)

	t, err := pm.Provider.FetchTrack(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "provider %s", pm.DisplayName)
	}
	return t, nil
}

// OpenStream opens t with the provider that resolved it.
func (c *Chain) OpenStream(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	if t == nil {
		return nil, errors.New("track is required")
	}
	pm, ok := c.route(t.Song.URL)
	if !ok {
		for _, candidate := range c.providers {
			if candidate.Provider.Name() == t.Source {
				pm, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedURL, "%s", t.Song.URL)
	}

	rc, err := pm.Provider.OpenStream(ctx, t)
	if err != nil {
		return nil, errors.Wrapf(err, "provider %s", pm.DisplayName)
	}
	return rc, nil
}

// Search returns the first non-empty result. Failing providers are skipped;
// the search fails only when every provider failed.
func (c *Chain) Search(ctx context.Context, query string) ([]song.Song, error) {
	var lastErr error
	failed := 0

	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		songs, err := pm.Provider.Search(ctx, query)
		if err != nil {
			zlog.Warn().Msgf("provider search failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			lastErr = err
			failed++
			continue
		}
		if len(songs) == 0 {
			zlog.Debug().Msgf("provider returned no songs: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("provider returned songs: provider=%s query=%q count=%d", pm.DisplayName, query, len(songs))
		return songs, nil
	}

	if failed > 0 && failed == len(c.providers) {
		return nil, errors.Wrap(lastErr, "all providers failed")
	}
	return []song.Song{}, nil
}
