// Package lastfm provides a client for the Last.fm API, used for music discovery.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Tag and similarity lookups change slowly; search results are not cached.
	cache   map[string][]TrackRef
	cacheMu sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey string
}

// TrackRef names a track by title and artist. Last.fm has no audio, so a
// TrackRef has to be resolved by another catalog before it can play.
type TrackRef struct {
	Name   string
	Artist string
}

type artistObject struct {
	Name string `json:"name"`
}

type trackList struct {
	Track []struct {
		Name   string       `json:"name"`
		Artist artistObject `json:"artist"`
	} `json:"track"`
}

// getSimilarResponse is the response of track.getSimilar.
type getSimilarResponse struct {
	SimilarTracks trackList `json:"similartracks"`
}

// getTopTracksResponse is the response of tag.getTopTracks and chart.getTopTracks.
type getTopTracksResponse struct {
	Tracks trackList `json:"tracks"`
}

// searchResponse is the response of track.search. Artists are plain strings here.
type searchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name   string `json:"name"`
				Artist string `json:"artist"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string][]TrackRef),
	}, nil
}

// SearchTracks searches tracks by free text.
// Reference: https://www.last.fm/api/show/track.search
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]TrackRef, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}

	params := url.Values{}
	params.Set("method", "track.search")
	params.Set("track", query)
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response searchResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}

	refs := make([]TrackRef, 0, len(response.Results.TrackMatches.Track))
	for _, t := range response.Results.TrackMatches.Track {
		refs = append(refs, TrackRef{Name: t.Name, Artist: t.Artist})
	}
	return refs, nil
}

// GetSimilarTracks retrieves tracks similar to the given one.
// Reference: https://www.last.fm/api/show/track.getSimilar
func (c *Client) GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]TrackRef, error) {
	if trackName == "" || artistName == "" {
		return nil, errors.New("track name and artist name are required")
	}

	key := fmt.Sprintf("similar:%s:%s:%d", artistName, trackName, limit)
	return c.cached(key, func() ([]TrackRef, error) {
		params := url.Values{}
		params.Set("method", "track.getSimilar")
		params.Set("artist", artistName)
		params.Set("track", trackName)
		params.Set("limit", strconv.Itoa(clampLimit(limit)))
		params.Set("autocorrect", "1")

		var response getSimilarResponse
		if err := c.call(ctx, params, &response); err != nil {
			return nil, err
		}
		return response.SimilarTracks.refs(), nil
	})
}

// GetTopTracks retrieves top tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) GetTopTracks(ctx context.Context, tagName string, limit int) ([]TrackRef, error) {
	if tagName == "" {
		return nil, errors.New("tag name is required")
	}

	key := fmt.Sprintf("tag:%s:%d", tagName, limit)
	return c.cached(key, func() ([]TrackRef, error) {
		params := url.Values{}
		params.Set("method", "tag.getTopTracks")
		params.Set("tag", tagName)
		params.Set("limit", strconv.Itoa(clampLimit(limit)))

		var response getTopTracksResponse
		if err := c.call(ctx, params, &response); err != nil {
			return nil, err
		}
		return response.Tracks.refs(), nil
	})
}

// GetChartTopTracks retrieves global top tracks.
// Reference: https://www.last.fm/api/show/chart.getTopTracks
func (c *Client) GetChartTopTracks(ctx context.Context, limit int) ([]TrackRef, error) {
	params := url.Values{}
	params.Set("method", "chart.getTopTracks")
	params.Set("limit", strconv.Itoa(clampLimit(limit)))

	var response getTopTracksResponse
	if err := c.call(ctx, params, &response); err != nil {
		return nil, err
	}
	return response.Tracks.refs(), nil
}

func (l trackList) refs() []TrackRef {
	refs := make([]TrackRef, 0, len(l.Track))
	for _, t := range l.Track {
		refs = append(refs, TrackRef{Name: t.Name, Artist: t.Artist.Name})
	}
	return refs
}

func (c *Client) cached(key string, fetch func() ([]TrackRef, error)) ([]TrackRef, error) {
	c.cacheMu.RLock()
	refs, ok := c.cache[key]
	c.cacheMu.RUnlock()
	if ok {
		zlog.Debug().Msgf("lastfm: cache hit: %s", key)
		return refs, nil
	}

	refs, err := fetch()
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cache[key] = refs
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("lastfm: cached %s (count: %d)", key, len(refs))
	return refs, nil
}

// call performs one API request and decodes the JSON response into out.
func (c *Client) call(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports API errors in the body, sometimes with status 200
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
