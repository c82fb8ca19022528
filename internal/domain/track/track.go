// Package track provides the Track handle a catalog provider resolves for a song URL.
package track

import (
	"time"

	"github.com/interfect/Kruna/internal/domain/song"
)

// Track is an opaque reference to a remotely resolved song.
// Only the provider that produced it knows how to open its stream.
type Track struct {
	ID          string        // Provider-specific ID
	Song        song.Song     // Song metadata, URL is the identity
	Source      string        // Name of the provider that resolved the track
	StreamURL   string        // Location of the audio bytes (empty if none)
	Duration    time.Duration // Duration hint (zero if unknown)
	AlbumArtURL string        // Album art URL
	Explicit    bool          // Explicit content flag
	Markets     []string      // Available markets
	IsPlayable  *bool         // Playable in the requested market (nil if not reported)
}

// HasStream reports whether the track has audio bytes to fetch.
func (t *Track) HasStream() bool {
	return t.StreamURL != ""
}

// DurationMs returns the duration hint in milliseconds.
func (t *Track) DurationMs() int64 {
	return t.Duration.Milliseconds()
}

// IsAvailableInMarket checks if the track is available in the specified market.
// An empty market means no restriction.
func (t *Track) IsAvailableInMarket(market string) bool {
	if market == "" {
		return true
	}
	// IsPlayable reflects track relinking and takes precedence
	if t.IsPlayable != nil {
		return *t.IsPlayable
	}
	// Providers that report no markets are not market-restricted
	if len(t.Markets) == 0 {
		return true
	}
	for _, m := range t.Markets {
		if m == market {
			return true
		}
	}
	return false
}
