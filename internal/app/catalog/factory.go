package catalog

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/interfect/Kruna/internal/infra/config"
)

// Deps are the shared clients providers are built on.
// Spotify may be nil when no provider needs it.
type Deps struct {
	Spotify SpotifyClient
	Opener  StreamOpener
}

// NewChainFromConfig creates a provider chain from configuration.
func NewChainFromConfig(providers []config.ProviderConfig, deps Deps) (*Chain, error) {
	if len(providers) == 0 {
		return nil, errors.New("no catalog providers configured")
	}

	var chain []ProviderWithMetadata

	for i, pcfg := range providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating catalog provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "spotify":
			provider, err = NewSpotifyProvider(deps.Spotify, deps.Opener, pcfg.Settings)

		case "web":
			provider, err = NewWebProvider(deps.Opener, pcfg.Settings)

		case "library":
			provider, err = NewLibraryProvider(pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFmProvider(deps.Spotify, pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		chain = append(chain, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered catalog provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(chain), nil
}

// decodeSettings fills out from a provider settings map, then applies
// defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
