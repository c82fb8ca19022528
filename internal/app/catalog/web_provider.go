package catalog

import (
	"context"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/infra/web"
)

type WebProviderConfig struct {
	Schemes []string `mapstructure:"schemes" default:"[\"http\",\"https\",\"file\"]" validate:"min=1,dive,oneof=http https file"`
}

// WebProvider plays audio files addressed by http(s) or file URLs.
// It has no search index.
type WebProvider struct {
	opener StreamOpener
	config *WebProviderConfig
}

// NewWebProvider creates a new WebProvider.
func NewWebProvider(opener StreamOpener, settings map[string]any) (*WebProvider, error) {
	if opener == nil {
		return nil, errors.New("stream opener is required")
	}
	var config WebProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &WebProvider{opener: opener, config: &config}, nil
}

// Name returns the provider name.
func (p *WebProvider) Name() string {
	return "web"
}

func (p *WebProvider) Handles(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return slices.Contains(p.config.Schemes, strings.ToLower(u.Scheme))
}

func (p *WebProvider) FetchTrack(_ context.Context, rawURL string) (*track.Track, error) {
	if !p.Handles(rawURL) {
		return nil, errors.Wrapf(ErrUnsupportedURL, "%s", rawURL)
	}
	return &track.Track{
		ID:        rawURL,
		Song:      song.Song{Title: web.Title(rawURL), URL: rawURL},
		Source:    p.Name(),
		StreamURL: rawURL,
	}, nil
}

func (p *WebProvider) OpenStream(ctx context.Context, t *track.Track) (io.ReadCloser, error) {
	return p.opener.Open(ctx, t.StreamURL)
}

func (p *WebProvider) Search(context.Context, string) ([]song.Song, error) {
	return nil, nil
}
