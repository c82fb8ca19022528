// Package web opens audio byte streams from http(s) and file URLs.
package web

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrUnsupportedScheme is returned for URLs that are neither http(s) nor file.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Config configures the HTTP client.
type Config struct {
	UserAgent string
	// Timeout bounds connection setup and response headers, not the body.
	Timeout time.Duration
}

// Client opens streams over HTTP or from the local filesystem.
type Client struct {
	http      *http.Client
	userAgent string
}

// New creates a client.
func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}
	return &Client{
		http:      &http.Client{Transport: transport},
		userAgent: cfg.UserAgent,
	}
}

// Supports reports whether rawURL has a scheme this client can open.
func Supports(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "file":
		return true
	}
	return false
}

// Open starts reading rawURL. The returned body is unbuffered; the caller
// closes it. Cancelling ctx aborts an in-flight HTTP body read.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid url %q", rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		f, err := os.Open(FilePath(u))
		if err != nil {
			return nil, errors.Wrap(err, "failed to open file")
		}
		return f, nil
	case "http", "https":
		return c.get(ctx, u.String())
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "scheme %q", u.Scheme)
	}
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errors.Newf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	zlog.Debug().Msgf("stream opened: url=%s content_type=%s length=%d",
		rawURL, resp.Header.Get("Content-Type"), resp.ContentLength)
	return resp.Body, nil
}

// FilePath returns the local path of a file URL.
func FilePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}

// Title guesses a display title from the last path element of rawURL.
func Title(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return u.Host
	}
	if name, err := url.PathUnescape(base); err == nil {
		base = name
	}
	if ext := path.Ext(base); ext != "" && len(ext) <= 5 {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
