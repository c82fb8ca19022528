// Package session provides the session supervisor, which owns the single
// active (streaming source, audio transport) pair.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/app/stream"
	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/domain/transport"
	zlog "github.com/rs/zerolog/log"
)

// DefaultFetchTimeout bounds track resolution.
const DefaultFetchTimeout = 15 * time.Second

// Transport is an audio output bound to one session.
//
// Play and Pause before the audio is ready record the intent. Stop is
// idempotent and safe before Preload; every call after Stop is a no-op.
type Transport interface {
	Preload()
	Play()
	Pause()
	Stop()
	Events() <-chan transport.Event
}

// TransportFactory creates a transport consuming feed.
// ctx bounds the lifetime of the session.
type TransportFactory func(ctx context.Context, feed transport.Feed, t *track.Track) (Transport, error)

// Catalog resolves song URLs and searches for songs.
type Catalog interface {
	FetchTrack(ctx context.Context, url string) (*track.Track, error)
	OpenStream(ctx context.Context, t *track.Track) (io.ReadCloser, error)
	Search(ctx context.Context, query string) ([]song.Song, error)
}

// Config holds supervisor configuration.
type Config struct {
	Stream       stream.Config
	FetchTimeout time.Duration
}

type session struct {
	nonce     int64
	track     *track.Track
	source    *stream.Source
	transport Transport
	cancel    context.CancelFunc

	playNow bool // play once the duration is known
	played  bool
}

// Supervisor starts, replaces and stops sessions on behalf of the playback core.
type Supervisor struct {
	mu sync.Mutex

	catalog      Catalog
	newTransport TransportFactory
	limiter      stream.TokenBucket
	config       Config
	endpoint     *ipc.Endpoint

	current *session

	// Each start or stop takes a new ticket; a fetch that finishes holding an
	// old ticket is discarded.
	ticket      uint64
	pendingPlay bool
}

// NewSupervisor creates a supervisor reporting on endpoint.
func NewSupervisor(
	catalog Catalog,
	newTransport TransportFactory,
	limiter stream.TokenBucket,
	endpoint *ipc.Endpoint,
	cfg Config,
) *Supervisor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Supervisor{
		catalog:      catalog,
		newTransport: newTransport,
		limiter:      limiter,
		config:       cfg,
		endpoint:     endpoint,
	}
}

// Run serves backend commands until ctx is cancelled or the endpoint closes.
// The current session is stopped on return.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.StopCurrent()

	router := ipc.NewRouter().
		On(ipc.SessionStart, func(ctx context.Context, msg ipc.Message) {
			nonce, ok := msg.Int64(0)
			url, urlOK := msg.String(1)
			if !ok || !urlOK {
				zlog.Warn().Msgf("session: malformed %s: args=%v", msg.Name, msg.Args)
				return
			}
			playNow, _ := msg.Bool(2)
			ticket := s.reserve(playNow)
			go func() {
				if err := s.start(ctx, ticket, nonce, url); err != nil {
					zlog.Warn().Err(err).Msgf("session: start failed: nonce=%d", nonce)
				}
			}()
		}).
		On(ipc.SessionStop, func(context.Context, ipc.Message) { s.StopCurrent() }).
		On(ipc.TransportPause, func(context.Context, ipc.Message) { s.PauseCurrent() }).
		On(ipc.TransportResume, func(context.Context, ipc.Message) { s.ResumeCurrent() }).
		On(ipc.Search, func(ctx context.Context, msg ipc.Message) {
			query, _ := msg.String(0)
			go s.search(ctx, query)
		}).
		Otherwise(func(_ context.Context, msg ipc.Message) {
			zlog.Debug().Msgf("session: ignoring message: name=%s", msg.Name)
		})

	zlog.Info().Msg("session: supervisor started")
	return ipc.Serve(ctx, s.endpoint, router)
}

// StartSession resolves url and makes it the current session, replacing any
// previous one. With playNow the transport starts playing as soon as the
// duration is known.
func (s *Supervisor) StartSession(ctx context.Context, nonce int64, url string, playNow bool) error {
	return s.start(ctx, s.reserve(playNow), nonce, url)
}

func (s *Supervisor) reserve(playNow bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	s.pendingPlay = playNow
	return s.ticket
}

func (s *Supervisor) start(ctx context.Context, ticket uint64, nonce int64, url string) error {
	zlog.Info().Msgf("session: resolving track: nonce=%d url=%s", nonce, url)

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	t, err := s.catalog.FetchTrack(fetchCtx, url)
	cancel()
	if err != nil {
		s.abandon(ticket, nonce, err)
		return errors.Wrapf(err, "failed to fetch track %s", url)
	}

	sessCtx, sessCancel := context.WithCancel(ctx)
	src := stream.NewSource(func(ctx context.Context) (io.ReadCloser, error) {
		return s.catalog.OpenStream(ctx, t)
	}, s.limiter, s.config.Stream)

	tr, err := s.newTransport(sessCtx, src, t)
	if err != nil {
		sessCancel()
		s.abandon(ticket, nonce, err)
		return errors.Wrap(err, "failed to create transport")
	}

	sess := &session{
		nonce:     nonce,
		track:     t,
		source:    src,
		transport: tr,
		cancel:    sessCancel,
	}

	s.mu.Lock()
	if ticket != s.ticket {
		s.mu.Unlock()
		zlog.Debug().Msgf("session: superseded before start: nonce=%d", nonce)
		teardown(sess)
		return nil
	}
	s.stopLocked()
	sess.playNow = s.pendingPlay
	s.current = sess
	s.mu.Unlock()

	zlog.Info().Msgf("session: started: nonce=%d title=%q source=%s", nonce, t.Song.Title, t.Source)
	go s.relay(sessCtx, sess)
	tr.Preload()
	return nil
}

// abandon stops the previous session when the start that replaces it fails.
func (s *Supervisor) abandon(ticket uint64, nonce int64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.ticket {
		return
	}
	s.stopLocked()
	s.endpoint.Send(ipc.TransportFailed, nonce, cause.Error())
}

func (s *Supervisor) relay(ctx context.Context, sess *session) {
	events := sess.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(sess, ev)
		}
	}
}

func (s *Supervisor) handleEvent(sess *session, ev transport.Event) {
	s.mu.Lock()
	if s.current != sess {
		s.mu.Unlock()
		zlog.Debug().Msgf("session: dropping stale event: nonce=%d kind=%s", sess.nonce, ev.Kind)
		return
	}

	play := false
	switch ev.Kind {
	case transport.KindDuration:
		s.endpoint.Send(ipc.TransportDuration, sess.nonce, ev.Ms)
		if sess.playNow && !sess.played {
			sess.played = true
			play = true
		}
	case transport.KindProgress:
		s.endpoint.Send(ipc.TransportProgress, sess.nonce, ev.Ms)
	case transport.KindEnd:
		zlog.Info().Msgf("session: ended: nonce=%d", sess.nonce)
		s.endpoint.Send(ipc.TransportEnded, sess.nonce)
	case transport.KindError:
		zlog.Error().Err(ev.Err).Msgf("session: transport failed: nonce=%d", sess.nonce)
		s.stopLocked()
		reason := "transport error"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		s.endpoint.Send(ipc.TransportFailed, sess.nonce, reason)
	}
	s.mu.Unlock()

	if play {
		sess.transport.Play()
	}
}

// PauseCurrent pauses the current session, or a session still being resolved.
func (s *Supervisor) PauseCurrent() {
	s.mu.Lock()
	s.pendingPlay = false
	sess := s.current
	if sess != nil {
		sess.playNow = false
	}
	s.mu.Unlock()

	if sess != nil {
		sess.transport.Pause()
	}
}

// ResumeCurrent resumes the current session, or a session still being resolved.
func (s *Supervisor) ResumeCurrent() {
	s.mu.Lock()
	s.pendingPlay = true
	sess := s.current
	if sess != nil {
		sess.played = true
	}
	s.mu.Unlock()

	if sess != nil {
		sess.transport.Play()
	}
}

// StopCurrent stops the current session and abandons any pending start.
func (s *Supervisor) StopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	s.pendingPlay = false
	s.stopLocked()
}

// CurrentNonce returns the nonce of the current session.
func (s *Supervisor) CurrentNonce() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return s.current.nonce, true
}

func (s *Supervisor) stopLocked() {
	if s.current == nil {
		return
	}
	zlog.Debug().Msgf("session: stopping: nonce=%d", s.current.nonce)
	teardown(s.current)
	s.current = nil
}

func teardown(sess *session) {
	sess.transport.Stop()
	sess.source.Reset()
	sess.cancel()
}

func (s *Supervisor) search(ctx context.Context, query string) {
	songs, err := s.catalog.Search(ctx, query)
	if err != nil {
		zlog.Warn().Err(err).Msgf("session: search failed: query=%q", query)
		return
	}
	zlog.Debug().Msgf("session: search results: query=%q count=%d", query, len(songs))
	s.endpoint.Send(ipc.Songs, song.ListToAny(songs))
}
