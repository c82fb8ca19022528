// Package main provides the playback daemon entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/interfect/Kruna/internal/api/connect"
	"github.com/interfect/Kruna/internal/app/catalog"
	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/app/notification"
	"github.com/interfect/Kruna/internal/app/playback"
	"github.com/interfect/Kruna/internal/app/session"
	"github.com/interfect/Kruna/internal/app/stream"
	"github.com/interfect/Kruna/internal/domain/song"
	"github.com/interfect/Kruna/internal/domain/track"
	"github.com/interfect/Kruna/internal/domain/transport"
	"github.com/interfect/Kruna/internal/infra/audio"
	"github.com/interfect/Kruna/internal/infra/audio/device"
	"github.com/interfect/Kruna/internal/infra/config"
	"github.com/interfect/Kruna/internal/infra/logger"
	"github.com/interfect/Kruna/internal/infra/ratelimit"
	"github.com/interfect/Kruna/internal/infra/spotify"
	"github.com/interfect/Kruna/internal/infra/web"
)

const version = "0.3.0"

var (
	app        = kingpin.New("kruna", "Kruna playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/kruna.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	app.Version(version)
	kingpin.MustParse(app.Parse(os.Args[1:]))
	os.Exit(daemon())
}

// daemon runs until shutdown and returns the process exit code. It returns
// instead of exiting so the log file is flushed and closed first.
func daemon() int {
	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		return 1
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		return 1
	}
	return 0
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chain, err := newCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	if !device.Available {
		zlog.Warn().Msg("Built without audio output support; playback is silent")
	}
	out := device.NewSpeaker(cfg.Audio.SampleRate, cfg.Audio.BufferSize())
	if err := out.Init(); err != nil {
		return err
	}
	defer out.Close()

	newTransport := func(ctx context.Context, feed transport.Feed, t *track.Track) (session.Transport, error) {
		return audio.New(ctx, feed, t, out, audio.Config{
			ProgressInterval: cfg.Playback.ProgressInterval(),
		}), nil
	}

	bridgeUI, playerUI := ipc.NewPipe("bridge", "core-ui")
	supervisorEnd, playerBackend := ipc.NewPipe("supervisor", "core-backend")
	defer bridgeUI.Close()
	defer supervisorEnd.Close()

	limiter := ratelimit.New(cfg.Playback.FlushInterval())
	zlog.Info().Msgf("Stream flush interval: %s, initial flush: %d bytes", limiter.Interval(), cfg.Playback.InitialFlushBytes)

	supervisor := session.NewSupervisor(
		chain,
		newTransport,
		limiter,
		supervisorEnd,
		session.Config{
			Stream: stream.Config{
				InitialFlushBytes: cfg.Playback.InitialFlushBytes,
				ReadChunkBytes:    cfg.Playback.ReadChunkBytes,
			},
			FetchTimeout: cfg.Playback.FetchTimeout(),
		},
	)

	player := playback.NewPlayer(playerUI, playerBackend, playback.State{
		AvailableSongs: initialSongs(ctx, chain, cfg.Playback.FetchTimeout()),
	})

	service := apiconnect.NewPlayerService(bridgeUI, player, notification.NewManager())
	mux := http.NewServeMux()
	path, handler := service.Handler(connect.WithInterceptors(apiconnect.NewAuthInterceptor(cfg.Server.Token)))
	mux.Handle(path, handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.Token == "" {
		zlog.Warn().Msg("No bridge token configured; any client can control playback")
	}

	var wg sync.WaitGroup
	serve := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error().Msgf("%s stopped: %v", name, err)
				cancel()
			}
		}()
	}
	serve("supervisor", supervisor.Run)
	serve("player", player.Run)
	serve("bridge", service.Run)

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info().Msg("Shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
		cancel()
	}

	service.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	wg.Wait()

	zlog.Info().Msg("Daemon stopped")
	return runErr
}

func newCatalog(ctx context.Context, cfg *config.Config) (*catalog.Chain, error) {
	deps := catalog.Deps{
		Opener: web.New(web.Config{
			UserAgent: "kruna/" + version,
			Timeout:   cfg.Playback.FetchTimeout(),
		}),
	}

	if cfg.NeedsSpotify() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		deps.Spotify = client
	}

	chain, err := catalog.NewChainFromConfig(cfg.Catalog.Providers, deps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog")
	}
	return chain, nil
}

// initialSongs lists what the catalog offers for the empty query.
// Startup goes on with an empty list if that fails.
func initialSongs(ctx context.Context, chain *catalog.Chain, timeout time.Duration) []song.Song {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	songs, err := chain.Search(ctx, "")
	if err != nil {
		zlog.Warn().Msgf("Failed to load initial songs: %v", err)
		return nil
	}
	zlog.Info().Msgf("Initial songs loaded: count=%d", len(songs))
	return songs
}
