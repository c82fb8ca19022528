package playback

import (
	"context"
	"sync"

	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/domain/song"
	zlog "github.com/rs/zerolog/log"
)

// Player runs the reducer against the UI and backend endpoints.
// All state transitions happen on the Run goroutine.
type Player struct {
	mu    sync.RWMutex
	state State

	ui      *ipc.Endpoint
	backend *ipc.Endpoint
}

// NewPlayer creates a player starting from initial.
func NewPlayer(ui, backend *ipc.Endpoint, initial State) *Player {
	return &Player{
		state:   derive(initial.Clone()),
		ui:      ui,
		backend: backend,
	}
}

// Snapshot returns a copy of the current state.
func (p *Player) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Run processes messages until ctx is cancelled or both endpoints close.
func (p *Player) Run(ctx context.Context) error {
	uiCh := p.ui.Messages()
	backendCh := p.backend.Messages()

	zlog.Info().Msg("playback: player started")
	p.publishState()

	for uiCh != nil || backendCh != nil {
		select {
		case <-ctx.Done():
			zlog.Info().Msg("playback: player stopped")
			return ctx.Err()
		case msg, ok := <-uiCh:
			if !ok {
				uiCh = nil
				continue
			}
			if cmd, ok := decodeUI(msg); ok {
				p.Dispatch(cmd)
			}
		case msg, ok := <-backendCh:
			if !ok {
				backendCh = nil
				continue
			}
			if cmd, ok := decodeBackend(msg); ok {
				p.Dispatch(cmd)
			}
		}
	}
	zlog.Info().Msg("playback: endpoints closed")
	return nil
}

// Dispatch reduces one command and executes its effects.
// It must only be called from the Run goroutine or before Run starts.
func (p *Player) Dispatch(cmd Command) {
	p.mu.Lock()
	prev := p.state
	next, effects := Reduce(prev, cmd)
	p.state = next
	p.mu.Unlock()

	if prev.PlayingIndex != next.PlayingIndex || prev.Status.State != next.Status.State {
		np, _ := next.NowPlaying()
		zlog.Debug().Msgf("playback: index=%d state=%s nonce=%d", next.PlayingIndex, next.Status.State, np.Nonce)
	}

	for _, e := range effects {
		p.execute(e)
	}

	switch cmd.(type) {
	case TransportDuration, TransportProgress:
		// Numeric updates have their own notifications.
	default:
		p.publishState()
	}
}

func (p *Player) execute(e Effect) {
	switch e := e.(type) {
	case StopSession:
		p.backend.Send(ipc.SessionStop)
	case StartSession:
		zlog.Info().Msgf("playback: starting session: nonce=%d url=%s playNow=%t", e.Nonce, e.URL, e.PlayNow)
		p.backend.Send(ipc.SessionStart, e.Nonce, e.URL, e.PlayNow)
	case PauseTransport:
		p.backend.Send(ipc.TransportPause)
	case ResumeTransport:
		p.backend.Send(ipc.TransportResume)
	case SearchCatalog:
		p.backend.Send(ipc.Search, e.Query)
	case NotifyDuration:
		p.ui.Send(ipc.Duration, e.Ms)
	case NotifyProgress:
		p.ui.Send(ipc.Progress, e.Ms)
	case NotifyEnded:
		p.ui.Send(ipc.Ended)
	case NotifySongs:
		p.ui.Send(ipc.Songs, song.ListToAny(e.Songs))
	}
}

func (p *Player) publishState() {
	p.ui.Send(ipc.State, p.Snapshot().ToMap())
}

// decodeUI converts a UI message into a command.
func decodeUI(msg ipc.Message) (Command, bool) {
	switch msg.Name {
	case ipc.Play:
		if idx, ok := msg.Int(0); ok {
			return Play{Index: &idx}, true
		}
		return Play{}, true
	case ipc.Pause:
		return Pause{}, true
	case ipc.SkipAhead:
		return SkipAhead{}, true
	case ipc.SkipBack:
		return SkipBack{}, true
	case ipc.Enqueue:
		ref, ok := msg.Int(0)
		if !ok {
			return dropped(msg, "missing song reference")
		}
		return Enqueue{Ref: ref}, true
	case ipc.Remove:
		idx, ok := msg.Int(0)
		if !ok {
			return dropped(msg, "missing index")
		}
		return Remove{Index: idx}, true
	case ipc.Search:
		q, _ := msg.String(0)
		return Search{Query: q}, true
	case ipc.Replace:
		v, _ := msg.Arg(0)
		songs, err := song.ListFromAny(v)
		if err != nil {
			return dropped(msg, err.Error())
		}
		return ReplacePlaylist{Songs: songs}, true
	}
	return dropped(msg, "unknown event")
}

// decodeBackend converts a backend message into a command.
func decodeBackend(msg ipc.Message) (Command, bool) {
	nonce, hasNonce := msg.Int64(0)
	switch msg.Name {
	case ipc.TransportDuration:
		if !hasNonce {
			return dropped(msg, "missing nonce")
		}
		v, _ := msg.Arg(1)
		return TransportDuration{Nonce: nonce, Value: v}, true
	case ipc.TransportProgress:
		if !hasNonce {
			return dropped(msg, "missing nonce")
		}
		v, _ := msg.Arg(1)
		return TransportProgress{Nonce: nonce, Value: v}, true
	case ipc.TransportEnded:
		if !hasNonce {
			return dropped(msg, "missing nonce")
		}
		return TransportEnded{Nonce: nonce}, true
	case ipc.TransportFailed:
		if !hasNonce {
			return dropped(msg, "missing nonce")
		}
		reason, _ := msg.String(1)
		zlog.Warn().Msgf("playback: transport failed: nonce=%d reason=%s", nonce, reason)
		return TransportFailed{Nonce: nonce, Reason: reason}, true
	case ipc.Songs:
		v, _ := msg.Arg(0)
		songs, err := song.ListFromAny(v)
		if err != nil {
			return dropped(msg, err.Error())
		}
		return SetAvailableSongs{Songs: songs}, true
	}
	return dropped(msg, "unknown event")
}

func dropped(msg ipc.Message, reason string) (Command, bool) {
	zlog.Debug().Msgf("playback: dropped message: name=%s reason=%s", msg.Name, reason)
	return nil, false
}
