// Package connect exposes the player to remote UIs over Connect RPC.
//
// The service has no generated stubs: commands and notifications are
// google.protobuf.Struct messages of the form {"name": ..., "args": [...]}.
package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/app/notification"
	"github.com/interfect/Kruna/internal/app/playback"
)

const (
	// ServiceName is the fully-qualified name of the player service.
	ServiceName = "kruna.v1.PlayerService"

	SendProcedure      = "/" + ServiceName + "/Send"
	SubscribeProcedure = "/" + ServiceName + "/Subscribe"
)

// commands are the messages a remote UI may send.
var commands = map[string]bool{
	ipc.Play:      true,
	ipc.Pause:     true,
	ipc.SkipAhead: true,
	ipc.SkipBack:  true,
	ipc.Enqueue:   true,
	ipc.Remove:    true,
	ipc.Search:    true,
	ipc.Replace:   true,
}

// Snapshotter returns the current player state.
type Snapshotter interface {
	Snapshot() playback.State
}

// PlayerService bridges the UI end of the player pipe to RPC clients.
type PlayerService struct {
	ui       *ipc.Endpoint
	player   Snapshotter
	notifier *notification.Manager

	done      chan struct{}
	closeOnce sync.Once
}

// NewPlayerService creates a new PlayerService. ui is the endpoint whose
// peer the player reads commands from.
func NewPlayerService(ui *ipc.Endpoint, player Snapshotter, notifier *notification.Manager) *PlayerService {
	return &PlayerService{
		ui:       ui,
		player:   player,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

// Run broadcasts every core notification until ctx is done or the pipe is
// closed. Open subscriptions end when Run returns.
func (s *PlayerService) Run(ctx context.Context) error {
	defer s.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.ui.Messages():
			if !ok {
				return nil
			}
			if err := s.notifier.Broadcast(msg.Name, msg.Args...); err != nil {
				zlog.Error().Msgf("failed to broadcast notification: name=%s error=%v", msg.Name, err)
			}
		}
	}
}

// Close ends all open subscriptions.
func (s *PlayerService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.notifier.Close()
	})
}

// Send forwards one UI command to the player.
func (s *PlayerService) Send(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	fields := req.Msg.GetFields()
	name := fields[notification.FieldName].GetStringValue()
	if !commands[name] {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown command %q", name))
	}

	var args []any
	if v, ok := fields[notification.FieldArgs]; ok {
		list := v.GetListValue()
		if list == nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("args must be a list"))
		}
		args = list.AsSlice()
	}

	zlog.Debug().Msgf("remote command: name=%s args=%v", name, args)
	s.ui.Send(name, args...)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Subscribe streams a state snapshot followed by every core notification.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &streamAdapter{stream: stream}

	// Hold the adapter until the snapshot is out so broadcasts queue behind it.
	adapter.mu.Lock()
	id := s.notifier.Subscribe(adapter)
	defer s.notifier.Unsubscribe(id)

	initial, err := s.notifier.New(ipc.State, s.player.Snapshot().ToMap())
	if err == nil {
		err = stream.Send(initial)
	}
	adapter.mu.Unlock()
	if err != nil {
		return connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to send initial state"))
	}

	zlog.Info().Msgf("subscriber connected: id=%s peer=%s", id, req.Peer().Addr)
	select {
	case <-ctx.Done():
	case <-s.done:
	}
	zlog.Info().Msgf("subscriber disconnected: id=%s", id)
	return nil
}

// Handler returns the path prefix and handler serving the service.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(SendProcedure, connect.NewUnaryHandler(SendProcedure, s.Send, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe, opts...))
	return "/" + ServiceName + "/", mux
}

// streamAdapter serialises sends on a connect.ServerStream.
type streamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

func (a *streamAdapter) Send(n *structpb.Struct) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(n)
}
