package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/app/notification"
	"github.com/interfect/Kruna/internal/app/playback"
	"github.com/interfect/Kruna/internal/domain/song"
)

type bridge struct {
	server  *httptest.Server
	backend *ipc.Endpoint
}

func startBridge(t *testing.T, token string, initial playback.State) *bridge {
	t.Helper()
	bridgeUI, playerUI := ipc.NewPipe("bridge", "core-ui")
	backend, playerBackend := ipc.NewPipe("backend", "core-backend")

	player := playback.NewPlayer(playerUI, playerBackend, initial)
	svc := NewPlayerService(bridgeUI, player, notification.NewManager())

	ctx, cancel := context.WithCancel(context.Background())
	playerDone := make(chan error, 1)
	bridgeDone := make(chan error, 1)
	go func() { playerDone <- player.Run(ctx) }()
	go func() { bridgeDone <- svc.Run(ctx) }()

	mux := http.NewServeMux()
	path, handler := svc.Handler(connect.WithInterceptors(NewAuthInterceptor(token)))
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		<-bridgeDone
		<-playerDone
		server.Close()
		bridgeUI.Close()
		backend.Close()
	})
	return &bridge{server: server, backend: backend}
}

func (b *bridge) client(token string) *Client {
	return NewClient(b.server.Client(), b.server.URL, token)
}

func subscribe(t *testing.T, c *Client) (<-chan notification.Decoded, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	out := make(chan notification.Decoded, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- c.Subscribe(ctx, func(n notification.Decoded) error {
			out <- n
			return nil
		})
	}()
	return out, errc
}

func next(t *testing.T, ch <-chan notification.Decoded, name string) notification.Decoded {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Name == name {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
			return notification.Decoded{}
		}
	}
}

var believe = song.Song{Title: "Believe", Artist: "Cher", URL: "spotify:track:a1"}

func TestPlayerService_SubscribeAndSend(t *testing.T) {
	b := startBridge(t, "", playback.State{AvailableSongs: []song.Song{believe}})
	c := b.client("")

	notes, _ := subscribe(t, c)
	initial := next(t, notes, ipc.State)
	snapshot := initial.Args[0].(map[string]any)
	assert.Len(t, snapshot["availableSongs"], 1)
	assert.Empty(t, snapshot["playlist"])

	require.NoError(t, c.Send(context.Background(), ipc.Enqueue, 0))

	var updated map[string]any
	require.Eventually(t, func() bool {
		select {
		case n := <-notes:
			if n.Name != ipc.State {
				return false
			}
			updated = n.Args[0].(map[string]any)
			return len(updated["playlist"].([]any)) == 1
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
	assert.Greater(t, initial.Sequence, uint64(0))

	select {
	case msg := <-b.backend.Messages():
		assert.Equal(t, ipc.SessionStop, msg.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("backend got no command")
	}
}

func TestPlayerService_RejectsUnknownCommand(t *testing.T) {
	b := startBridge(t, "", playback.State{})
	c := b.client("")

	err := c.Send(context.Background(), ipc.SessionStart, 1, "spotify:track:a1", true)
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	err = c.Send(context.Background(), "")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPlayerService_RejectsNonListArgs(t *testing.T) {
	b := startBridge(t, "", playback.State{})
	raw := connect.NewClient[structpb.Struct, emptypb.Empty](b.server.Client(), b.server.URL+SendProcedure)

	msg, err := structpb.NewStruct(map[string]any{"name": ipc.Play, "args": "0"})
	require.NoError(t, err)
	_, err = raw.CallUnary(context.Background(), connect.NewRequest(msg))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPlayerService_Token(t *testing.T) {
	b := startBridge(t, "secret", playback.State{})

	err := b.client("wrong").Send(context.Background(), ipc.Pause)
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	err = b.client("").Send(context.Background(), ipc.Pause)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, errc := subscribe(t, b.client("wrong"))
	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	case <-time.After(3 * time.Second):
		t.Fatal("subscription was not rejected")
	}

	good := b.client("secret")
	require.NoError(t, good.Send(context.Background(), ipc.Pause))
	notes, _ := subscribe(t, good)
	next(t, notes, ipc.State)
}

func TestPlayerService_RunClosesSubscriptions(t *testing.T) {
	bridgeUI, playerUI := ipc.NewPipe("bridge", "core-ui")
	defer playerUI.Close()
	player := playback.NewPlayer(playerUI, nil, playback.State{})
	svc := NewPlayerService(bridgeUI, player, notification.NewManager())

	mux := http.NewServeMux()
	path, handler := svc.Handler()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	defer server.Close()

	notes, errc := subscribe(t, NewClient(server.Client(), server.URL, ""))
	next(t, notes, ipc.State)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("subscription still open after Run returned")
	}
}
