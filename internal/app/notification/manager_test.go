package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*structpb.Struct
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(n *structpb.Struct) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingStream) decoded(t *testing.T) []Decoded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Decoded, 0, len(s.got))
	for _, n := range s.got {
		d, err := Decode(n)
		require.NoError(t, err)
		out = append(out, d)
	}
	return out
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a, b := &recordingStream{}, &recordingStream{}
	m.Subscribe(a)
	idB := m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	require.NoError(t, m.Broadcast("duration", int64(180000)))
	m.Unsubscribe(idB)
	require.NoError(t, m.Broadcast("ended"))

	assert.Equal(t, []Decoded{
		{Sequence: 1, Name: "duration", Args: []any{float64(180000)}},
		{Sequence: 2, Name: "ended", Args: []any{}},
	}, a.decoded(t))
	assert.Equal(t, []Decoded{
		{Sequence: 1, Name: "duration", Args: []any{float64(180000)}},
	}, b.decoded(t))
}

func TestManager_DropsFailingSubscriber(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{err: errors.New("client gone")})
	ok := &recordingStream{}
	m.Subscribe(ok)

	require.NoError(t, m.Broadcast("ended"))
	assert.Equal(t, 1, m.SubscriberCount())
	assert.Len(t, ok.decoded(t), 1)
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond
	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	m.Subscribe(slow)

	start := time.Now()
	require.NoError(t, m.Broadcast("progress", int64(1000)))
	assert.Less(t, time.Since(start), time.Second)
}

func TestManager_NewEncodesNestedValues(t *testing.T) {
	m := NewManager()
	n, err := m.New("state", map[string]any{
		"playingIndex": int64(1),
		"playlist":     []any{map[string]any{"nonce": int64(3)}},
		"nowPlaying":   nil,
	})
	require.NoError(t, err)

	d, err := Decode(n)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), d.Sequence)
	require.Len(t, d.Args, 1)
	snapshot := d.Args[0].(map[string]any)
	assert.Equal(t, float64(1), snapshot["playingIndex"])
	assert.Nil(t, snapshot["nowPlaying"])

	_, err = m.New("bad", struct{}{})
	assert.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	s, err := structpb.NewStruct(map[string]any{"seq": 1})
	require.NoError(t, err)
	_, err = Decode(s)
	assert.Error(t, err)
}

func TestManager_Close(t *testing.T) {
	m := NewManager()
	m.Subscribe(&recordingStream{})
	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}
