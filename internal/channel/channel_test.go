package channel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzaccagnino/notesync/internal/model"
	"github.com/nzaccagnino/notesync/internal/stomp"
)

type recorder struct {
	updates   chan model.Note
	deletions chan int64
	states    chan State
}

func newRecorder() *recorder {
	return &recorder{
		updates:   make(chan model.Note, 16),
		deletions: make(chan int64, 16),
		states:    make(chan State, 16),
	}
}

func (r *recorder) NoteUpdated(n model.Note)         { r.updates <- n }
func (r *recorder) NoteDeleted(id int64)             { r.deletions <- id }
func (r *recorder) StateChanged(s State, err error) { r.states <- s }

// fakeBroker accepts one websocket session, records what the client sends
// and lets the test push raw frames.
type fakeBroker struct {
	srv      *httptest.Server
	received chan string
	conns    chan *websocket.Conn
}

func newFakeBroker(t *testing.T) *fakeBroker {
	b := &fakeBroker{
		received: make(chan string, 16),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			b.received <- string(data)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

func (b *fakeBroker) next(t *testing.T) string {
	t.Helper()
	select {
	case frame := <-b.received:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return ""
	}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.InitialBackoff = 5 * time.Millisecond
	s.MaxBackoff = 20 * time.Millisecond
	s.MaxRetries = 2
	return s
}

func discard() *log.Logger {
	return log.New(io.Discard)
}

func TestOpenSendsConnectThenSubscriptions(t *testing.T) {
	broker := newFakeBroker(t)
	ch := New(broker.url(), newRecorder(), discard(), testSettings())

	_, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer ch.Close()
	assert.Equal(t, Open, ch.State())

	connect, ok := stomp.DecodeAny(broker.next(t))
	require.True(t, ok)
	assert.Equal(t, stomp.CommandConnect, connect.Command)
	assert.Equal(t, "1.2", connect.Header(stomp.HeaderAcceptVersion))

	sub1, _ := stomp.DecodeAny(broker.next(t))
	assert.Equal(t, stomp.CommandSubscribe, sub1.Command)
	assert.Equal(t, "sub-1", sub1.Header(stomp.HeaderID))
	assert.Equal(t, stomp.TopicNoteUpdates, sub1.Header(stomp.HeaderDestination))

	sub2, _ := stomp.DecodeAny(broker.next(t))
	assert.Equal(t, "sub-2", sub2.Header(stomp.HeaderID))
	assert.Equal(t, stomp.TopicNoteDeletions, sub2.Header(stomp.HeaderDestination))
}

func TestIncomingMessagesAreDispatched(t *testing.T) {
	broker := newFakeBroker(t)
	rec := newRecorder()
	ch := New(broker.url(), rec, discard(), testSettings())

	_, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer ch.Close()
	server := <-broker.conns

	frames := []string{
		stomp.Connected(),
		stomp.Message(stomp.TopicNoteUpdates, "sub-1", "1", `not json`),
		stomp.Message(stomp.TopicNoteUpdates, "sub-1", "2", `{"title":"no id"}`),
		stomp.Message(stomp.TopicNoteDeletions, "sub-2", "3", `{}`),
		stomp.Message("/topic/unknown", "sub-9", "4", `{"id":1}`),
		"total garbage",
		stomp.Message(stomp.TopicNoteUpdates, "sub-1", "5", `{"id":7,"title":"Meeting","content":"#work","collectionTitle":"Default Collection"}`),
		stomp.Message(stomp.TopicNoteDeletions, "sub-2", "6", `{"id":9}`),
	}
	for _, f := range frames {
		require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	select {
	case n := <-rec.updates:
		assert.Equal(t, int64(7), n.IDValue())
		assert.Equal(t, "Meeting", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("no update dispatched")
	}
	select {
	case id := <-rec.deletions:
		assert.Equal(t, int64(9), id)
	case <-time.After(2 * time.Second):
		t.Fatal("no deletion dispatched")
	}
	assert.Empty(t, rec.updates)
	assert.Empty(t, rec.deletions)
}

func TestSendRequiresOpenChannel(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", newRecorder(), discard(), testSettings())

	err := ch.Send(stomp.TopicNoteUpdates, model.Note{Title: "x"})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSendWritesSendFrame(t *testing.T) {
	broker := newFakeBroker(t)
	ch := New(broker.url(), newRecorder(), discard(), testSettings())

	_, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer ch.Close()
	for i := 0; i < 3; i++ {
		broker.next(t)
	}

	require.NoError(t, ch.Send(stomp.TopicNoteUpdates, model.Note{ID: model.ID(3), Title: "T"}))
	f, ok := stomp.DecodeAny(broker.next(t))
	require.True(t, ok)
	assert.Equal(t, stomp.CommandSend, f.Command)
	assert.Equal(t, stomp.AppNoteUpdates, f.Header(stomp.HeaderDestination))
	assert.Contains(t, f.Body, `"title":"T"`)

	require.NoError(t, ch.Send(stomp.TopicNoteDeletions, model.Note{ID: model.ID(3), Title: "T"}))
	f, _ = stomp.DecodeAny(broker.next(t))
	assert.Equal(t, stomp.AppNoteDeletions, f.Header(stomp.HeaderDestination))
	assert.Contains(t, f.Body, `"id":3`)
	assert.NotContains(t, f.Body, `"title":"T"`)

	assert.Error(t, ch.Send("/topic/nope", model.Note{}))
}

func TestCloseReportsClosedState(t *testing.T) {
	broker := newFakeBroker(t)
	rec := newRecorder()
	ch := New(broker.url(), rec, discard(), testSettings())

	done, err := ch.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Connecting, <-rec.states)
	assert.Equal(t, Open, <-rec.states)

	require.NoError(t, ch.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
	assert.Equal(t, Closed, <-rec.states)
	assert.Equal(t, Closed, ch.State())
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()

	ch := New(url, newRecorder(), discard(), testSettings())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ch.Run(ctx)
	assert.True(t, errors.Is(err, ErrGaveUp), "got %v", err)
	assert.Equal(t, Closed, ch.State())
}

func TestRunStopsOnCancel(t *testing.T) {
	broker := newFakeBroker(t)
	ch := New(broker.url(), newRecorder(), discard(), testSettings())
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- ch.Run(ctx) }()
	broker.next(t)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBackoff(t *testing.T) {
	s := Settings{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, s.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, s.Backoff(1))
	assert.Equal(t, 800*time.Millisecond, s.Backoff(3))
	assert.Equal(t, time.Second, s.Backoff(4))
	assert.Equal(t, time.Second, s.Backoff(40))
}

func TestEndpointFor(t *testing.T) {
	got, err := EndpointFor("http://localhost:5689/api?x=1")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:5689/ws", got)

	got, err = EndpointFor("https://notes.example.com")
	require.NoError(t, err)
	assert.Equal(t, "wss://notes.example.com/ws", got)

	_, err = EndpointFor("ftp://x")
	assert.Error(t, err)
}
