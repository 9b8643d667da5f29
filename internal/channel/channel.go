// Package channel keeps the push connection to the note store and turns
// incoming frames into note events.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/nzaccagnino/notesync/internal/model"
	"github.com/nzaccagnino/notesync/internal/stomp"
)

var (
	ErrNotOpen = errors.New("channel is not open")
	ErrGaveUp  = errors.New("channel gave up reconnecting")
)

const (
	subUpdates   = "sub-1"
	subDeletions = "sub-2"
)

type State int32

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Listener receives channel events. Callbacks run on the channel's read
// goroutine; implementations must hand them over to their own event loop.
type Listener interface {
	NoteUpdated(note model.Note)
	NoteDeleted(id int64)
	StateChanged(state State, err error)
}

type Channel struct {
	url      string
	listener Listener
	logger   *log.Logger
	settings Settings
	dialer   *websocket.Dialer

	state atomic.Int32

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a closed channel for the websocket endpoint at rawURL
// (for example "ws://localhost:5689/ws").
func New(rawURL string, listener Listener, logger *log.Logger, settings Settings) *Channel {
	return &Channel{
		url:      rawURL,
		listener: listener,
		logger:   logger.WithPrefix("channel"),
		settings: settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
	}
}

// EndpointFor derives the push endpoint from a store base URL.
func EndpointFor(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("failed to parse server address: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State, err error) {
	if State(c.state.Swap(int32(s))) == s && err == nil {
		return
	}
	c.logger.Debug("state changed", "state", s, "err", err)
	if c.listener != nil {
		c.listener.StateChanged(s, err)
	}
}

// Open dials the endpoint, sends the CONNECT and SUBSCRIBE frames and
// returns once the channel is Open. Incoming frames are read until the
// connection drops or ctx is cancelled; the returned done channel yields
// the reason.
func (c *Channel) Open(ctx context.Context) (<-chan error, error) {
	c.setState(Connecting, nil)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(Closed, err)
		return nil, fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	host := ""
	if u, err := url.Parse(c.url); err == nil {
		host = u.Host
	}
	for _, frame := range []string{
		stomp.Connect(host),
		stomp.Subscribe(subUpdates, stomp.TopicNoteUpdates),
		stomp.Subscribe(subDeletions, stomp.TopicNoteDeletions),
	} {
		if err := c.write(conn, frame); err != nil {
			conn.Close()
			c.setState(Closed, err)
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(Open, nil)

	done := make(chan error, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn(conn)
		case <-stop:
		}
	}()
	go func() {
		err := c.readLoop(conn)
		close(stop)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		c.setState(Closed, err)
		done <- err
	}()
	return done, nil
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.dispatch(string(data))
	}
}

func (c *Channel) dispatch(text string) {
	frame, ok := stomp.Decode(text)
	if !ok {
		return
	}

	switch dest := frame.Header(stomp.HeaderDestination); dest {
	case stomp.TopicNoteUpdates:
		var note model.Note
		if err := json.Unmarshal([]byte(frame.Body), &note); err != nil {
			c.logger.Warn("dropping malformed note update", "err", err)
			return
		}
		if note.ID == nil {
			c.logger.Warn("dropping note update without id")
			return
		}
		c.listener.NoteUpdated(note)
	case stomp.TopicNoteDeletions:
		var note model.Note
		if err := json.Unmarshal([]byte(frame.Body), &note); err != nil || note.ID == nil {
			c.logger.Warn("dropping malformed note deletion", "err", err)
			return
		}
		c.listener.NoteDeleted(*note.ID)
	default:
		c.logger.Debug("ignoring message", "destination", dest)
	}
}

// Send publishes note on the application destination for topic, which is
// either stomp.TopicNoteUpdates or stomp.TopicNoteDeletions.
func (c *Channel) Send(topic string, note model.Note) error {
	dest := ""
	switch topic {
	case stomp.TopicNoteUpdates:
		dest = stomp.AppNoteUpdates
	case stomp.TopicNoteDeletions:
		dest = stomp.AppNoteDeletions
		note = model.Note{ID: note.ID}
	default:
		return fmt.Errorf("unknown topic %q", topic)
	}

	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to encode note: %w", err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || c.State() != Open {
		return ErrNotOpen
	}
	if err := c.write(conn, stomp.Send(dest, string(body))); err != nil {
		return fmt.Errorf("failed to send to %s: %w", dest, err)
	}
	return nil
}

func (c *Channel) write(conn *websocket.Conn, frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Channel) closeConn(conn *websocket.Conn) {
	c.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	conn.Close()
}

// Close drops the current connection, if any.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.closeConn(conn)
	return nil
}
