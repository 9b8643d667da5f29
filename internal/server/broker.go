package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nzaccagnino/notesync/internal/stomp"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 4 << 20
	sessionBacklog = 64
)

// Broker is a minimal STOMP relay: frames sent to /app/X are delivered
// as MESSAGE frames to every session subscribed to /topic/X, the sender
// included.
type Broker struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
	closed   bool
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan string
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[string]string // subscription id -> destination
}

func NewBroker(logger *log.Logger) *Broker {
	return &Broker{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   logger.WithPrefix("broker"),
		sessions: make(map[*session]struct{}),
	}
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := &session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan string, sessionBacklog),
		done: make(chan struct{}),
		subs: make(map[string]string),
	}
	if !b.register(s) {
		conn.Close()
		return
	}
	b.logger.Debug("session opened", "session", s.id, "remote", r.RemoteAddr)

	go b.writePump(s)
	b.readPump(s)

	b.unregister(s)
	b.logger.Debug("session closed", "session", s.id)
}

// Sessions returns the number of connected push sessions.
func (b *Broker) Sessions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.sessions {
		n += len(s.subscriptionsFor(topic))
	}
	return n
}

// Publish delivers body to every subscriber of topic.
func (b *Broker) Publish(topic, body string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for s := range b.sessions {
		for _, subID := range s.subscriptionsFor(topic) {
			frame := stomp.Message(topic, subID, uuid.NewString(), body)
			select {
			case s.send <- frame:
				delivered++
			default:
				b.logger.Warn("dropping slow session", "session", s.id)
				s.close()
			}
		}
	}
	return delivered
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.sessions {
		s.close()
	}
}

func (b *Broker) register(s *session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.sessions[s] = struct{}{}
	return true
}

func (b *Broker) unregister(s *session) {
	b.mu.Lock()
	delete(b.sessions, s)
	b.mu.Unlock()
	s.close()
}

func (b *Broker) readPump(s *session) {
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("read failed", "session", s.id, "err", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		frame, ok := stomp.DecodeAny(string(data))
		if !ok {
			b.logger.Debug("malformed frame", "session", s.id)
			continue
		}
		if !b.handle(s, frame) {
			return
		}
	}
}

// handle applies one client frame; false ends the session.
func (b *Broker) handle(s *session, f *stomp.Frame) bool {
	switch f.Command {
	case stomp.CommandConnect, stomp.CommandStomp:
		s.enqueue(stomp.Connected())
	case stomp.CommandSubscribe:
		id, dest := f.Header(stomp.HeaderID), f.Header(stomp.HeaderDestination)
		if id == "" || dest == "" {
			s.enqueue(stomp.Error("subscribe requires id and destination"))
			return true
		}
		s.mu.Lock()
		s.subs[id] = dest
		s.mu.Unlock()
	case stomp.CommandUnsubscribe:
		s.mu.Lock()
		delete(s.subs, f.Header(stomp.HeaderID))
		s.mu.Unlock()
	case stomp.CommandSend:
		topic := stomp.TopicFor(f.Header(stomp.HeaderDestination))
		if topic == "" {
			s.enqueue(stomp.Error("unknown destination"))
			return true
		}
		n := b.Publish(topic, f.Body)
		b.logger.Debug("relayed", "session", s.id, "topic", topic, "subscribers", n)
	case stomp.CommandDisconnect:
		return false
	}
	return true
}

func (b *Broker) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *session) enqueue(frame string) {
	select {
	case s.send <- frame:
	case <-s.done:
	}
}

func (s *session) subscriptionsFor(topic string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, dest := range s.subs {
		if dest == topic {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}
