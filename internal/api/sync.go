package api

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/model"
	"github.com/nzaccagnino/notesync/internal/stomp"
)

type ChangeKind int

const (
	ChangeUpdated ChangeKind = iota
	ChangeDeleted
	ChangeSnapshot
	ChangeFailed
	ChangeConnection
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeSnapshot:
		return "snapshot"
	case ChangeFailed:
		return "failed"
	case ChangeConnection:
		return "connection"
	}
	return "unknown"
}

// Change is one event on the store feed. Push events, poll results and
// connection state all arrive as Changes so consumers have a single merge
// path.
type Change struct {
	Kind  ChangeKind
	Note  model.Note    // ChangeUpdated
	ID    int64         // ChangeDeleted
	Notes []model.Note  // ChangeSnapshot
	Err   error         // ChangeFailed, ChangeConnection
	State channel.State // ChangeConnection
}

type StoreOptions struct {
	Collection   model.Collection
	PollInterval time.Duration
	Channel      channel.Settings
	Logger       *log.Logger
}

// Store is the note store as seen by a client: REST calls for reads and
// writes, the push channel for broadcasts and a poll timer as a backstop.
type Store struct {
	client       *Client
	channel      *channel.Channel
	collection   model.Collection
	pollInterval time.Duration
	logger       *log.Logger

	mu     sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

func NewStore(opts StoreOptions) (*Store, error) {
	endpoint, err := channel.EndpointFor(opts.Collection.Server)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	s := &Store{
		client:       NewClient(opts.Collection.Server),
		collection:   opts.Collection,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger.WithPrefix("store"),
		subs:         make(map[int]func(Change)),
	}
	s.channel = channel.New(endpoint, pushListener{s}, opts.Logger, opts.Channel)
	return s, nil
}

func (s *Store) Collection() model.Collection {
	return s.collection
}

// Subscribe registers fn for every Change. fn is called from background
// goroutines and must not block.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) emit(c Change) {
	s.mu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

// RefreshNow fetches the full note set and emits it as a snapshot.
func (s *Store) RefreshNow(ctx context.Context) error {
	notes, err := s.client.ListNotes(ctx, s.collection.Server)
	if err != nil {
		err = fmt.Errorf("failed to refresh notes: %w", err)
		s.emit(Change{Kind: ChangeFailed, Err: err})
		return err
	}
	s.emit(Change{Kind: ChangeSnapshot, Notes: notes})
	return nil
}

// Run keeps the push channel connected and polls every PollInterval until
// ctx is done.
func (s *Store) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.channel.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("push channel stopped", "err", err)
			s.emit(Change{Kind: ChangeFailed, Err: err})
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.RefreshNow(ctx)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			if err := s.RefreshNow(ctx); err != nil {
				s.logger.Warn("poll failed", "err", err)
			}
		}
	}
}

// Create stores a new note and broadcasts it.
func (s *Store) Create(ctx context.Context, note model.Note) (model.Note, error) {
	created, err := s.client.CreateNote(ctx, note)
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to create note: %w", err)
	}
	s.broadcast(stomp.TopicNoteUpdates, *created)
	return *created, nil
}

// Save updates an existing note and broadcasts it.
func (s *Store) Save(ctx context.Context, note model.Note) (model.Note, error) {
	saved, err := s.client.UpdateNote(ctx, note)
	if err != nil {
		return model.Note{}, fmt.Errorf("failed to save note: %w", err)
	}
	s.broadcast(stomp.TopicNoteUpdates, *saved)
	return *saved, nil
}

// Delete removes a note and broadcasts the deletion.
func (s *Store) Delete(ctx context.Context, note model.Note) error {
	if note.ID == nil {
		return nil
	}
	if err := s.client.DeleteNote(ctx, *note.ID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	s.broadcast(stomp.TopicNoteDeletions, note)
	return nil
}

// Attachments go straight to the file store; they are not broadcast.

func (s *Store) Files(ctx context.Context, noteID int64) ([]model.FileAttachment, error) {
	return s.client.ListFiles(ctx, noteID)
}

func (s *Store) UploadFile(ctx context.Context, noteID int64, filename string, r io.Reader) (model.FileAttachment, error) {
	f, err := s.client.UploadFile(ctx, noteID, filename, r)
	if err != nil {
		return model.FileAttachment{}, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return *f, nil
}

func (s *Store) DownloadFile(ctx context.Context, noteID int64, filename string) ([]byte, error) {
	data, err := s.client.DownloadFile(ctx, noteID, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", filename, err)
	}
	return data, nil
}

func (s *Store) RenameFile(ctx context.Context, noteID int64, filename, newName string) error {
	if err := s.client.RenameFile(ctx, noteID, filename, newName); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filename, err)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, noteID int64, filename string) error {
	if err := s.client.DeleteFile(ctx, noteID, filename); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}

func (s *Store) DeleteAllFiles(ctx context.Context, noteID int64) error {
	if err := s.client.DeleteAllFiles(ctx, noteID); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

// The store call already succeeded; other clients catch up on their next
// poll if the broadcast is lost.
func (s *Store) broadcast(topic string, note model.Note) {
	if err := s.channel.Send(topic, note); err != nil {
		s.logger.Warn("broadcast failed", "topic", topic, "err", err)
	}
}

func (s *Store) Close() error {
	return s.channel.Close()
}

type pushListener struct {
	s *Store
}

func (l pushListener) NoteUpdated(note model.Note) {
	l.s.emit(Change{Kind: ChangeUpdated, Note: note})
}

func (l pushListener) NoteDeleted(id int64) {
	l.s.emit(Change{Kind: ChangeDeleted, ID: id})
}

func (l pushListener) StateChanged(state channel.State, err error) {
	l.s.emit(Change{Kind: ChangeConnection, State: state, Err: err})
}
