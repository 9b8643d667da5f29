package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/config"
	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/engine"
	"github.com/nzaccagnino/notesync/internal/model"
	"github.com/nzaccagnino/notesync/internal/ui"
)

var errNoStore = errors.New("no collection open")

// session owns the store of the active collection and swaps it when the
// selected collection changes in the config file.
type session struct {
	ctx     context.Context
	logger  *log.Logger
	program *tea.Program

	mu          sync.Mutex
	store       *api.Store
	collection  model.Collection
	cancel      context.CancelFunc
	unsubscribe func()
}

func (s *session) start(store *api.Store) {
	ctx, cancel := context.WithCancel(s.ctx)
	unsubscribe := store.Subscribe(func(c api.Change) {
		s.program.Send(c)
	})

	s.mu.Lock()
	s.store = store
	s.collection = store.Collection()
	s.cancel = cancel
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go func() {
		if err := store.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("store stopped", "collection", store.Collection().Title, "err", err)
		}
	}()
}

func (s *session) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return
	}
	s.unsubscribe()
	s.cancel()
	s.store.Close()
	s.store = nil
}

// reload switches to the newly selected collection, if it differs from
// the open one.
func (s *session) reload(next *config.Config) {
	col := next.Selected()
	if collectionFlag != "" {
		// Pinned on the command line; only its settings can change.
		if pinned, ok := next.CollectionByTitle(collectionFlag); ok {
			col = pinned
		}
	}

	s.mu.Lock()
	current := s.collection
	s.mu.Unlock()
	if col == current {
		return
	}

	store, err := newStore(next, col, s.logger)
	if err != nil {
		s.logger.Error("collection switch failed", "collection", col.Title, "err", err)
		return
	}
	s.logger.Info("switching collection", "from", current.Title, "to", col.Title)

	s.stop()
	s.start(store)
	s.program.Send(engine.CollectionMsg{Collection: col, Store: store, Pipeline: content.New(col.Server)})
}

func (s *session) active() (*api.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store, nil
}

// The file operations below go through whichever store is active.

func (s *session) Files(ctx context.Context, noteID int64) ([]model.FileAttachment, error) {
	store, err := s.active()
	if err != nil {
		return nil, nil
	}
	return store.Files(ctx, noteID)
}

func (s *session) UploadFile(ctx context.Context, noteID int64, filename string, r io.Reader) (model.FileAttachment, error) {
	store, err := s.active()
	if err != nil {
		return model.FileAttachment{}, err
	}
	return store.UploadFile(ctx, noteID, filename, r)
}

func (s *session) DownloadFile(ctx context.Context, noteID int64, filename string) ([]byte, error) {
	store, err := s.active()
	if err != nil {
		return nil, err
	}
	return store.DownloadFile(ctx, noteID, filename)
}

func (s *session) RenameFile(ctx context.Context, noteID int64, filename, newName string) error {
	store, err := s.active()
	if err != nil {
		return err
	}
	return store.RenameFile(ctx, noteID, filename, newName)
}

func (s *session) DeleteFile(ctx context.Context, noteID int64, filename string) error {
	store, err := s.active()
	if err != nil {
		return err
	}
	return store.DeleteFile(ctx, noteID, filename)
}

func (s *session) DeleteAllFiles(ctx context.Context, noteID int64) error {
	store, err := s.active()
	if err != nil {
		return err
	}
	return store.DeleteAllFiles(ctx, noteID)
}

func runTUI(ctx context.Context) error {
	logger, closeLog, err := newLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	col := cfg.Selected()
	store, err := newStore(cfg, col, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := engine.New(ctx, engine.Options{
		Store:      store,
		Pipeline:   content.New(col.Server),
		Collection: col,
		Logger:     logger,
	})
	if cfg.ContentSearch {
		e.Update(engine.FilterMsg{ContentSearch: true})
	}

	s := &session{ctx: ctx, logger: logger}
	m := ui.NewModel(ctx, ui.Options{Engine: e, Files: s, Translator: translator()})
	s.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	s.start(store)
	defer s.stop()

	go func() {
		if err := config.Watch(ctx, configPath, logger, s.reload); err != nil {
			logger.Warn("config watch stopped", "err", err)
		}
	}()

	logger.Info("client started", "collection", col.Title, "server", col.Server)
	if _, err := s.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run UI: %w", err)
	}
	return nil
}
