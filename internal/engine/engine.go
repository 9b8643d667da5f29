// Package engine reconciles local edits, pushed changes and poll results
// into one note list without losing unsaved input.
//
// The Engine is not safe for concurrent use. All messages must be fed
// through Update from a single loop (the bubbletea program in the client);
// store calls run inside the returned commands and report back as
// messages on that same loop.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/filter"
	"github.com/nzaccagnino/notesync/internal/model"
)

type Options struct {
	Store      NoteStore
	Pipeline   *content.Pipeline
	Collection model.Collection
	Logger     *log.Logger
}

type Engine struct {
	ctx        context.Context
	store      NoteStore
	pipeline   *content.Pipeline
	collection model.Collection
	logger     *log.Logger

	notes map[int64]model.Note

	state      State
	buffer     Buffer
	committing *Buffer

	index filter.Index
	view  filter.View

	err    error
	status Status
	conn   channel.State
}

func New(ctx context.Context, opts Options) *Engine {
	return &Engine{
		ctx:        ctx,
		store:      opts.Store,
		pipeline:   opts.Pipeline,
		collection: opts.Collection,
		logger:     opts.Logger.WithPrefix("engine"),
		notes:      make(map[int64]model.Note),
	}
}

// Init requests the first snapshot.
func (e *Engine) Init() tea.Cmd {
	return e.refreshCmd()
}

func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case EditMsg:
		e.edit(msg)
	case NewNoteMsg:
		e.createMode()
	case SelectMsg:
		e.selectNote(msg)
	case CommitMsg:
		return e.commit()
	case DeleteMsg:
		return e.deleteNote(msg.ID)
	case FilterMsg:
		e.index.Text = msg.Text
		e.index.ContentSearch = msg.ContentSearch
		e.recompute()
	case TagsMsg:
		e.selectTags(msg.Tags)
	case RefreshMsg:
		return e.refreshCmd()
	case CollectionMsg:
		return e.switchCollection(msg)

	case api.Change:
		e.applyChange(msg)

	case committedMsg:
		return e.committed(msg)
	case commitFailedMsg:
		e.committing = nil
		e.err = msg.err
		e.status = ""
	case deletedMsg:
		e.deleted(msg.id)
	case deleteFailedMsg:
		e.err = msg.err
	case cascadeMsg:
		e.cascaded(msg)
	}
	return nil
}

// View returns a copy of the current state for rendering.
func (e *Engine) View() Snapshot {
	known := e.collectionNotes()
	previewID := int64(0)
	if e.state.SelectedID != nil {
		previewID = *e.state.SelectedID
	}

	return Snapshot{
		Collection:    e.collection,
		State:         e.state,
		Buffer:        e.buffer,
		Dirty:         e.dirty(),
		Committing:    e.committing != nil,
		Notes:         append([]model.Note(nil), e.view.Notes...),
		Tags:          append([]string(nil), e.view.Tags...),
		SelectedTags:  append([]string(nil), e.index.Tags...),
		Filter:        e.index.Text,
		ContentSearch: e.index.ContentSearch,
		Preview:       e.pipeline.RenderNote(previewID, e.buffer.Content, known),
		Links:         content.Links(e.buffer.Content, known),
		Err:           e.err,
		Status:        e.status,
		Connection:    e.conn,
	}
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) Buffer() Buffer {
	return e.buffer
}

// Note returns the derived note with id in the active collection.
func (e *Engine) Note(id int64) (model.Note, bool) {
	n, ok := e.notes[id]
	if !ok || n.CollectionTitle != e.collection.Title {
		return model.Note{}, false
	}
	return n.Clone(), true
}

// NoteByTitle resolves a wiki-link target within the active collection.
// Titles compare case-insensitively.
func (e *Engine) NoteByTitle(title string) (model.Note, bool) {
	for _, n := range e.collectionNotes() {
		if model.SameTitle(n.Title, title) {
			return n.Clone(), true
		}
	}
	return model.Note{}, false
}

// Local intents

func (e *Engine) edit(msg EditMsg) {
	e.buffer = Buffer{Title: msg.Title, Content: msg.Content}
	if e.state.Kind != Editing {
		e.state = State{Kind: Editing, SelectedID: e.state.SelectedID}
	}
	e.err = nil
}

func (e *Engine) createMode() {
	e.buffer = Buffer{}
	e.state = State{Kind: Editing}
	e.err = nil
	e.status = ""
}

func (e *Engine) selectNote(msg SelectMsg) {
	if e.dirty() && !msg.Force {
		e.status = StatusUnsaved
		return
	}
	n, ok := e.Note(msg.ID)
	if !ok {
		return
	}
	e.buffer = Buffer{Title: n.Title, Content: n.Content}
	e.state = State{Kind: e.restKind(), SelectedID: model.ID(msg.ID)}
	e.err = nil
	e.status = ""
}

func (e *Engine) commit() tea.Cmd {
	if e.state.Kind != Editing || e.committing != nil {
		return nil
	}

	title := strings.TrimSpace(e.buffer.Title)
	if err := e.validate(title); err != nil {
		e.err = err
		return nil
	}

	note := model.Note{
		ID:              e.state.SelectedID,
		Title:           title,
		Content:         e.buffer.Content,
		CollectionTitle: e.collection.Title,
	}
	note = e.pipeline.Apply(note, e.collectionNotes())

	snapshot := e.buffer
	e.committing = &Buffer{Title: title, Content: note.Content}
	e.err = nil
	e.status = StatusSaving

	return e.commitCmd(note, snapshot)
}

// commitCmd dispatches on the state: a buffer without a selected note is
// created, otherwise the selected note is saved.
func (e *Engine) commitCmd(note model.Note, snapshot Buffer) tea.Cmd {
	ctx, store := e.ctx, e.store

	if note.ID == nil {
		return func() tea.Msg {
			created, err := store.Create(ctx, note)
			if err != nil {
				return commitFailedMsg{err: err}
			}
			return committedMsg{note: created, created: true, buffer: snapshot}
		}
	}

	oldTitle := ""
	if prev, ok := e.notes[*note.ID]; ok {
		oldTitle = prev.Title
	}
	return func() tea.Msg {
		saved, err := store.Save(ctx, note)
		if err != nil {
			return commitFailedMsg{err: err}
		}
		return committedMsg{note: saved, oldTitle: oldTitle, buffer: snapshot}
	}
}

func (e *Engine) validate(title string) error {
	if title == "" {
		return ErrBlankTitle
	}
	for _, n := range e.collectionNotes() {
		if e.state.Selected(n.IDValue()) {
			continue
		}
		if model.SameTitle(n.Title, title) {
			return fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
		}
	}
	return nil
}

func (e *Engine) committed(msg committedMsg) tea.Cmd {
	e.committing = nil
	e.err = nil
	if msg.note.ID == nil {
		e.err = fmt.Errorf("store returned note %q without id", msg.note.Title)
		return nil
	}
	id := *msg.note.ID
	e.notes[id] = msg.note
	e.status = StatusSaved

	if e.buffer == msg.buffer {
		e.buffer = Buffer{Title: msg.note.Title, Content: msg.note.Content}
		e.state = State{Kind: e.restKind(), SelectedID: model.ID(id)}
	} else {
		// Typed while the commit was in flight; keep editing the same note.
		e.state = State{Kind: Editing, SelectedID: model.ID(id)}
	}

	var cmd tea.Cmd
	if !msg.created && msg.oldTitle != "" && msg.oldTitle != msg.note.Title {
		cmd = e.cascade(e.notes[id], msg.oldTitle)
	}
	e.rederive()
	return cmd
}

// cascade rewrites [[oldTitle]] in the other notes of the collection and
// persists each of them.
func (e *Engine) cascade(renamed model.Note, oldTitle string) tea.Cmd {
	changed := e.pipeline.Cascade(e.collectionNotes(), renamed, oldTitle)
	if len(changed) == 0 {
		return nil
	}
	for _, n := range changed {
		e.notes[n.IDValue()] = n
		if e.state.Selected(n.IDValue()) && e.state.Kind != Editing {
			e.buffer = Buffer{Title: n.Title, Content: n.Content}
		}
	}
	e.logger.Debug("rename cascade", "from", oldTitle, "to", renamed.Title, "notes", len(changed))

	ctx, store := e.ctx, e.store
	return func() tea.Msg {
		var res cascadeMsg
		for _, n := range changed {
			saved, err := store.Save(ctx, n)
			if err != nil {
				res.errs = append(res.errs, fmt.Errorf("failed to update references in %q: %w", n.Title, err))
				continue
			}
			res.saved = append(res.saved, saved)
		}
		return res
	}
}

func (e *Engine) cascaded(msg cascadeMsg) {
	for _, n := range msg.saved {
		if n.ID != nil {
			e.notes[*n.ID] = n
		}
	}
	if len(msg.errs) > 0 {
		e.err = msg.errs[0]
		e.logger.Warn("rename cascade incomplete", "failed", len(msg.errs))
	}
	e.rederive()
}

func (e *Engine) deleteNote(id int64) tea.Cmd {
	n, ok := e.notes[id]
	if !ok {
		// Already gone, nothing to tell the store.
		if e.state.Selected(id) {
			e.deleted(id)
		}
		return nil
	}

	ctx, store := e.ctx, e.store
	return func() tea.Msg {
		if err := store.Delete(ctx, n); err != nil {
			return deleteFailedMsg{err: err}
		}
		return deletedMsg{id: id}
	}
}

func (e *Engine) deleted(id int64) {
	delete(e.notes, id)
	if e.state.Selected(id) {
		e.buffer = Buffer{}
		e.state = State{Kind: e.restKind()}
	}
	e.err = nil
	e.status = StatusDeleted
	e.rederive()
}

func (e *Engine) selectTags(tags []string) {
	var clean []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		clean = append(clean, tag)
	}
	e.index.Tags = clean

	switch {
	case len(clean) > 0 && e.state.Kind == Idle:
		e.state.Kind = TagFiltered
	case len(clean) == 0 && e.state.Kind == TagFiltered:
		e.state.Kind = Idle
	}
	e.recompute()
}

func (e *Engine) switchCollection(msg CollectionMsg) tea.Cmd {
	e.collection = msg.Collection
	if msg.Store != nil {
		e.store = msg.Store
	}
	e.pipeline = msg.Pipeline
	if e.pipeline == nil {
		e.pipeline = content.New(msg.Collection.Server)
	}
	e.notes = make(map[int64]model.Note)
	e.buffer = Buffer{}
	e.committing = nil
	e.state = State{Kind: e.restKind()}
	e.err = nil
	e.status = ""
	e.recompute()
	return e.refreshCmd()
}

func (e *Engine) refreshCmd() tea.Cmd {
	ctx, store := e.ctx, e.store
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		// The result arrives through the store feed.
		store.RefreshNow(ctx)
		return nil
	}
}

// Store feed

func (e *Engine) applyChange(c api.Change) {
	switch c.Kind {
	case api.ChangeUpdated:
		e.applyUpdate(c.Note)
	case api.ChangeDeleted:
		e.applyDelete(c.ID)
	case api.ChangeSnapshot:
		if e.holdsInput() {
			e.logger.Debug("discarding poll while editing", "notes", len(c.Notes))
			return
		}
		e.replaceAll(c.Notes)
	case api.ChangeFailed:
		e.err = c.Err
	case api.ChangeConnection:
		e.conn = c.State
	}
}

func (e *Engine) applyUpdate(n model.Note) {
	if n.ID == nil {
		e.logger.Warn("dropping pushed note without id", "title", n.Title)
		return
	}
	id := *n.ID

	if n.CollectionTitle != e.collection.Title {
		// Moved to another collection or never ours.
		if prev, ok := e.notes[id]; ok && prev.CollectionTitle == e.collection.Title {
			e.applyDelete(id)
		}
		return
	}

	prev, known := e.notes[id]
	e.notes[id] = n
	if e.state.Selected(id) {
		incoming := Buffer{Title: n.Title, Content: n.Content}
		switch {
		case e.committing != nil && *e.committing == incoming:
			// Echo of our own commit; committedMsg settles the buffer.
		case known && prev.Title == n.Title && prev.Content == n.Content:
			// Nothing new for the open note.
		case e.state.Kind == Editing:
			e.buffer = incoming
			e.state = State{Kind: e.restKind(), SelectedID: model.ID(id)}
			e.status = StatusUpdatedRemotely
		default:
			e.buffer = incoming
		}
	}
	e.rederive()
}

func (e *Engine) applyDelete(id int64) {
	if _, ok := e.notes[id]; !ok {
		return
	}
	delete(e.notes, id)

	if e.state.Selected(id) {
		if e.state.Kind == Editing {
			// Keep the input; committing recreates the note.
			e.state = State{Kind: Editing}
			e.status = StatusDeletedRemotely
		} else {
			e.buffer = Buffer{}
			e.state = State{Kind: e.restKind()}
		}
	}
	e.rederive()
}

func (e *Engine) replaceAll(notes []model.Note) {
	next := make(map[int64]model.Note, len(notes))
	for _, n := range notes {
		if n.ID == nil {
			continue
		}
		next[*n.ID] = n
	}
	e.notes = next

	if id := e.state.SelectedID; id != nil {
		if n, ok := e.Note(*id); ok {
			e.buffer = Buffer{Title: n.Title, Content: n.Content}
		} else {
			e.buffer = Buffer{}
			e.state = State{Kind: e.restKind()}
		}
	}
	e.err = nil
	e.rederive()
}

// Derived state

// rederive recomputes tags and HTML of every note in the collection
// against the current note set, then the visible list.
func (e *Engine) rederive() {
	known := e.collectionNotes()
	for _, n := range known {
		e.notes[n.IDValue()] = e.pipeline.Apply(n, known)
	}
	e.recompute()
}

// recompute refreshes the visible list. An empty tag facet result falls
// back to creating a note.
func (e *Engine) recompute() {
	e.view = e.index.Apply(e.collectionNotes())
	if e.index.TagFiltered() && len(e.view.Notes) == 0 && e.state.Kind != Editing {
		e.createMode()
		e.status = StatusNoTagMatches
	}
}

func (e *Engine) collectionNotes() []model.Note {
	return filter.InCollection(e.sorted(), e.collection.Title)
}

func (e *Engine) sorted() []model.Note {
	out := make([]model.Note, 0, len(e.notes))
	for _, n := range e.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IDValue() < out[j].IDValue() })
	return out
}

func (e *Engine) restKind() Kind {
	if e.index.TagFiltered() {
		return TagFiltered
	}
	return Idle
}

// holdsInput reports whether a poll could overwrite something the user
// typed. An untouched create form, such as the one an empty tag facet
// opens, holds nothing.
func (e *Engine) holdsInput() bool {
	return e.state.Kind == Editing && (e.dirty() || e.committing != nil)
}

// dirty reports whether the buffer holds input not yet in the store.
func (e *Engine) dirty() bool {
	if e.state.Kind != Editing {
		return false
	}
	if e.state.SelectedID == nil {
		return e.buffer != Buffer{}
	}
	n, ok := e.notes[*e.state.SelectedID]
	if !ok {
		return true
	}
	return e.buffer != Buffer{Title: n.Title, Content: n.Content}
}
