package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/engine"
	"github.com/nzaccagnino/notesync/internal/i18n"
	"github.com/nzaccagnino/notesync/internal/model"
)

var testCollection = model.Collection{Title: "Default Collection", Name: "Default", Server: "http://localhost:5689"}

type fakeStore struct {
	nextID  int64
	notes   map[int64]model.Note
	deleted []int64
	files   map[int64][]model.FileAttachment
	blobs   map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notes: make(map[int64]model.Note),
		files: make(map[int64][]model.FileAttachment),
		blobs: make(map[string][]byte),
	}
}

func (s *fakeStore) Create(_ context.Context, n model.Note) (model.Note, error) {
	s.nextID++
	n.ID = model.ID(s.nextID)
	s.notes[s.nextID] = n
	return n, nil
}

func (s *fakeStore) Save(_ context.Context, n model.Note) (model.Note, error) {
	if _, ok := s.notes[*n.ID]; !ok {
		return model.Note{}, errors.New("missing")
	}
	s.notes[*n.ID] = n
	return n, nil
}

func (s *fakeStore) Delete(_ context.Context, n model.Note) error {
	delete(s.notes, *n.ID)
	s.deleted = append(s.deleted, *n.ID)
	return nil
}

func (s *fakeStore) RefreshNow(context.Context) error { return nil }

func (s *fakeStore) Files(_ context.Context, id int64) ([]model.FileAttachment, error) {
	return append([]model.FileAttachment(nil), s.files[id]...), nil
}

func blobKey(id int64, name string) string {
	return fmt.Sprintf("%d/%s", id, name)
}

func (s *fakeStore) UploadFile(_ context.Context, id int64, name string, r io.Reader) (model.FileAttachment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.FileAttachment{}, err
	}
	f := model.FileAttachment{NoteID: id, Filename: name, Size: int64(len(data))}
	s.files[id] = append(s.files[id], f)
	s.blobs[blobKey(id, name)] = data
	return f, nil
}

func (s *fakeStore) DownloadFile(_ context.Context, id int64, name string) ([]byte, error) {
	data, ok := s.blobs[blobKey(id, name)]
	if !ok {
		return nil, api.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) RenameFile(_ context.Context, id int64, name, newName string) error {
	for i, f := range s.files[id] {
		if f.Filename == name {
			s.files[id][i].Filename = newName
			s.blobs[blobKey(id, newName)] = s.blobs[blobKey(id, name)]
			delete(s.blobs, blobKey(id, name))
			return nil
		}
	}
	return api.ErrNotFound
}

func (s *fakeStore) DeleteFile(_ context.Context, id int64, name string) error {
	kept := s.files[id][:0]
	for _, f := range s.files[id] {
		if f.Filename != name {
			kept = append(kept, f)
		}
	}
	s.files[id] = kept
	delete(s.blobs, blobKey(id, name))
	return nil
}

func (s *fakeStore) DeleteAllFiles(_ context.Context, id int64) error {
	for _, f := range s.files[id] {
		delete(s.blobs, blobKey(id, f.Filename))
	}
	delete(s.files, id)
	return nil
}

func newTestModel(t *testing.T, store *fakeStore) tea.Model {
	t.Helper()
	e := engine.New(context.Background(), engine.Options{
		Store:      store,
		Pipeline:   content.New(testCollection.Server),
		Collection: testCollection,
		Logger:     log.New(io.Discard),
	})
	m := NewModel(context.Background(), Options{Engine: e, Files: store, Translator: i18n.New("en")})
	m.title.Cursor.SetMode(cursor.CursorStatic)
	m.content.Cursor.SetMode(cursor.CursorStatic)
	m.prompt.Cursor.SetMode(cursor.CursorStatic)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next
}

// drive runs cmd and every command it produces, feeding the resulting
// messages back into the model like the bubbletea loop does.
func drive(m tea.Model, cmd tea.Cmd) tea.Model {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, next)
		}
	}
	return m
}

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		var cmd tea.Cmd
		m, cmd = m.Update(k)
		m = drive(m, cmd)
	}
	return m
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func snapshot(m tea.Model) engine.Snapshot {
	return m.(Model).snap
}

func TestCreateNoteFromKeyboard(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)

	m = press(m,
		tea.KeyMsg{Type: tea.KeyCtrlN},
		typeText("Meeting"),
		tea.KeyMsg{Type: tea.KeyTab},
		typeText("agenda #work"),
	)
	snap := snapshot(m)
	assert.True(t, snap.State.Creating())
	assert.Equal(t, "Meeting", snap.Buffer.Title)
	assert.Equal(t, "agenda #work", snap.Buffer.Content)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	snap = snapshot(m)
	require.Len(t, store.notes, 1)
	require.Len(t, snap.Notes, 1)
	assert.Equal(t, "Meeting", snap.Notes[0].Title)
	assert.Equal(t, []string{"work"}, snap.Tags)
	assert.NotEqual(t, engine.Editing, snap.State.Kind)

	view := m.View()
	assert.Contains(t, view, "Meeting")
	assert.Contains(t, view, "#work")
}

func TestBlankTitleShowsError(t *testing.T) {
	m := newTestModel(t, newFakeStore())

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.ErrorIs(t, snapshot(m).Err, engine.ErrBlankTitle)
	assert.Contains(t, m.View(), "Title can't be empty")
}

func TestFilterPrompt(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Groceries"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Len(t, snapshot(m).Notes, 1)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlF}, typeText("zzz"))
	assert.Empty(t, snapshot(m).Notes)
	assert.Equal(t, "zzz", snapshot(m).Filter)

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, snapshot(m).Notes, 1)
	assert.Empty(t, snapshot(m).Filter)
}

func TestTagPrompt(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	for _, n := range []struct{ title, body string }{{"A", "#work"}, {"B", "#home"}} {
		m = press(m,
			tea.KeyMsg{Type: tea.KeyCtrlN}, typeText(n.title),
			tea.KeyMsg{Type: tea.KeyTab}, typeText(n.body),
			tea.KeyMsg{Type: tea.KeyCtrlS},
		)
	}
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlG}, typeText("#home"), tea.KeyMsg{Type: tea.KeyEnter})
	snap := snapshot(m)
	require.Len(t, snap.Notes, 1)
	assert.Equal(t, "B", snap.Notes[0].Title)
	assert.Equal(t, []string{"home"}, snap.SelectedTags)
}

func TestDeleteWithConfirmation(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Old"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlD}, typeText("n"))
	assert.Empty(t, store.deleted)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Contains(t, m.View(), "Delete 'Old'?")
	m = press(m, typeText("y"))
	assert.Equal(t, []int64{1}, store.deleted)
	assert.Empty(t, snapshot(m).Notes)
}

func TestSelectIsBlockedByUnsavedInput(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("First"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Second"), tea.KeyMsg{Type: tea.KeyCtrlS})

	// Start a third note, then try to open the first.
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Draft"), tea.KeyMsg{Type: tea.KeyEsc})
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, engine.StatusUnsaved, snapshot(m).Status)
	assert.Equal(t, "Draft", snapshot(m).Buffer.Title)

	// A second enter discards the draft.
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "First", snapshot(m).Buffer.Title)
}

func TestAttachmentsLoadOnSelect(t *testing.T) {
	store := newFakeStore()
	store.files[1] = []model.FileAttachment{{NoteID: 1, Filename: "cat.png", Size: 2048}}
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Pics"), tea.KeyMsg{Type: tea.KeyCtrlS})

	view := m.View()
	assert.Contains(t, view, "cat.png")
	assert.Contains(t, view, "2.0KB")
}

func TestFollowLinkOpensTarget(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Target"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = press(m,
		tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Source"),
		tea.KeyMsg{Type: tea.KeyTab}, typeText("see [[target]]"),
		tea.KeyMsg{Type: tea.KeyCtrlS},
	)
	require.Equal(t, "Source", snapshot(m).Buffer.Title)
	require.Len(t, snapshot(m).Links, 1)

	m = press(m, tea.KeyMsg{Type: tea.KeyEsc}, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, PanelSide, m.(Model).activePanel)
	assert.Contains(t, m.View(), "> [[target]]")

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	snap := snapshot(m)
	assert.Equal(t, "Target", snap.Buffer.Title)
	require.NotNil(t, snap.State.SelectedID)
	assert.Equal(t, int64(1), *snap.State.SelectedID)
	assert.Equal(t, "Target", snap.Notes[m.(Model).cursor].Title)
}

func TestFollowLinkWithUnsavedInputNeedsSecondEnter(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Target"), tea.KeyMsg{Type: tea.KeyCtrlS})
	m = press(m,
		tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Source"),
		tea.KeyMsg{Type: tea.KeyTab}, typeText("[[Target]] draft"),
	)

	m = press(m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, engine.StatusUnsaved, snapshot(m).Status)
	assert.Equal(t, "Source", snapshot(m).Buffer.Title)

	m = press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Target", snapshot(m).Buffer.Title)
}

func TestFollowBrokenLinkShowsNotice(t *testing.T) {
	m := newTestModel(t, newFakeStore())
	m = press(m,
		tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Source"),
		tea.KeyMsg{Type: tea.KeyTab}, typeText("[[Nowhere]]"),
		tea.KeyMsg{Type: tea.KeyCtrlS},
	)
	require.Len(t, snapshot(m).Links, 1)
	require.True(t, snapshot(m).Links[0].Broken)

	m = press(m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Source", snapshot(m).Buffer.Title)
	assert.Contains(t, m.View(), "Note not found: Nowhere")
}

func TestAttachmentLifecycle(t *testing.T) {
	store := newFakeStore()
	m := newTestModel(t, store)

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU})
	assert.Equal(t, ModeNormal, m.(Model).mode)
	assert.Contains(t, m.View(), "Open a note first")

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Pics"), tea.KeyMsg{Type: tea.KeyCtrlS})
	dir := t.TempDir()
	src := filepath.Join(dir, "cat.png")
	require.NoError(t, os.WriteFile(src, []byte("meow"), 0o644))

	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU}, typeText(src), tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, store.files[1], 1)
	assert.Equal(t, model.FileAttachment{NoteID: 1, Filename: "cat.png", Size: 4}, store.files[1][0])
	assert.Contains(t, m.View(), "Attached cat.png")
	require.Len(t, m.(Model).attachments, 1)

	// Into the side panel, where the attachment is the only entry.
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc}, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, PanelSide, m.(Model).activePanel)

	m = press(m, typeText("r"), tea.KeyMsg{Type: tea.KeyCtrlU}, typeText("kitten.png"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "kitten.png", store.files[1][0].Filename)
	assert.Contains(t, m.View(), "kitten.png")

	dst := filepath.Join(dir, "saved.png")
	m = press(m, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyCtrlU}, typeText(dst), tea.KeyMsg{Type: tea.KeyEnter})
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))

	m = press(m, typeText("x"))
	assert.Contains(t, m.View(), "Delete attachment 'kitten.png'?")
	m = press(m, typeText("n"))
	assert.Len(t, store.files[1], 1)

	m = press(m, typeText("x"), typeText("y"))
	assert.Empty(t, store.files[1])
	assert.Empty(t, m.(Model).attachments)

	for _, name := range []string{"a.txt", "b.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
		m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU}, typeText(path), tea.KeyMsg{Type: tea.KeyEnter})
	}
	require.Len(t, m.(Model).attachments, 2)

	m = press(m, typeText("X"))
	assert.Contains(t, m.View(), "Delete all 2 attachments of 'Pics'?")
	m = press(m, typeText("y"))
	assert.Empty(t, store.files[1])
	assert.Empty(t, m.(Model).attachments)
}

func TestFailedUploadShowsError(t *testing.T) {
	m := newTestModel(t, newFakeStore())
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlN}, typeText("Pics"), tea.KeyMsg{Type: tea.KeyCtrlS})

	missing := filepath.Join(t.TempDir(), "missing.png")
	m = press(m, tea.KeyMsg{Type: tea.KeyCtrlU}, typeText(missing), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.View(), "File operation failed")
	assert.True(t, m.(Model).noticeErr)
}

func TestRemoteChangesReachTheView(t *testing.T) {
	m := newTestModel(t, newFakeStore())

	m = drive(m.Update(api.Change{Kind: api.ChangeSnapshot, Notes: []model.Note{
		{ID: model.ID(7), Title: "Pushed", CollectionTitle: testCollection.Title},
	}}))
	m = drive(m.Update(api.Change{Kind: api.ChangeConnection, State: channel.Open}))

	view := m.View()
	assert.Contains(t, view, "Pushed")
	assert.Contains(t, view, "online")
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"work", "home", "x"}, ParseTags("#work, home;x"))
	assert.Empty(t, ParseTags(" , "))
}

func TestFormatChange(t *testing.T) {
	color.NoColor = true
	tr := i18n.New("en")
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	line := FormatChange(api.Change{Kind: api.ChangeUpdated, Note: model.Note{ID: model.ID(3), Title: "Meeting", Tags: []string{"work"}}}, tr, at)
	assert.Equal(t, "15:04:05 updated #3 Meeting #work", line)

	assert.Equal(t, "15:04:05 deleted #3", FormatChange(api.Change{Kind: api.ChangeDeleted, ID: 3}, tr, at))
	assert.Equal(t, "15:04:05 2 notes", FormatChange(api.Change{Kind: api.ChangeSnapshot, Notes: make([]model.Note, 2)}, tr, at))
	assert.Equal(t, "15:04:05 online", FormatChange(api.Change{Kind: api.ChangeConnection, State: channel.Open}, tr, at))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "999B", formatBytes(999))
	assert.Equal(t, "1.5KB", formatBytes(1500))
	assert.Equal(t, "2.0MB", formatBytes(2_000_000))
}
