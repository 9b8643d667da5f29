package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/nzaccagnino/notesync/internal/engine"
	"github.com/nzaccagnino/notesync/internal/i18n"
	"github.com/nzaccagnino/notesync/internal/model"
)

// formatBytes converts bytes to human-readable format (B, KB, MB, GB)
func formatBytes(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(b)/float64(div), "KMGTPE"[exp])
}

type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeTags
	ModeConfirmDelete
	ModeAttach
	ModeSaveAs
	ModeRename
	ModeConfirmFile
)

type Panel int

const (
	PanelList Panel = iota
	PanelTitle
	PanelContent
	PanelSide

	panelCount
)

// FileStore manages the attachments shown in the side panel.
type FileStore interface {
	Files(ctx context.Context, noteID int64) ([]model.FileAttachment, error)
	UploadFile(ctx context.Context, noteID int64, filename string, r io.Reader) (model.FileAttachment, error)
	DownloadFile(ctx context.Context, noteID int64, filename string) ([]byte, error)
	RenameFile(ctx context.Context, noteID int64, filename, newName string) error
	DeleteFile(ctx context.Context, noteID int64, filename string) error
	DeleteAllFiles(ctx context.Context, noteID int64) error
}

type Options struct {
	Engine     *engine.Engine
	Files      FileStore
	Translator i18n.Translator
}

type Model struct {
	ctx    context.Context
	engine *engine.Engine
	files  FileStore
	tr     i18n.Translator
	keys   KeyMap
	help   help.Model

	title   textinput.Model
	content textarea.Model
	prompt  textinput.Model

	renderer      *glamour.TermRenderer
	rendererWidth int

	snap           engine.Snapshot
	attachments    []model.FileAttachment
	attachmentsFor int64

	mode          Mode
	activePanel   Panel
	cursor        int
	listOffset    int
	pendingSelect *int64
	deleteTarget  model.Note

	// Side panel: links first, then attachments.
	sideCursor int
	fileTarget string
	notice     string
	noticeErr  bool

	width  int
	height int
}

type attachmentsMsg struct {
	noteID int64
	files  []model.FileAttachment
}

func NewModel(ctx context.Context, opts Options) Model {
	t := opts.Translator.T()

	ti := textinput.New()
	ti.Placeholder = t.TitlePlaceholder
	ti.CharLimit = 256

	ta := textarea.New()
	ta.Placeholder = t.ContentPlaceholder
	ta.ShowLineNumbers = false

	pi := textinput.New()
	pi.CharLimit = 256

	m := Model{
		ctx:         ctx,
		engine:      opts.Engine,
		files:       opts.Files,
		tr:          opts.Translator,
		keys:        NewKeyMap(opts.Translator),
		help:        help.New(),
		title:       ti,
		content:     ta,
		prompt:      pi,
		activePanel: PanelList,
	}
	m.snap = m.engine.View()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.engine.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.title.Width = m.contentWidth() - 6
		m.content.SetWidth(m.contentWidth() - 4)
		m.content.SetHeight(m.contentHeight() - 3)
		m.help.Width = m.width
		m.resizeRenderer()
		return m, nil

	case attachmentsMsg:
		if msg.noteID == m.attachmentsFor {
			m.attachments = msg.files
			m.clampSide()
		}
		return m, nil

	case fileOpMsg:
		m.setNotice(msg.notice, msg.err)
		if msg.noteID == m.attachmentsFor {
			return m, m.loadAttachments()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engine.CollectionMsg:
		m.cursor, m.listOffset = 0, 0
		m.pendingSelect = nil
		m.focus(PanelList)
		return m.send(msg)
	}

	// Cursor blinks for whichever input has focus.
	var inputCmd tea.Cmd
	switch {
	case m.mode != ModeNormal:
		m.prompt, inputCmd = m.prompt.Update(msg)
	case m.activePanel == PanelTitle:
		m.title, inputCmd = m.title.Update(msg)
	case m.activePanel == PanelContent:
		m.content, inputCmd = m.content.Update(msg)
	}

	// Store changes and the engine's own results.
	next, cmd := m.send(msg)
	return next, tea.Batch(inputCmd, cmd)
}

// send feeds msg to the engine and brings the inputs back in line with
// its buffer.
func (m Model) send(msg tea.Msg) (Model, tea.Cmd) {
	cmd := m.engine.Update(msg)
	loadCmd := m.refresh()
	return m, tea.Batch(cmd, loadCmd)
}

func (m *Model) refresh() tea.Cmd {
	prevSelected := m.snap.State.SelectedID
	m.snap = m.engine.View()

	if m.title.Value() != m.snap.Buffer.Title {
		m.title.SetValue(m.snap.Buffer.Title)
	}
	if m.content.Value() != m.snap.Buffer.Content {
		m.content.SetValue(m.snap.Buffer.Content)
	}

	if m.cursor >= len(m.snap.Notes) {
		m.cursor = max(len(m.snap.Notes)-1, 0)
	}
	m.clampOffset()

	if !sameID(prevSelected, m.snap.State.SelectedID) {
		m.sideCursor = 0
		return m.loadAttachments()
	}
	m.clampSide()
	return nil
}

func (m *Model) loadAttachments() tea.Cmd {
	m.attachments = nil
	id := m.snap.State.SelectedID
	if id == nil || m.files == nil {
		m.attachmentsFor = 0
		return nil
	}
	noteID := *id
	m.attachmentsFor = noteID
	ctx, files := m.ctx, m.files
	return func() tea.Msg {
		list, err := files.Files(ctx, noteID)
		if err != nil {
			return nil
		}
		return attachmentsMsg{noteID: noteID, files: list}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilter:
		return m.handleFilterKeys(msg)
	case ModeTags:
		return m.handleTagKeys(msg)
	case ModeConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	case ModeAttach, ModeSaveAs, ModeRename:
		return m.handleFilePromptKeys(msg)
	case ModeConfirmFile:
		return m.handleConfirmFileKeys(msg)
	}

	m.notice = ""
	t := m.tr.T()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Save):
		return m.send(engine.CommitMsg{})

	case key.Matches(msg, m.keys.New):
		m.focus(PanelTitle)
		return m.send(engine.NewNoteMsg{})

	case key.Matches(msg, m.keys.Delete):
		if note, ok := m.deletable(); ok {
			m.deleteTarget = note
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.openPrompt(ModeFilter, t.FilterPlaceholder, m.snap.Filter)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.ContentSearch):
		return m.send(engine.FilterMsg{Text: m.snap.Filter, ContentSearch: !m.snap.ContentSearch})

	case key.Matches(msg, m.keys.Tags):
		m.openPrompt(ModeTags, t.TagsPlaceholder, strings.Join(m.snap.SelectedTags, ", "))
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m.send(engine.RefreshMsg{})

	case key.Matches(msg, m.keys.Attach):
		if _, ok := m.fileNote(); !ok {
			m.setNotice(t.NoNoteSelected, nil)
			return m, nil
		}
		m.openPrompt(ModeAttach, t.AttachPlaceholder, "")
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Tab):
		m.focus((m.activePanel + 1) % panelCount)
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.focus(PanelList)
		return m, nil
	}

	switch m.activePanel {
	case PanelList:
		return m.handleListKeys(msg)
	case PanelSide:
		return m.handleSideKeys(msg)
	}
	return m.handleEditorKeys(msg)
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Notes)-1 {
			m.cursor++
			m.clampOffset()
		}
	case key.Matches(msg, m.keys.Enter):
		note, ok := m.currentListNote()
		if !ok {
			return m, nil
		}
		return m.open(note.IDValue())
	}
	return m, nil
}

// open selects id. With unsaved input the first attempt only warns; a
// second attempt on the same note discards the input.
func (m Model) open(id int64) (Model, tea.Cmd) {
	force := m.pendingSelect != nil && *m.pendingSelect == id
	m.pendingSelect = nil

	next, cmd := m.send(engine.SelectMsg{ID: id, Force: force})
	if next.snap.Status == engine.StatusUnsaved {
		next.pendingSelect = model.ID(id)
		return next, cmd
	}
	for i, n := range next.snap.Notes {
		if n.IDValue() == id {
			next.cursor = i
			next.clampOffset()
			break
		}
	}
	return next, cmd
}

func (m Model) handleEditorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activePanel {
	case PanelTitle:
		if key.Matches(msg, m.keys.Enter) {
			m.focus(PanelContent)
			return m, nil
		}
		m.title, cmd = m.title.Update(msg)
	case PanelContent:
		m.content, cmd = m.content.Update(msg)
	}

	if m.title.Value() == m.snap.Buffer.Title && m.content.Value() == m.snap.Buffer.Content {
		return m, cmd
	}
	next, engineCmd := m.send(engine.EditMsg{Title: m.title.Value(), Content: m.content.Value()})
	return next, tea.Batch(cmd, engineCmd)
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.closePrompt()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.closePrompt()
		return m.send(engine.FilterMsg{ContentSearch: m.snap.ContentSearch})
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	if m.prompt.Value() == m.snap.Filter {
		return m, cmd
	}
	next, engineCmd := m.send(engine.FilterMsg{Text: m.prompt.Value(), ContentSearch: m.snap.ContentSearch})
	next.cursor, next.listOffset = 0, 0
	return next, tea.Batch(cmd, engineCmd)
}

func (m Model) handleTagKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		tags := ParseTags(m.prompt.Value())
		m.closePrompt()
		m.cursor, m.listOffset = 0, 0
		return m.send(engine.TagsMsg{Tags: tags})
	case key.Matches(msg, m.keys.Escape):
		m.closePrompt()
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	target := m.deleteTarget
	m.deleteTarget = model.Note{}
	if !m.tr.Confirms(msg.String()) || target.ID == nil {
		return m, nil
	}
	return m.send(engine.DeleteMsg{ID: *target.ID})
}

// deletable is the note ctrl+d acts on: the highlighted list entry, or
// the open note when the editor has focus.
func (m Model) deletable() (model.Note, bool) {
	if m.activePanel != PanelList {
		if id := m.snap.State.SelectedID; id != nil {
			return m.engine.Note(*id)
		}
		return model.Note{}, false
	}
	return m.currentListNote()
}

func (m Model) currentListNote() (model.Note, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Notes) {
		return model.Note{}, false
	}
	return m.snap.Notes[m.cursor], true
}

func (m *Model) focus(p Panel) {
	m.activePanel = p
	m.title.Blur()
	m.content.Blur()
	switch p {
	case PanelTitle:
		m.title.Focus()
	case PanelContent:
		m.content.Focus()
	}
}

func (m Model) editorFocused() bool {
	return m.activePanel == PanelTitle || m.activePanel == PanelContent
}

func (m *Model) setNotice(text string, err error) {
	m.notice = text
	m.noticeErr = err != nil
}

func (m *Model) openPrompt(mode Mode, placeholder, value string) {
	m.mode = mode
	m.prompt.Placeholder = placeholder
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	m.title.Blur()
	m.content.Blur()
	m.prompt.Focus()
}

func (m *Model) closePrompt() {
	m.mode = ModeNormal
	m.prompt.Blur()
	m.focus(m.activePanel)
}

func (m *Model) clampOffset() {
	h := m.listHeight()
	if h <= 0 {
		return
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+h {
		m.listOffset = m.cursor - h + 1
	}
}

func (m *Model) resizeRenderer() {
	width := m.contentWidth() - 4
	if width <= 0 || width == m.rendererWidth {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
	m.rendererWidth = width
}

// ParseTags splits a comma or space separated tag list.
func ParseTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimPrefix(strings.TrimSpace(f), "#"); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
