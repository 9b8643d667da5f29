package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/model"
)

// fileOpMsg reports a finished attachment operation.
type fileOpMsg struct {
	noteID int64
	notice string
	err    error
}

func (m Model) handleSideKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.tr.T()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sideCursor > 0 {
			m.sideCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sideCursor < m.sideLen()-1 {
			m.sideCursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if link, ok := m.sideLink(); ok {
			return m.followLink(link)
		}
		if f, ok := m.sideFile(); ok {
			m.fileTarget = f.Filename
			m.openPrompt(ModeSaveAs, t.SaveAsPlaceholder, f.Filename)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.Rename):
		if f, ok := m.sideFile(); ok {
			m.fileTarget = f.Filename
			m.openPrompt(ModeRename, t.RenamePlaceholder, f.Filename)
			return m, textinput.Blink
		}
	case key.Matches(msg, m.keys.DeleteFile):
		if f, ok := m.sideFile(); ok {
			m.fileTarget = f.Filename
			m.mode = ModeConfirmFile
		}
	case key.Matches(msg, m.keys.DeleteAll):
		if len(m.attachments) > 0 {
			m.fileTarget = ""
			m.mode = ModeConfirmFile
		}
	}
	return m, nil
}

// followLink opens the note a wiki-link points at. Titles resolve
// case-insensitively, like the links themselves.
func (m Model) followLink(link content.Link) (tea.Model, tea.Cmd) {
	note, ok := m.engine.NoteByTitle(link.Title)
	if !ok {
		m.setNotice(fmt.Sprintf(m.tr.T().NoteNotFound, link.Title), nil)
		return m, nil
	}
	return m.open(note.IDValue())
}

func (m Model) handleFilePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.fileTarget = ""
		m.closePrompt()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		mode, target := m.mode, m.fileTarget
		value := strings.TrimSpace(m.prompt.Value())
		m.fileTarget = ""
		m.closePrompt()

		noteID, ok := m.fileNote()
		if !ok || value == "" {
			return m, nil
		}
		switch mode {
		case ModeAttach:
			return m, m.attachCmd(noteID, value)
		case ModeSaveAs:
			return m, m.saveAsCmd(noteID, target, value)
		case ModeRename:
			if value == target {
				return m, nil
			}
			return m, m.renameCmd(noteID, target, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmFileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = ModeNormal
	target := m.fileTarget
	m.fileTarget = ""
	noteID, ok := m.fileNote()
	if !ok || !m.tr.Confirms(msg.String()) {
		return m, nil
	}
	if target == "" {
		return m, m.deleteAllCmd(noteID)
	}
	return m, m.deleteFileCmd(noteID, target)
}

// fileNote is the note attachment operations act on.
func (m Model) fileNote() (int64, bool) {
	id := m.snap.State.SelectedID
	if id == nil || m.files == nil {
		return 0, false
	}
	return *id, true
}

func (m Model) attachCmd(noteID int64, path string) tea.Cmd {
	ctx, files, t := m.ctx, m.files, m.tr.T()
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		defer f.Close()

		uploaded, err := files.UploadFile(ctx, noteID, filepath.Base(path), f)
		if err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.Attached, uploaded.Filename)}
	}
}

func (m Model) saveAsCmd(noteID int64, filename, path string) tea.Cmd {
	ctx, files, t := m.ctx, m.files, m.tr.T()
	return func() tea.Msg {
		data, err := files.DownloadFile(ctx, noteID, filename)
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		if err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.SavedAs, filename, path)}
	}
}

func (m Model) renameCmd(noteID int64, filename, newName string) tea.Cmd {
	ctx, files, t := m.ctx, m.files, m.tr.T()
	return func() tea.Msg {
		if err := files.RenameFile(ctx, noteID, filename, newName); err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.Renamed, newName)}
	}
}

func (m Model) deleteFileCmd(noteID int64, filename string) tea.Cmd {
	ctx, files, t := m.ctx, m.files, m.tr.T()
	return func() tea.Msg {
		if err := files.DeleteFile(ctx, noteID, filename); err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileDeleted, filename)}
	}
}

func (m Model) deleteAllCmd(noteID int64) tea.Cmd {
	ctx, files, t := m.ctx, m.files, m.tr.T()
	return func() tea.Msg {
		if err := files.DeleteAllFiles(ctx, noteID); err != nil {
			return fileOpMsg{noteID: noteID, notice: fmt.Sprintf(t.FileFailed, err), err: err}
		}
		return fileOpMsg{noteID: noteID, notice: t.FilesDeleted}
	}
}

func (m Model) sideLen() int {
	return len(m.snap.Links) + len(m.attachments)
}

func (m Model) sideLink() (content.Link, bool) {
	if m.sideCursor < 0 || m.sideCursor >= len(m.snap.Links) {
		return content.Link{}, false
	}
	return m.snap.Links[m.sideCursor], true
}

func (m Model) sideFile() (model.FileAttachment, bool) {
	i := m.sideCursor - len(m.snap.Links)
	if i < 0 || i >= len(m.attachments) {
		return model.FileAttachment{}, false
	}
	return m.attachments[i], true
}

func (m *Model) clampSide() {
	if m.sideCursor >= m.sideLen() {
		m.sideCursor = max(m.sideLen()-1, 0)
	}
}
