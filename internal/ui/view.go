package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/engine"
)

func (m Model) listWidth() int {
	return int(float64(m.width) * 0.25)
}

func (m Model) contentWidth() int {
	return int(float64(m.width) * 0.50)
}

func (m Model) metadataWidth() int {
	return m.width - m.listWidth() - m.contentWidth()
}

func (m Model) contentHeight() int {
	return m.height - 6
}

func (m Model) listHeight() int {
	return m.contentHeight() - 2
}

func (m Model) View() string {
	t := m.tr.T()

	if m.width == 0 {
		return t.Loading
	}

	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderList(), m.renderContent(), m.renderMetadata())

	footer := m.renderStatus()
	if m.mode != ModeNormal {
		footer = m.renderPrompt()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, m.help.View(m.keys))
}

func (m Model) renderHeader() string {
	t := m.tr.T()

	name := m.snap.Collection.Name
	if name == "" {
		name = m.snap.Collection.Title
	}
	left := TitleStyle.Render(t.Collection+": "+name) + MutedStyle.Render("  "+m.snap.Collection.Server)

	var conn string
	switch m.snap.Connection {
	case channel.Open:
		conn = OnlineStyle.Render("● " + t.Online)
	case channel.Connecting:
		conn = WarningStyle.Render("◌ " + t.Connecting)
	default:
		conn = ErrorStyle.Render("○ " + t.Offline)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(conn) - 8
	if padding < 1 {
		padding = 1
	}
	return HeaderStyle.Width(m.width - 2).Render(left + strings.Repeat(" ", padding) + conn)
}

func (m Model) renderList() string {
	t := m.tr.T()

	style := PanelStyle
	if m.activePanel == PanelList {
		style = ActivePanelStyle
	}

	var items []string
	listHeight := m.listHeight()
	maxLen := m.listWidth() - 8

	if len(m.snap.Notes) == 0 {
		items = append(items, MutedStyle.Render(t.NoNotes))
	}
	for i := m.listOffset; i < len(m.snap.Notes) && i < m.listOffset+listHeight; i++ {
		note := m.snap.Notes[i]
		marker := " "
		if m.snap.State.Selected(note.IDValue()) {
			marker = "●"
		}
		line := fmt.Sprintf("%s %-*s", marker, maxLen, truncate(note.Title, maxLen))
		if i == m.cursor {
			line = SelectedListItemStyle.Render(line)
		}
		items = append(items, line)
	}

	title := LabelStyle.Render(fmt.Sprintf("%s (%d)", t.Notes, len(m.snap.Notes)))
	content := title + "\n" + strings.Join(items, "\n")
	return style.Width(m.listWidth() - 2).Height(m.contentHeight()).Render(content)
}

func (m Model) renderContent() string {
	t := m.tr.T()

	style := PanelStyle
	if m.editorFocused() {
		style = ActivePanelStyle
	}

	var content string
	if m.editorFocused() || m.snap.State.Kind == engine.Editing {
		content = m.title.View() + "\n\n" + m.content.View()
	} else if m.snap.State.SelectedID != nil {
		content = TitleStyle.Render(m.snap.Buffer.Title) + "\n" + m.preview()
	} else {
		content = MutedStyle.Render(t.Preview)
	}

	return style.Width(m.contentWidth() - 2).Height(m.contentHeight()).Render(content)
}

// preview renders the buffer as terminal markdown, falling back to the
// raw text when glamour is unavailable.
func (m Model) preview() string {
	if m.renderer == nil {
		return m.snap.Buffer.Content
	}
	out, err := m.renderer.Render(m.snap.Buffer.Content)
	if err != nil {
		return m.snap.Buffer.Content
	}
	return strings.TrimSpace(out)
}

func (m Model) renderMetadata() string {
	t := m.tr.T()

	var lines []string

	lines = append(lines, LabelStyle.Render(t.Tags))
	if len(m.snap.Tags) == 0 {
		lines = append(lines, MutedStyle.Render("  "+t.None))
	}
	selected := make(map[string]bool, len(m.snap.SelectedTags))
	for _, tag := range m.snap.SelectedTags {
		selected[strings.ToLower(tag)] = true
	}
	for _, tag := range m.snap.Tags {
		if selected[strings.ToLower(tag)] {
			lines = append(lines, "  "+SelectedTagStyle.Render("#"+tag))
		} else {
			lines = append(lines, "  "+TagStyle.Render("#"+tag))
		}
	}

	lines = append(lines, "", LabelStyle.Render(t.Links))
	if len(m.snap.Links) == 0 {
		lines = append(lines, MutedStyle.Render("  "+t.None))
	}
	for i, link := range m.snap.Links {
		text := "[[" + link.Title + "]]"
		if link.Broken {
			text = BrokenLinkStyle.Render(text)
		} else {
			text = LinkStyle.Render(text)
		}
		lines = append(lines, m.sideMarker(i)+text)
	}

	lines = append(lines, "", LabelStyle.Render(t.Attachments))
	if len(m.attachments) == 0 {
		lines = append(lines, MutedStyle.Render("  "+t.None))
	}
	for i, a := range m.attachments {
		lines = append(lines, fmt.Sprintf("%s%s %s", m.sideMarker(len(m.snap.Links)+i), a.Filename, MutedStyle.Render(formatBytes(a.Size))))
	}

	style := PanelStyle
	if m.activePanel == PanelSide {
		style = ActivePanelStyle
	}
	content := strings.Join(lines, "\n")
	return style.Width(m.metadataWidth() - 2).Height(m.contentHeight()).Render(content)
}

func (m Model) sideMarker(i int) string {
	if m.activePanel == PanelSide && i == m.sideCursor {
		return SelectedListItemStyle.Render(">") + " "
	}
	return "  "
}

func (m Model) renderStatus() string {
	t := m.tr.T()

	modeStr := t.ModeIdle
	switch {
	case m.snap.State.Creating():
		modeStr = t.ModeNew
	case m.snap.State.Kind == engine.Editing:
		modeStr = t.ModeEdit
	case m.snap.State.Kind == engine.TagFiltered:
		modeStr = t.ModeTags
	}

	left := fmt.Sprintf(" %s | %d %s", KeyStyle.Render(modeStr), len(m.snap.Notes), t.Notes)
	if m.snap.ContentSearch {
		left += " | " + MutedStyle.Render(t.ContentSearchOn)
	}
	if m.snap.Filter != "" {
		left += " | " + MutedStyle.Render("/"+m.snap.Filter)
	}

	var right string
	if m.snap.Err != nil {
		right = ErrorStyle.Render(m.errorText(m.snap.Err))
	} else if m.notice != "" && m.noticeErr {
		right = ErrorStyle.Render(m.notice)
	} else if m.notice != "" {
		right = WarningStyle.Render(m.notice)
	} else if msg := m.statusText(m.snap.Status); msg != "" {
		right = WarningStyle.Render(msg)
	}
	if m.snap.Dirty {
		right = "* " + t.Unsaved + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}

	return StatusBarStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func (m Model) renderPrompt() string {
	t := m.tr.T()

	switch m.mode {
	case ModeConfirmDelete:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeConfirm) + " " + fmt.Sprintf(t.DeleteConfirm, m.deleteTarget.Title))
	case ModeConfirmFile:
		text := fmt.Sprintf(t.DeleteFileConfirm, m.fileTarget)
		if m.fileTarget == "" {
			text = fmt.Sprintf(t.DeleteAllConfirm, len(m.attachments), m.snap.Buffer.Title)
		}
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeConfirm) + " " + text)
	case ModeTags:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeTags) + " " + m.prompt.View())
	case ModeAttach:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeAttach) + " " + m.prompt.View())
	case ModeSaveAs:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeSaveAs) + " " + m.prompt.View())
	case ModeRename:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeRename) + " " + m.prompt.View())
	default:
		return StatusBarStyle.Render(KeyStyle.Render(t.ModeFilter) + " " + m.prompt.View())
	}
}

func (m Model) errorText(err error) string {
	t := m.tr.T()
	switch {
	case errors.Is(err, engine.ErrBlankTitle):
		return t.BlankTitle
	case errors.Is(err, engine.ErrDuplicateTitle):
		return t.DuplicateTitle
	}
	return err.Error()
}

func (m Model) statusText(s engine.Status) string {
	t := m.tr.T()
	switch s {
	case engine.StatusSaving:
		return t.Saving
	case engine.StatusSaved:
		return t.Saved
	case engine.StatusDeleted:
		return t.Deleted
	case engine.StatusUnsaved:
		return t.UnsavedChanges
	case engine.StatusUpdatedRemotely:
		return t.UpdatedRemotely
	case engine.StatusDeletedRemotely:
		return t.DeletedRemotely
	case engine.StatusNoTagMatches:
		return t.NoTagMatches
	}
	return ""
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
