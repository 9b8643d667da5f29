package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/nzaccagnino/notesync/internal/i18n"
)

type KeyMap struct {
	Up            key.Binding
	Down          key.Binding
	Enter         key.Binding
	Escape        key.Binding
	Save          key.Binding
	New           key.Binding
	Delete        key.Binding
	Filter        key.Binding
	ContentSearch key.Binding
	Tags          key.Binding
	Refresh       key.Binding
	Tab           key.Binding
	Quit          key.Binding

	// Side panel
	Attach     key.Binding
	Rename     key.Binding
	DeleteFile key.Binding
	DeleteAll  key.Binding
}

func NewKeyMap(tr i18n.Translator) KeyMap {
	t := tr.T()
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", ""),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", ""),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", t.KeyOpen),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", t.KeyEscape),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", t.KeySave),
		),
		New: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("Ctrl+N", t.KeyNew),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("Ctrl+D", t.KeyDelete),
		),
		Filter: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("Ctrl+F", t.KeyFilter),
		),
		ContentSearch: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("Ctrl+T", t.KeyContentSearch),
		),
		Tags: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("Ctrl+G", t.KeyTags),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("Ctrl+R", t.KeyRefresh),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", t.KeyTab),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q", "ctrl+c"),
			key.WithHelp("Ctrl+Q", t.KeyQuit),
		),
		Attach: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("Ctrl+U", t.KeyAttach),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", t.KeyRename),
		),
		DeleteFile: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", t.KeyDeleteFile),
		),
		DeleteAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", t.KeyDeleteAll),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.New, k.Save, k.Delete, k.Filter, k.Tags, k.Tab, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Escape, k.Tab},
		{k.New, k.Save, k.Delete, k.Refresh},
		{k.Filter, k.ContentSearch, k.Tags, k.Quit},
		{k.Attach, k.Rename, k.DeleteFile, k.DeleteAll},
	}
}
