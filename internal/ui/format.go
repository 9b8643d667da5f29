package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/nzaccagnino/notesync/internal/api"
	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/i18n"
)

var (
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// FormatChange renders one store event as a line for the headless watch
// command. Snapshots from a quiet poll are reported only by count.
func FormatChange(c api.Change, tr i18n.Translator, at time.Time) string {
	t := tr.T()
	stamp := faint(at.Format("15:04:05"))

	switch c.Kind {
	case api.ChangeUpdated:
		line := fmt.Sprintf("%s %s #%d %s", stamp, green(t.WatchUpdated), c.Note.IDValue(), bold(c.Note.Title))
		if len(c.Note.Tags) > 0 {
			line += " " + cyan("#"+strings.Join(c.Note.Tags, " #"))
		}
		return line
	case api.ChangeDeleted:
		return fmt.Sprintf("%s %s #%d", stamp, red(t.WatchDeleted), c.ID)
	case api.ChangeSnapshot:
		return fmt.Sprintf("%s %s", stamp, faint(fmt.Sprintf(t.WatchSnapshot, len(c.Notes))))
	case api.ChangeFailed:
		return fmt.Sprintf("%s %s %v", stamp, red(t.WatchFailed), c.Err)
	case api.ChangeConnection:
		label := t.Offline
		switch c.State {
		case channel.Open:
			return fmt.Sprintf("%s %s", stamp, green(t.Online))
		case channel.Connecting:
			label = t.Connecting
		}
		if c.Err != nil {
			return fmt.Sprintf("%s %s %s", stamp, yellow(label), faint(c.Err.Error()))
		}
		return fmt.Sprintf("%s %s", stamp, yellow(label))
	}
	return ""
}
