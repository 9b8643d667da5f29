package engine

import (
	"context"
	"errors"

	"github.com/nzaccagnino/notesync/internal/channel"
	"github.com/nzaccagnino/notesync/internal/content"
	"github.com/nzaccagnino/notesync/internal/model"
)

var (
	ErrBlankTitle     = errors.New("title must not be blank")
	ErrDuplicateTitle = errors.New("a note with this title already exists in the collection")
)

type Kind int

const (
	Idle Kind = iota
	Editing
	TagFiltered
)

func (k Kind) String() string {
	switch k {
	case Editing:
		return "editing"
	case TagFiltered:
		return "tag-filtered"
	default:
		return "idle"
	}
}

// State is the session state. SelectedID is the note open in the buffer;
// nil while Editing means the buffer will be created as a new note.
type State struct {
	Kind       Kind
	SelectedID *int64
}

func (s State) Selected(id int64) bool {
	return s.SelectedID != nil && *s.SelectedID == id
}

func (s State) Creating() bool {
	return s.Kind == Editing && s.SelectedID == nil
}

// Status is a short note about the last thing that happened, for display.
type Status string

const (
	StatusNone            Status = ""
	StatusSaving          Status = "saving"
	StatusSaved           Status = "saved"
	StatusDeleted         Status = "deleted"
	StatusUnsaved         Status = "unsaved changes"
	StatusUpdatedRemotely Status = "updated remotely"
	StatusDeletedRemotely Status = "deleted remotely"
	StatusNoTagMatches    Status = "no notes with these tags"
)

type Buffer struct {
	Title   string
	Content string
}

// NoteStore is what the engine needs from the note store. Changes flow
// back in as api.Change messages.
type NoteStore interface {
	Create(ctx context.Context, note model.Note) (model.Note, error)
	Save(ctx context.Context, note model.Note) (model.Note, error)
	Delete(ctx context.Context, note model.Note) error
	RefreshNow(ctx context.Context) error
}

// Inputs.
type (
	EditMsg struct {
		Title   string
		Content string
	}
	NewNoteMsg struct{}
	SelectMsg  struct {
		ID    int64
		Force bool
	}
	CommitMsg struct{}
	DeleteMsg struct {
		ID int64
	}
	FilterMsg struct {
		Text          string
		ContentSearch bool
	}
	TagsMsg struct {
		Tags []string
	}
	RefreshMsg    struct{}
	CollectionMsg struct {
		Collection model.Collection
		Store      NoteStore
		// Pipeline renders against the new collection's server. Nil builds
		// one from Collection.Server.
		Pipeline *content.Pipeline
	}
)

// Results of store calls.
type (
	committedMsg struct {
		note     model.Note
		oldTitle string
		created  bool
		buffer   Buffer
	}
	commitFailedMsg struct {
		err error
	}
	deletedMsg struct {
		id int64
	}
	deleteFailedMsg struct {
		err error
	}
	cascadeMsg struct {
		saved []model.Note
		errs  []error
	}
)

// Snapshot is a read-only copy of everything a view needs.
type Snapshot struct {
	Collection    model.Collection
	State         State
	Buffer        Buffer
	Dirty         bool
	Committing    bool
	Notes         []model.Note
	Tags          []string
	SelectedTags  []string
	Filter        string
	ContentSearch bool
	Preview       string
	Links         []content.Link
	Err           error
	Status        Status
	Connection    channel.State
}
