package i18n

import "strings"

type Language string

const (
	English Language = "en"
	Dutch   Language = "nl"
)

type Messages struct {
	// General
	Loading    string
	None       string
	Unsaved    string
	Notes      string
	NoNotes    string
	Collection string

	// Modes
	ModeIdle    string
	ModeNew     string
	ModeEdit    string
	ModeTags    string
	ModeFilter  string
	ModeConfirm string
	ModeAttach  string
	ModeSaveAs  string
	ModeRename  string

	// Panels
	Tags        string
	Links       string
	Attachments string
	Preview     string

	// Placeholders
	TitlePlaceholder   string
	ContentPlaceholder string
	FilterPlaceholder  string
	TagsPlaceholder    string
	AttachPlaceholder  string
	SaveAsPlaceholder  string
	RenamePlaceholder  string

	// Prompts
	DeleteConfirm     string
	DeleteFileConfirm string
	DeleteAllConfirm  string
	ContentSearchOn   string
	ContentSearchOff  string

	// Status
	Saved          string
	Deleted        string
	Refreshing     string
	UnsavedChanges string
	BlankTitle     string
	DuplicateTitle string
	SaveFailed     string
	DeleteFailed   string
	RefreshFailed  string
	SwitchedTo     string

	Saving          string
	UpdatedRemotely string
	DeletedRemotely string
	NoTagMatches    string

	// Links and attachments
	NoteNotFound   string
	NoNoteSelected string
	Attached       string
	SavedAs        string
	Renamed        string
	FileDeleted    string
	FilesDeleted   string
	FileFailed     string

	// Connection
	Online     string
	Offline    string
	Connecting string

	// Keys descriptions (short)
	KeyNew           string
	KeySave          string
	KeyDelete        string
	KeyFilter        string
	KeyContentSearch string
	KeyTags          string
	KeyRefresh       string
	KeyTab           string
	KeyOpen          string
	KeyEscape        string
	KeyQuit          string
	KeyAttach        string
	KeyRename        string
	KeyDeleteFile    string
	KeyDeleteAll     string

	// Watch output
	WatchUpdated  string
	WatchDeleted  string
	WatchSnapshot string
	WatchFailed   string
}

var translations = map[Language]Messages{
	English: {
		Loading:    "Loading...",
		None:       "none",
		Unsaved:    "Unsaved",
		Notes:      "Notes",
		NoNotes:    "No notes",
		Collection: "Collection",

		ModeIdle:    "VIEW",
		ModeNew:     "NEW",
		ModeEdit:    "EDIT",
		ModeTags:    "TAGS",
		ModeFilter:  "FILTER",
		ModeConfirm: "CONFIRM",
		ModeAttach:  "ATTACH",
		ModeSaveAs:  "SAVE AS",
		ModeRename:  "RENAME",

		Tags:        "Tags",
		Links:       "Links",
		Attachments: "Attachments",
		Preview:     "Preview",

		TitlePlaceholder:   "Note title...",
		ContentPlaceholder: "Write here...",
		FilterPlaceholder:  "Filter notes...",
		TagsPlaceholder:    "tag1, tag2",
		AttachPlaceholder:  "Path of the file to attach...",
		SaveAsPlaceholder:  "Save to...",
		RenamePlaceholder:  "New file name...",

		DeleteConfirm:     "Delete '%s'? (y/n)",
		DeleteFileConfirm: "Delete attachment '%s'? (y/n)",
		DeleteAllConfirm:  "Delete all %d attachments of '%s'? (y/n)",
		ContentSearchOn:   "Searching titles and content",
		ContentSearchOff:  "Searching titles only",

		Saved:          "Saved",
		Deleted:        "Deleted",
		Refreshing:     "Refreshing...",
		UnsavedChanges: "Unsaved changes: save first or press enter again to discard",
		BlankTitle:     "Title can't be empty",
		DuplicateTitle: "A note with this title already exists",
		SaveFailed:     "Save failed: %v",
		DeleteFailed:   "Delete failed: %v",
		RefreshFailed:  "Refresh failed: %v",
		SwitchedTo:     "Switched to %s",

		Saving:          "Saving...",
		UpdatedRemotely: "Updated by another client",
		DeletedRemotely: "Deleted by another client; saving recreates it",
		NoTagMatches:    "No notes with these tags",

		NoteNotFound:   "Note not found: %s",
		NoNoteSelected: "Open a note first",
		Attached:       "Attached %s",
		SavedAs:        "Saved %s to %s",
		Renamed:        "Renamed to %s",
		FileDeleted:    "Deleted %s",
		FilesDeleted:   "Deleted all attachments",
		FileFailed:     "File operation failed: %v",

		Online:     "online",
		Offline:    "offline",
		Connecting: "connecting",

		KeyNew:           "new",
		KeySave:          "save",
		KeyDelete:        "delete",
		KeyFilter:        "filter",
		KeyContentSearch: "content search",
		KeyTags:          "tags",
		KeyRefresh:       "refresh",
		KeyTab:           "switch panel",
		KeyOpen:          "open",
		KeyEscape:        "back",
		KeyQuit:          "quit",
		KeyAttach:        "attach file",
		KeyRename:        "rename file",
		KeyDeleteFile:    "delete file",
		KeyDeleteAll:     "delete all files",

		WatchUpdated:  "updated",
		WatchDeleted:  "deleted",
		WatchSnapshot: "%d notes",
		WatchFailed:   "error",
	},
	Dutch: {
		Loading:    "Laden...",
		None:       "geen",
		Unsaved:    "Niet opgeslagen",
		Notes:      "Notities",
		NoNotes:    "Geen notities",
		Collection: "Collectie",

		ModeIdle:    "BEKIJKEN",
		ModeNew:     "NIEUW",
		ModeEdit:    "BEWERKEN",
		ModeTags:    "TAGS",
		ModeFilter:  "FILTER",
		ModeConfirm: "BEVESTIGEN",
		ModeAttach:  "TOEVOEGEN",
		ModeSaveAs:  "OPSLAAN ALS",
		ModeRename:  "HERNOEMEN",

		Tags:        "Tags",
		Links:       "Links",
		Attachments: "Bijlagen",
		Preview:     "Voorbeeld",

		TitlePlaceholder:   "Titel van de notitie...",
		ContentPlaceholder: "Schrijf hier...",
		FilterPlaceholder:  "Notities filteren...",
		TagsPlaceholder:    "tag1, tag2",
		AttachPlaceholder:  "Pad van het bestand...",
		SaveAsPlaceholder:  "Opslaan in...",
		RenamePlaceholder:  "Nieuwe bestandsnaam...",

		DeleteConfirm:     "'%s' verwijderen? (j/n)",
		DeleteFileConfirm: "Bijlage '%s' verwijderen? (j/n)",
		DeleteAllConfirm:  "Alle %d bijlagen van '%s' verwijderen? (j/n)",
		ContentSearchOn:   "Zoeken in titels en inhoud",
		ContentSearchOff:  "Alleen zoeken in titels",

		Saved:          "Opgeslagen",
		Deleted:        "Verwijderd",
		Refreshing:     "Vernieuwen...",
		UnsavedChanges: "Niet opgeslagen wijzigingen: sla eerst op of druk nogmaals op enter om te verwerpen",
		BlankTitle:     "Titel mag niet leeg zijn",
		DuplicateTitle: "Er bestaat al een notitie met deze titel",
		SaveFailed:     "Opslaan mislukt: %v",
		DeleteFailed:   "Verwijderen mislukt: %v",
		RefreshFailed:  "Vernieuwen mislukt: %v",
		SwitchedTo:     "Overgeschakeld naar %s",

		Saving:          "Opslaan...",
		UpdatedRemotely: "Bijgewerkt door een andere client",
		DeletedRemotely: "Verwijderd door een andere client; opslaan maakt hem opnieuw aan",
		NoTagMatches:    "Geen notities met deze tags",

		NoteNotFound:   "Notitie niet gevonden: %s",
		NoNoteSelected: "Open eerst een notitie",
		Attached:       "%s toegevoegd",
		SavedAs:        "%s opgeslagen in %s",
		Renamed:        "Hernoemd naar %s",
		FileDeleted:    "%s verwijderd",
		FilesDeleted:   "Alle bijlagen verwijderd",
		FileFailed:     "Bestandsbewerking mislukt: %v",

		Online:     "online",
		Offline:    "offline",
		Connecting: "verbinden",

		KeyNew:           "nieuw",
		KeySave:          "opslaan",
		KeyDelete:        "verwijderen",
		KeyFilter:        "filter",
		KeyContentSearch: "inhoud zoeken",
		KeyTags:          "tags",
		KeyRefresh:       "vernieuwen",
		KeyTab:           "wissel paneel",
		KeyOpen:          "openen",
		KeyEscape:        "terug",
		KeyQuit:          "afsluiten",
		KeyAttach:        "bestand toevoegen",
		KeyRename:        "bestand hernoemen",
		KeyDeleteFile:    "bestand verwijderen",
		KeyDeleteAll:     "alle bestanden verwijderen",

		WatchUpdated:  "bijgewerkt",
		WatchDeleted:  "verwijderd",
		WatchSnapshot: "%d notities",
		WatchFailed:   "fout",
	},
}

// Translator holds the messages for one language. The zero value is not
// usable; construct it with New.
type Translator struct {
	lang Language
	msgs Messages
}

// New returns a Translator for lang, falling back to English for unknown
// or empty values.
func New(lang string) Translator {
	l := Language(strings.ToLower(strings.TrimSpace(lang)))
	msgs, ok := translations[l]
	if !ok {
		l = English
		msgs = translations[English]
	}
	return Translator{lang: l, msgs: msgs}
}

func (t Translator) Language() Language {
	return t.lang
}

func (t Translator) T() Messages {
	return t.msgs
}

// Confirms reports whether r answers yes to a confirmation prompt.
func (t Translator) Confirms(r string) bool {
	switch strings.ToLower(r) {
	case "y":
		return true
	case "j":
		return t.lang == Dutch
	}
	return false
}

func Supported() []Language {
	return []Language{English, Dutch}
}
