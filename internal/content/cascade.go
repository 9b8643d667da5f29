package content

import (
	"regexp"

	"github.com/nzaccagnino/notesync/internal/model"
)

// RenameReferences rewrites every [[oldTitle]] in content to [[newTitle]],
// matching the old title case-insensitively. It reports whether anything
// changed.
func RenameReferences(content, oldTitle, newTitle string) (string, bool) {
	re, err := regexp.Compile(`(?i)\[\[\s*` + regexp.QuoteMeta(oldTitle) + `\s*]]`)
	if err != nil {
		return content, false
	}
	out := re.ReplaceAllLiteralString(content, "[["+newTitle+"]]")
	return out, out != content
}

// Cascade returns the notes of renamed's collection, other than renamed
// itself, whose references to oldTitle were rewritten. Each returned note
// has its derived fields recomputed.
func (p *Pipeline) Cascade(notes []model.Note, renamed model.Note, oldTitle string) []model.Note {
	if model.TitleKey(oldTitle) == "" || oldTitle == renamed.Title {
		return nil
	}

	known := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.SameID(renamed) {
			continue
		}
		known = append(known, n)
	}
	known = append(known, renamed)

	var changed []model.Note
	for _, n := range notes {
		if n.SameID(renamed) || n.CollectionTitle != renamed.CollectionTitle {
			continue
		}
		rewritten, ok := RenameReferences(n.Content, oldTitle, renamed.Title)
		if !ok {
			continue
		}
		n.Content = rewritten
		changed = append(changed, n)
	}

	// Derive against the final state so notes that reference each other agree.
	for i := range changed {
		for j := range known {
			if known[j].SameID(changed[i]) {
				known[j] = changed[i]
			}
		}
	}
	for i := range changed {
		changed[i] = p.Apply(changed[i], known)
	}
	return changed
}
