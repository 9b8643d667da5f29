package filter

import "github.com/nzaccagnino/notesync/internal/model"

// Index holds the active filter state of a note list.
type Index struct {
	Text          string
	ContentSearch bool
	Tags          []string
}

type View struct {
	Notes []model.Note
	// Tags is the vocabulary of the text-filtered notes, before the tag
	// facet narrows them.
	Tags []string
}

func (ix Index) TagFiltered() bool {
	return len(ix.Tags) > 0
}

func (ix Index) Apply(all []model.Note) View {
	visible := Visible(all, ix.Text, ix.ContentSearch)
	return View{
		Notes: ByTag(visible, ix.Tags),
		Tags:  TagVocabulary(visible),
	}
}
