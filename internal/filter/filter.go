// Package filter derives the visible note list and tag vocabulary from the
// full note set.
package filter

import (
	"sort"
	"strings"

	"github.com/nzaccagnino/notesync/internal/model"
)

// Visible returns the notes whose title, or content when contentSearch is
// set, contains text case-insensitively. A blank filter keeps everything.
func Visible(all []model.Note, text string, contentSearch bool) []model.Note {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return append([]model.Note(nil), all...)
	}

	var out []model.Note
	for _, n := range all {
		haystack := n.Title
		if contentSearch {
			haystack = n.Content
		}
		if strings.Contains(strings.ToLower(haystack), needle) {
			out = append(out, n)
		}
	}
	return out
}

// TagVocabulary is the distinct union of tags over visible, sorted
// case-insensitively.
func TagVocabulary(visible []model.Note) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, n := range visible {
		for _, tag := range n.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
	return tags
}

// ByTag keeps the notes carrying at least one of selected. An empty
// selection keeps everything.
func ByTag(visible []model.Note, selected []string) []model.Note {
	if len(selected) == 0 {
		return append([]model.Note(nil), visible...)
	}

	want := make(map[string]bool, len(selected))
	for _, tag := range selected {
		want[tag] = true
	}

	var out []model.Note
	for _, n := range visible {
		for _, tag := range n.Tags {
			if want[tag] {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func InCollection(all []model.Note, collectionTitle string) []model.Note {
	var out []model.Note
	for _, n := range all {
		if n.CollectionTitle == collectionTitle {
			out = append(out, n)
		}
	}
	return out
}
