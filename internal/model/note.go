package model

import "strings"

// Note is the unit exchanged with the note store and over the push channel.
// HTML and Tags are derived from Content and must be recomputed whenever
// Content changes.
type Note struct {
	ID              *int64   `json:"id"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	HTML            string   `json:"html,omitempty"`
	Tags            []string `json:"tags"`
	CollectionTitle string   `json:"collectionTitle"`
}

type Collection struct {
	Title  string `json:"title" yaml:"title"`
	Name   string `json:"name" yaml:"name"`
	Server string `json:"server" yaml:"server"`
}

type FileAttachment struct {
	NoteID   int64  `json:"noteId"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
}

func ID(v int64) *int64 {
	return &v
}

func (n Note) HasID() bool {
	return n.ID != nil
}

// IDValue returns the id or 0 for a note that was never stored.
func (n Note) IDValue() int64 {
	if n.ID == nil {
		return 0
	}
	return *n.ID
}

func (n Note) SameID(other Note) bool {
	return n.ID != nil && other.ID != nil && *n.ID == *other.ID
}

func (n Note) Clone() Note {
	c := n
	if n.ID != nil {
		c.ID = ID(*n.ID)
	}
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	return c
}

// TitleKey is the comparison key for titles: trimmed and case-folded.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func SameTitle(a, b string) bool {
	return TitleKey(a) == TitleKey(b)
}
