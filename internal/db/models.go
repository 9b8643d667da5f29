package db

import (
	"encoding/json"
	"time"

	"github.com/nzaccagnino/notesync/internal/model"
)

// Note is a stored note row.
type Note struct {
	ID              int64
	Title           string
	Content         string
	HTML            string
	Tags            []string
	CollectionTitle string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (n Note) Model() model.Note {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Note{
		ID:              model.ID(n.ID),
		Title:           n.Title,
		Content:         n.Content,
		HTML:            n.HTML,
		Tags:            tags,
		CollectionTitle: n.CollectionTitle,
	}
}

// File is a stored attachment. Data is only loaded by GetFile.
type File struct {
	NoteID    int64
	Filename  string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

func (f File) Model() model.FileAttachment {
	return model.FileAttachment{NoteID: f.NoteID, Filename: f.Filename, Size: f.Size}
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeTags(raw string) []string {
	var tags []string
	if raw == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}
