package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nzaccagnino/notesync/internal/db"
	"github.com/nzaccagnino/notesync/internal/model"
)

func (s *Server) listNotesHandler(w http.ResponseWriter, r *http.Request) {
	// ?server= names the address the client used; a single store serves
	// every collection it holds.
	notes, err := s.db.ListNotes()
	if err != nil {
		s.logger.Error("list notes", "err", err)
		jsonError(w, "failed to list notes", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, toModels(notes), http.StatusOK)
}

func (s *Server) listCollectionHandler(w http.ResponseWriter, r *http.Request) {
	title, err := url.PathUnescape(chi.URLParam(r, "title"))
	if err != nil {
		jsonError(w, "invalid collection title", http.StatusBadRequest)
		return
	}
	notes, err := s.db.ListNotesByCollection(title)
	if err != nil {
		s.logger.Error("list collection", "collection", title, "err", err)
		jsonError(w, "failed to list notes", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, toModels(notes), http.StatusOK)
}

func (s *Server) getNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "id")
	if !ok {
		return
	}
	note, err := s.db.GetNote(id)
	if errors.Is(err, db.ErrNoteNotFound) {
		jsonError(w, "note not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get note", "id", id, "err", err)
		jsonError(w, "failed to get note", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, note.Model(), http.StatusOK)
}

func (s *Server) createNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req model.Note
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonError(w, "title required", http.StatusBadRequest)
		return
	}

	row, err := s.derive(req)
	if err != nil {
		jsonError(w, "failed to save note", http.StatusInternalServerError)
		return
	}
	created, err := s.db.CreateNote(row)
	if errors.Is(err, db.ErrDuplicateTitle) {
		jsonError(w, "a note with this title already exists", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("create note", "err", err)
		jsonError(w, "failed to save note", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, created.Model(), http.StatusCreated)
}

func (s *Server) updateNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "id")
	if !ok {
		return
	}

	var req model.Note
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = model.ID(id)
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonError(w, "title required", http.StatusBadRequest)
		return
	}

	row, err := s.derive(req)
	if err != nil {
		jsonError(w, "failed to save note", http.StatusInternalServerError)
		return
	}
	updated, err := s.db.UpdateNote(row)
	switch {
	case errors.Is(err, db.ErrNoteNotFound):
		jsonError(w, "note not found", http.StatusNotFound)
		return
	case errors.Is(err, db.ErrDuplicateTitle):
		jsonError(w, "a note with this title already exists", http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("update note", "id", id, "err", err)
		jsonError(w, "failed to save note", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, updated.Model(), http.StatusOK)
}

func (s *Server) deleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.db.DeleteNote(id); err != nil {
		s.logger.Error("delete note", "id", id, "err", err)
		jsonError(w, "failed to delete note", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// derive fills tags and HTML from content, validating links against the
// note's collection.
func (s *Server) derive(n model.Note) (db.Note, error) {
	rows, err := s.db.ListNotesByCollection(n.CollectionTitle)
	if err != nil {
		s.logger.Error("load collection", "collection", n.CollectionTitle, "err", err)
		return db.Note{}, err
	}
	known := make([]model.Note, 0, len(rows)+1)
	for _, row := range rows {
		// The stored copy of n may carry its old title.
		if n.ID != nil && row.ID == *n.ID {
			continue
		}
		known = append(known, row.Model())
	}
	known = append(known, n)
	n = s.pipeline.Apply(n, known)

	return db.Note{
		ID:              n.IDValue(),
		Title:           n.Title,
		Content:         n.Content,
		HTML:            n.HTML,
		Tags:            n.Tags,
		CollectionTitle: n.CollectionTitle,
	}, nil
}

func noteID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		jsonError(w, "invalid note id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func toModels(rows []db.Note) []model.Note {
	notes := make([]model.Note, 0, len(rows))
	for _, n := range rows {
		notes = append(notes, n.Model())
	}
	return notes
}
