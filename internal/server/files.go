package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nzaccagnino/notesync/internal/db"
	"github.com/nzaccagnino/notesync/internal/model"
)

const maxUploadSize = 32 << 20

func (s *Server) listFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "noteID")
	if !ok {
		return
	}
	files, err := s.db.ListFiles(id)
	if err != nil {
		s.logger.Error("list files", "note", id, "err", err)
		jsonError(w, "failed to list files", http.StatusInternalServerError)
		return
	}

	out := make([]model.FileAttachment, 0, len(files))
	for _, f := range files {
		out = append(out, f.Model())
	}
	jsonResponse(w, out, http.StatusOK)
}

func (s *Server) uploadFileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "noteID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := cleanFilename(header.Filename)
	if name == "" {
		jsonError(w, "invalid filename", http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	stored, err := s.db.PutFile(id, name, data)
	if errors.Is(err, db.ErrNoteNotFound) {
		jsonError(w, "note not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("store file", "note", id, "file", name, "err", err)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, stored.Model(), http.StatusCreated)
}

func (s *Server) downloadFileHandler(w http.ResponseWriter, r *http.Request) {
	id, name, ok := fileParams(w, r)
	if !ok {
		return
	}
	f, err := s.db.GetFile(id, name)
	if errors.Is(err, db.ErrFileNotFound) {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get file", "note", id, "file", name, "err", err)
		jsonError(w, "failed to get file", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) renameFileHandler(w http.ResponseWriter, r *http.Request) {
	id, name, ok := fileParams(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	newName := cleanFilename(req.Name)
	if newName == "" {
		jsonError(w, "invalid filename", http.StatusBadRequest)
		return
	}

	err := s.db.RenameFile(id, name, newName)
	switch {
	case errors.Is(err, db.ErrFileNotFound):
		jsonError(w, "file not found", http.StatusNotFound)
	case errors.Is(err, db.ErrFileExists):
		jsonError(w, "file already exists", http.StatusConflict)
	case err != nil:
		s.logger.Error("rename file", "note", id, "file", name, "err", err)
		jsonError(w, "failed to rename file", http.StatusInternalServerError)
	default:
		jsonResponse(w, model.FileAttachment{NoteID: id, Filename: newName}, http.StatusOK)
	}
}

func (s *Server) deleteFileHandler(w http.ResponseWriter, r *http.Request) {
	id, name, ok := fileParams(w, r)
	if !ok {
		return
	}
	err := s.db.DeleteFile(id, name)
	if errors.Is(err, db.ErrFileNotFound) {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("delete file", "note", id, "file", name, "err", err)
		jsonError(w, "failed to delete file", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteAllFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(w, r, "noteID")
	if !ok {
		return
	}
	count, err := s.db.DeleteAllFiles(id)
	if err != nil {
		s.logger.Error("delete files", "note", id, "err", err)
		jsonError(w, "failed to delete files", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]int64{"deleted": count}, http.StatusOK)
}

func fileParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	id, ok := noteID(w, r, "noteID")
	if !ok {
		return 0, "", false
	}
	name, err := url.PathUnescape(chi.URLParam(r, "filename"))
	if err != nil || name == "" {
		jsonError(w, "invalid filename", http.StatusBadRequest)
		return 0, "", false
	}
	return id, name, true
}

// cleanFilename keeps the base name and rejects path tricks.
func cleanFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
