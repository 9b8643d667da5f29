package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzaccagnino/notesync/internal/model"
)

func TestClientNotes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/notes":
			assert.Equal(t, "http://example.com", r.URL.Query().Get("server"))
			json.NewEncoder(w).Encode([]model.Note{{ID: model.ID(1), Title: "A"}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/notes":
			var n model.Note
			require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
			assert.Nil(t, n.ID)
			n.ID = model.ID(2)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(n)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/notes/9":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/api/notes/3":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "duplicate title"})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL + "/")
	assert.Equal(t, ts.URL, c.BaseURL())

	notes, err := c.ListNotes(ctx, "http://example.com")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "A", notes[0].Title)

	created, err := c.CreateNote(ctx, model.Note{ID: model.ID(77), Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.IDValue())

	assert.NoError(t, c.DeleteNote(ctx, 9), "deleting a missing note succeeds")

	_, err = c.UpdateNote(ctx, model.Note{ID: model.ID(3), Title: "B"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "duplicate title", apiErr.Error())

	_, err = c.UpdateNote(ctx, model.Note{Title: "no id"})
	assert.Error(t, err)
}

func TestClientFiles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/files/4/upload":
			f, header, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(f)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.FileAttachment{NoteID: 4, Filename: header.Filename, Size: int64(len(data))})
		case r.Method == http.MethodGet && r.URL.EscapedPath() == "/api/files/4/my%20cat.png":
			w.Write([]byte("meow"))
		case r.Method == http.MethodPut && r.URL.EscapedPath() == "/api/files/4/my%20cat.png/rename":
			var req RenameFileRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "cat.png", req.Name)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL)

	f, err := c.UploadFile(ctx, 4, "my cat.png", strings.NewReader("meow"))
	require.NoError(t, err)
	assert.Equal(t, "my cat.png", f.Filename)
	assert.Equal(t, int64(4), f.Size)

	data, err := c.DownloadFile(ctx, 4, "my cat.png")
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))

	require.NoError(t, c.RenameFile(ctx, 4, "my cat.png", "cat.png"))

	_, err = c.DownloadFile(ctx, 4, "gone.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFileOperations(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/files/5/upload":
			_, header, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(model.FileAttachment{NoteID: 5, Filename: header.Filename, Size: 3})
		case r.Method == http.MethodGet && r.URL.Path == "/api/files/5/a.txt":
			w.Write([]byte("abc"))
		case r.Method == http.MethodPut && r.URL.Path == "/api/files/5/a.txt/rename":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	s, err := NewStore(StoreOptions{
		Collection:   model.Collection{Title: "Default Collection", Server: ts.URL},
		PollInterval: time.Hour,
		Logger:       log.New(io.Discard),
	})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	f, err := s.UploadFile(ctx, 5, "a.txt", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, model.FileAttachment{NoteID: 5, Filename: "a.txt", Size: 3}, f)

	data, err := s.DownloadFile(ctx, 5, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	require.NoError(t, s.RenameFile(ctx, 5, "a.txt", "b.txt"))
	require.NoError(t, s.DeleteFile(ctx, 5, "b.txt"))
	require.NoError(t, s.DeleteAllFiles(ctx, 5))
	mu.Lock()
	assert.Equal(t, []string{"/api/files/5/b.txt", "/api/files/5/all"}, deleted)
	mu.Unlock()

	err = s.RenameFile(ctx, 5, "missing.txt", "c.txt")
	assert.ErrorContains(t, err, "failed to rename missing.txt")
}

func TestStoreRefreshEmitsChanges(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]model.Note{{ID: model.ID(1), Title: "A"}, {ID: model.ID(2), Title: "B"}})
	}))
	defer ts.Close()

	s, err := NewStore(StoreOptions{
		Collection:   model.Collection{Title: "Default Collection", Server: ts.URL},
		PollInterval: time.Hour,
		Logger:       log.New(io.Discard),
	})
	require.NoError(t, err)
	defer s.Close()

	var got []Change
	unsubscribe := s.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, s.RefreshNow(context.Background()))
	require.Len(t, got, 1)
	assert.Equal(t, ChangeSnapshot, got[0].Kind)
	assert.Len(t, got[0].Notes, 2)

	fail.Store(true)
	assert.Error(t, s.RefreshNow(context.Background()))
	require.Len(t, got, 2)
	assert.Equal(t, ChangeFailed, got[1].Kind)

	unsubscribe()
	s.RefreshNow(context.Background())
	assert.Len(t, got, 2)
}

func TestNewStoreRejectsBadServer(t *testing.T) {
	_, err := NewStore(StoreOptions{
		Collection: model.Collection{Title: "X", Server: "ftp://example.com"},
		Logger:     log.New(io.Discard),
	})
	assert.Error(t, err)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "updated", ChangeUpdated.String())
	assert.Equal(t, "connection", ChangeConnection.String())
	assert.Equal(t, "unknown", ChangeKind(42).String())
}
