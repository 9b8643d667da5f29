package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nzaccagnino/notesync/internal/model"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the note store.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RenameFileRequest struct {
	Name string `json:"name"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Notes

func (c *Client) ListNotes(ctx context.Context, server string) ([]model.Note, error) {
	path := "/api/notes"
	if server != "" {
		path += "?server=" + url.QueryEscape(server)
	}

	var notes []model.Note
	if err := c.get(ctx, path, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) GetNote(ctx context.Context, id int64) (*model.Note, error) {
	var note model.Note
	if err := c.get(ctx, fmt.Sprintf("/api/notes/%d", id), &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) CreateNote(ctx context.Context, note model.Note) (*model.Note, error) {
	note.ID = nil
	var resp model.Note
	if err := c.send(ctx, http.MethodPost, "/api/notes", note, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateNote(ctx context.Context, note model.Note) (*model.Note, error) {
	if note.ID == nil {
		return nil, fmt.Errorf("cannot update a note without id")
	}
	var resp model.Note
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/notes/%d", *note.ID), note, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteNote removes a note. Deleting a note that is already gone succeeds.
func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	err := c.delete(ctx, fmt.Sprintf("/api/notes/%d", id))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Files

func (c *Client) ListFiles(ctx context.Context, noteID int64) ([]model.FileAttachment, error) {
	var files []model.FileAttachment
	if err := c.get(ctx, fmt.Sprintf("/api/files/%d", noteID), &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) UploadFile(ctx context.Context, noteID int64, filename string, r io.Reader) (*model.FileAttachment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+fmt.Sprintf("/api/files/%d/upload", noteID), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp model.FileAttachment
	if err := c.doRequest(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DownloadFile(ctx context.Context, noteID int64, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(noteID, filename), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, responseError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) RenameFile(ctx context.Context, noteID int64, filename, newName string) error {
	path := fmt.Sprintf("/api/files/%d/%s/rename", noteID, url.PathEscape(filename))
	return c.send(ctx, http.MethodPut, path, RenameFileRequest{Name: newName}, nil)
}

func (c *Client) DeleteFile(ctx context.Context, noteID int64, filename string) error {
	return c.delete(ctx, fmt.Sprintf("/api/files/%d/%s", noteID, url.PathEscape(filename)))
}

func (c *Client) DeleteAllFiles(ctx context.Context, noteID int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/files/%d/all", noteID))
}

func (c *Client) fileURL(noteID int64, filename string) string {
	return c.baseURL + fmt.Sprintf("/api/files/%d/%s", noteID, url.PathEscape(filename))
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doRequest(req, result)
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRequest(req, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode}
}
