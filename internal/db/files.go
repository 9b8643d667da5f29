package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

func (db *DB) ListFiles(noteID int64) ([]File, error) {
	rows, err := db.conn.Query(`
		SELECT note_id, filename, size, created_at
		FROM files WHERE note_id = ?
		ORDER BY filename
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.NoteID, &f.Filename, &f.Size, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (db *DB) GetFile(noteID int64, filename string) (*File, error) {
	var f File
	err := db.conn.QueryRow(`
		SELECT note_id, filename, size, data, created_at
		FROM files WHERE note_id = ? AND filename = ?
	`, noteID, filename).Scan(&f.NoteID, &f.Filename, &f.Size, &f.Data, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &f, nil
}

// PutFile stores data under (noteID, filename), replacing an existing file.
func (db *DB) PutFile(noteID int64, filename string, data []byte) (*File, error) {
	if _, err := db.GetNote(noteID); err != nil {
		return nil, err
	}

	now := time.Now()
	_, err := db.conn.Exec(`
		INSERT INTO files (note_id, filename, data, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(note_id, filename) DO UPDATE SET
			data = excluded.data,
			size = excluded.size
	`, noteID, filename, data, len(data), now)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	return &File{NoteID: noteID, Filename: filename, Size: int64(len(data)), CreatedAt: now}, nil
}

func (db *DB) RenameFile(noteID int64, filename, newName string) error {
	result, err := db.conn.Exec(`
		UPDATE files SET filename = ? WHERE note_id = ? AND filename = ?
	`, newName, noteID, filename)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrFileExists
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (db *DB) DeleteFile(noteID int64, filename string) error {
	result, err := db.conn.Exec(`DELETE FROM files WHERE note_id = ? AND filename = ?`, noteID, filename)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (db *DB) DeleteAllFiles(noteID int64) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM files WHERE note_id = ?`, noteID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete files: %w", err)
	}
	return result.RowsAffected()
}
