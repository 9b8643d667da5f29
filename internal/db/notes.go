package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const noteColumns = `id, title, content, html, tags, collection_title, created_at, updated_at`

func scanNote(row interface{ Scan(...interface{}) error }) (*Note, error) {
	var n Note
	var tags string
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.HTML, &tags, &n.CollectionTitle, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = decodeTags(tags)
	return &n, nil
}

func (db *DB) queryNotes(query string, args ...interface{}) ([]Note, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (db *DB) ListNotes() ([]Note, error) {
	return db.queryNotes(`SELECT ` + noteColumns + ` FROM notes ORDER BY id`)
}

func (db *DB) ListNotesByCollection(collectionTitle string) ([]Note, error) {
	return db.queryNotes(`SELECT `+noteColumns+` FROM notes WHERE collection_title = ? ORDER BY id`, collectionTitle)
}

func (db *DB) GetNote(id int64) (*Note, error) {
	n, err := scanNote(db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// TitleTaken reports whether another note in the collection already uses
// title, compared trimmed and case-insensitively. excludeID is ignored.
func (db *DB) TitleTaken(collectionTitle, title string, excludeID int64) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM notes
		WHERE collection_title = ? AND lower(trim(title)) = ? AND id != ?
	`, collectionTitle, strings.ToLower(strings.TrimSpace(title)), excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check title: %w", err)
	}
	return count > 0, nil
}

func (db *DB) CreateNote(n Note) (*Note, error) {
	taken, err := db.TitleTaken(n.CollectionTitle, n.Title, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateTitle
	}

	now := time.Now()
	result, err := db.conn.Exec(`
		INSERT INTO notes (title, content, html, tags, collection_title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.Title, n.Content, n.HTML, encodeTags(n.Tags), n.CollectionTitle, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read note id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	n.UpdatedAt = now
	return &n, nil
}

func (db *DB) UpdateNote(n Note) (*Note, error) {
	taken, err := db.TitleTaken(n.CollectionTitle, n.Title, n.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrDuplicateTitle
	}

	now := time.Now()
	result, err := db.conn.Exec(`
		UPDATE notes
		SET title = ?, content = ?, html = ?, tags = ?, collection_title = ?, updated_at = ?
		WHERE id = ?
	`, n.Title, n.Content, n.HTML, encodeTags(n.Tags), n.CollectionTitle, now, n.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNoteNotFound
	}
	return db.GetNote(n.ID)
}

// DeleteNote removes a note and its files. Deleting a missing note is not
// an error; it reports whether a row was removed.
func (db *DB) DeleteNote(id int64) (bool, error) {
	result, err := db.conn.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
