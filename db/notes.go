package db

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/notabene-social/notabene/domain"
)

const (
	sqlInsertNote = `INSERT INTO notes(id, account_id, remote_actor_id, content, content_url, in_reply_to, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateNote = `UPDATE notes SET account_id = ?, remote_actor_id = ?, content = ?, in_reply_to = ?, published_at = ?, updated_at = ?
		WHERE content_url = ?`

	sqlSelectNote = `SELECT id, account_id, remote_actor_id, content, content_url, in_reply_to, published_at, updated_at FROM notes`

	sqlSelectNoteByContentURL = sqlSelectNote + ` WHERE content_url = ?`
	sqlSelectNoteById         = sqlSelectNote + ` WHERE id = ?`
	sqlCountNotesByAccount    = `SELECT COUNT(*) FROM notes WHERE account_id = ?`
	sqlSelectNotesPage        = sqlSelectNote + ` WHERE account_id = ? ORDER BY published_at DESC, id LIMIT ? OFFSET ?`

	sqlInsertLike     = `INSERT INTO note_likes(note_id, remote_actor_id) VALUES (?, ?) ON CONFLICT(note_id, remote_actor_id) DO NOTHING`
	sqlDeleteLike     = `DELETE FROM note_likes WHERE note_id = ? AND remote_actor_id = ?`
	sqlInsertAnnounce = `INSERT INTO note_announces(note_id, remote_actor_id) VALUES (?, ?) ON CONFLICT(note_id, remote_actor_id) DO NOTHING`
	sqlDeleteAnnounce = `DELETE FROM note_announces WHERE note_id = ? AND remote_actor_id = ?`

	sqlSelectParentURL = `SELECT in_reply_to FROM notes WHERE content_url = ?`
)

func scanNote(row interface{ Scan(...any) error }) (*domain.Note, error) {
	var (
		n             domain.Note
		accountId     sql.NullString
		remoteActorId sql.NullString
		inReplyTo     sql.NullString
	)
	err := row.Scan(&n.Id, &accountId, &remoteActorId, &n.Content, &n.ContentURL,
		&inReplyTo, &n.PublishedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if accountId.Valid {
		id, err := uuid.Parse(accountId.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt account id on note %s: %w", n.ContentURL, err)
		}
		n.AccountId = uuid.NullUUID{UUID: id, Valid: true}
	}
	if remoteActorId.Valid {
		id, err := uuid.Parse(remoteActorId.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt remote actor id on note %s: %w", n.ContentURL, err)
		}
		n.RemoteActorId = uuid.NullUUID{UUID: id, Valid: true}
	}
	if inReplyTo.Valid {
		n.InReplyTo = inReplyTo.String
	}
	return &n, nil
}

func nullUUIDValue(id uuid.NullUUID) any {
	if !id.Valid {
		return nil
	}
	return id.UUID.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertNote stores a new note. The unique content_url constraint rejects a
// racing duplicate insert for the same URL.
func (db *DB) InsertNote(n *domain.Note) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNote,
			n.Id.String(),
			nullUUIDValue(n.AccountId),
			nullUUIDValue(n.RemoteActorId),
			n.Content,
			n.ContentURL,
			nullString(n.InReplyTo),
			n.PublishedAt,
			n.UpdatedAt,
		)
		return err
	})
}

// UpdateNote rewrites a note in place, keyed by its content URL.
func (db *DB) UpdateNote(n *domain.Note) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateNote,
			nullUUIDValue(n.AccountId),
			nullUUIDValue(n.RemoteActorId),
			n.Content,
			nullString(n.InReplyTo),
			n.PublishedAt,
			n.UpdatedAt,
			n.ContentURL,
		)
		return err
	})
}

// ReadNoteByContentURL returns the note with the given canonical URL, or nil.
func (db *DB) ReadNoteByContentURL(contentURL string) (*domain.Note, error) {
	return scanNote(db.db.QueryRow(sqlSelectNoteByContentURL, contentURL))
}

func (db *DB) ReadNoteById(id uuid.UUID) (*domain.Note, error) {
	return scanNote(db.db.QueryRow(sqlSelectNoteById, id.String()))
}

func (db *DB) CountNotesByAccount(accountId uuid.UUID) (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountNotesByAccount, accountId.String()).Scan(&count)
	return count, err
}

// ReadNotesPage returns one page of an account's notes, newest first.
func (db *DB) ReadNotesPage(accountId uuid.UUID, limit, offset int) ([]domain.Note, error) {
	rows, err := db.db.Query(sqlSelectNotesPage, accountId.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

// AddLike records that the remote actor liked the note. Liking twice has no
// additional effect.
func (db *DB) AddLike(noteId, remoteActorId uuid.UUID) error {
	_, err := db.db.Exec(sqlInsertLike, noteId.String(), remoteActorId.String())
	return err
}

// RemoveLike returns true when a like existed and was removed.
func (db *DB) RemoveLike(noteId, remoteActorId uuid.UUID) (bool, error) {
	res, err := db.db.Exec(sqlDeleteLike, noteId.String(), remoteActorId.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) AddAnnounce(noteId, remoteActorId uuid.UUID) error {
	_, err := db.db.Exec(sqlInsertAnnounce, noteId.String(), remoteActorId.String())
	return err
}

func (db *DB) RemoveAnnounce(noteId, remoteActorId uuid.UUID) (bool, error) {
	res, err := db.db.Exec(sqlDeleteAnnounce, noteId.String(), remoteActorId.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ThreadDepth walks the ancestor chain of the note at contentURL and returns
// its depth (a root note has depth 0). The walk keeps a visited set so a
// cyclic chain terminates instead of looping.
func (db *DB) ThreadDepth(contentURL string) (int, error) {
	depth := 0
	visited := map[string]bool{contentURL: true}
	current := contentURL

	for {
		var parent sql.NullString
		err := db.db.QueryRow(sqlSelectParentURL, current).Scan(&parent)
		if err == sql.ErrNoRows || !parent.Valid || parent.String == "" {
			return depth, nil
		}
		if err != nil {
			return depth, err
		}
		if visited[parent.String] {
			return depth, nil
		}
		visited[parent.String] = true
		current = parent.String
		depth++
	}
}
