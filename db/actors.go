package db

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/notabene-social/notabene/domain"
)

const (
	sqlUpsertRemoteActor = `INSERT INTO remote_actors(id, username, domain, actor_uri, inbox_uri, key_id, key_owner, public_key_pem, profile_json, last_fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_uri) DO UPDATE SET
			username = excluded.username,
			domain = excluded.domain,
			inbox_uri = excluded.inbox_uri,
			key_id = excluded.key_id,
			key_owner = excluded.key_owner,
			public_key_pem = excluded.public_key_pem,
			profile_json = excluded.profile_json,
			last_fetched_at = excluded.last_fetched_at`

	sqlSelectRemoteActor = `SELECT id, username, domain, actor_uri, inbox_uri, key_id, key_owner, public_key_pem, profile_json, last_fetched_at
		FROM remote_actors`
	sqlSelectRemoteActorByURI    = sqlSelectRemoteActor + ` WHERE actor_uri = ?`
	sqlSelectRemoteActorByHandle = sqlSelectRemoteActor + ` WHERE username = ? AND domain = ?`

	sqlInsertFollower = `INSERT INTO followers(id, remote_actor_id, account_id, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(remote_actor_id, account_id) DO NOTHING`
	sqlDeleteFollower = `DELETE FROM followers WHERE remote_actor_id = ? AND account_id = ?`
	sqlCountFollowers = `SELECT COUNT(*) FROM followers WHERE account_id = ?`

	sqlSelectFollowersPage = `SELECT ra.id, ra.username, ra.domain, ra.actor_uri, ra.inbox_uri, ra.key_id, ra.key_owner, ra.public_key_pem, ra.profile_json, ra.last_fetched_at
		FROM followers f INNER JOIN remote_actors ra ON ra.id = f.remote_actor_id
		WHERE f.account_id = ?
		ORDER BY f.created_at DESC, f.id
		LIMIT ? OFFSET ?`

	sqlSelectAllFollowers = `SELECT ra.id, ra.username, ra.domain, ra.actor_uri, ra.inbox_uri, ra.key_id, ra.key_owner, ra.public_key_pem, ra.profile_json, ra.last_fetched_at
		FROM followers f INNER JOIN remote_actors ra ON ra.id = f.remote_actor_id
		WHERE f.account_id = ?
		ORDER BY f.created_at DESC, f.id`
)

func scanRemoteActor(row interface{ Scan(...any) error }) (*domain.RemoteActor, error) {
	var ra domain.RemoteActor
	err := row.Scan(&ra.Id, &ra.Username, &ra.Domain, &ra.ActorURI, &ra.InboxURI,
		&ra.KeyID, &ra.KeyOwner, &ra.PublicKeyPem, &ra.ProfileJSON, &ra.LastFetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ra, nil
}

// UpsertRemoteActor stores or refreshes a cached remote actor, keyed by its
// canonical actor URI.
func (db *DB) UpsertRemoteActor(ra *domain.RemoteActor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertRemoteActor,
			ra.Id.String(),
			ra.Username,
			ra.Domain,
			ra.ActorURI,
			ra.InboxURI,
			ra.KeyID,
			ra.KeyOwner,
			ra.PublicKeyPem,
			ra.ProfileJSON,
			ra.LastFetchedAt,
		)
		return err
	})
}

func (db *DB) ReadRemoteActorByURI(uri string) (*domain.RemoteActor, error) {
	return scanRemoteActor(db.db.QueryRow(sqlSelectRemoteActorByURI, uri))
}

func (db *DB) ReadRemoteActorByHandle(username, domainName string) (*domain.RemoteActor, error) {
	return scanRemoteActor(db.db.QueryRow(sqlSelectRemoteActorByHandle, username, domainName))
}

// CreateFollower adds the follow edge remote -> local. A duplicate edge is a
// no-op; the unique pair constraint also absorbs racing inserts. Returns true
// when a new edge was created.
func (db *DB) CreateFollower(remoteActorId, accountId uuid.UUID) (bool, error) {
	res, err := db.db.Exec(sqlInsertFollower, uuid.New().String(), remoteActorId.String(), accountId.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteFollower removes the follow edge. Returns true when an edge existed.
func (db *DB) DeleteFollower(remoteActorId, accountId uuid.UUID) (bool, error) {
	res, err := db.db.Exec(sqlDeleteFollower, remoteActorId.String(), accountId.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) CountFollowers(accountId uuid.UUID) (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountFollowers, accountId.String()).Scan(&count)
	return count, err
}

// ReadFollowersPage returns one page of followers, newest edge first.
func (db *DB) ReadFollowersPage(accountId uuid.UUID, limit, offset int) ([]domain.RemoteActor, error) {
	rows, err := db.db.Query(sqlSelectFollowersPage, accountId.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRemoteActors(rows)
}

// ReadAllFollowers returns the full current follower set, for fan-out.
func (db *DB) ReadAllFollowers(accountId uuid.UUID) ([]domain.RemoteActor, error) {
	rows, err := db.db.Query(sqlSelectAllFollowers, accountId.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRemoteActors(rows)
}

func collectRemoteActors(rows *sql.Rows) ([]domain.RemoteActor, error) {
	var actors []domain.RemoteActor
	for rows.Next() {
		var ra domain.RemoteActor
		if err := rows.Scan(&ra.Id, &ra.Username, &ra.Domain, &ra.ActorURI, &ra.InboxURI,
			&ra.KeyID, &ra.KeyOwner, &ra.PublicKeyPem, &ra.ProfileJSON, &ra.LastFetchedAt); err != nil {
			return nil, err
		}
		actors = append(actors, ra)
	}
	return actors, rows.Err()
}
