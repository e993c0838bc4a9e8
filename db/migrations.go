package db

const (
	// Local actors. The key pair is written once at insert and never updated.
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		public_key_pem TEXT NOT NULL,
		private_key_pem TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Cached remote principals, keyed by their canonical profile URL.
	sqlCreateRemoteActorsTable = `CREATE TABLE IF NOT EXISTS remote_actors (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		inbox_uri TEXT NOT NULL,
		key_id TEXT,
		key_owner TEXT,
		public_key_pem TEXT,
		profile_json TEXT,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRemoteActorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_actors_actor_uri ON remote_actors(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_actors_handle ON remote_actors(username, domain);
	`

	// The unique pair rejects racing duplicate Follows.
	sqlCreateFollowersTable = `CREATE TABLE IF NOT EXISTS followers (
		id TEXT NOT NULL PRIMARY KEY,
		remote_actor_id TEXT NOT NULL REFERENCES remote_actors(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(remote_actor_id, account_id)
	)`

	sqlCreateFollowersIndices = `
		CREATE INDEX IF NOT EXISTS idx_followers_account_date ON followers(account_id, created_at);
	`

	// content_url is the idempotency key for every upsert path.
	sqlCreateNotesTable = `CREATE TABLE IF NOT EXISTS notes (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT REFERENCES accounts(id),
		remote_actor_id TEXT REFERENCES remote_actors(id),
		content TEXT NOT NULL,
		content_url TEXT UNIQUE NOT NULL,
		in_reply_to TEXT,
		published_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		CHECK ((account_id IS NULL) != (remote_actor_id IS NULL))
	)`

	sqlCreateNotesIndices = `
		CREATE INDEX IF NOT EXISTS idx_notes_account_date ON notes(account_id, published_at);
		CREATE INDEX IF NOT EXISTS idx_notes_content_url ON notes(content_url);
	`

	sqlCreateNoteLikesTable = `CREATE TABLE IF NOT EXISTS note_likes (
		note_id TEXT NOT NULL REFERENCES notes(id),
		remote_actor_id TEXT NOT NULL REFERENCES remote_actors(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(note_id, remote_actor_id)
	)`

	sqlCreateNoteAnnouncesTable = `CREATE TABLE IF NOT EXISTS note_announces (
		note_id TEXT NOT NULL REFERENCES notes(id),
		remote_actor_id TEXT NOT NULL REFERENCES remote_actors(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(note_id, remote_actor_id)
	)`
)

// RunMigrations creates all tables and indices that don't exist yet.
func (db *DB) RunMigrations() error {
	stmts := []string{
		sqlCreateAccountsTable,
		sqlCreateRemoteActorsTable,
		sqlCreateRemoteActorsIndices,
		sqlCreateFollowersTable,
		sqlCreateFollowersIndices,
		sqlCreateNotesTable,
		sqlCreateNotesIndices,
		sqlCreateNoteLikesTable,
		sqlCreateNoteAnnouncesTable,
	}

	for _, stmt := range stmts {
		if _, err := db.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
