package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notabene-social/notabene/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func insertTestAccount(t *testing.T, database *DB, username string) *domain.Account {
	t.Helper()
	acc := &domain.Account{
		Id:            uuid.New(),
		Username:      username,
		PublicKeyPem:  "pub",
		PrivateKeyPem: "priv",
		CreatedAt:     time.Now().UTC(),
	}
	if err := database.CreateAccount(acc); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return acc
}

func insertTestRemoteActor(t *testing.T, database *DB, actorURI string) *domain.RemoteActor {
	t.Helper()
	actor := &domain.RemoteActor{
		Id:            uuid.New(),
		Username:      "bob",
		Domain:        "remote.example",
		ActorURI:      actorURI,
		InboxURI:      actorURI + "/inbox",
		LastFetchedAt: time.Now(),
	}
	if err := database.UpsertRemoteActor(actor); err != nil {
		t.Fatalf("UpsertRemoteActor failed: %v", err)
	}
	return actor
}

func insertTestNote(t *testing.T, database *DB, acc *domain.Account, contentURL, inReplyTo string) *domain.Note {
	t.Helper()
	note := &domain.Note{
		Id:          uuid.New(),
		AccountId:   uuid.NullUUID{UUID: acc.Id, Valid: true},
		Content:     "content",
		ContentURL:  contentURL,
		InReplyTo:   inReplyTo,
		PublishedAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := database.InsertNote(note); err != nil {
		t.Fatalf("InsertNote failed: %v", err)
	}
	return note
}

func TestWrapTransactionRollsBackOnError(t *testing.T) {
	database := openTestDB(t)

	boom := errors.New("boom")
	err := database.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlInsertAccount,
			uuid.New().String(), "ghost", "", "", "pub", "priv", time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("wrapTransaction = %v, want the callback error", err)
	}

	// The insert must not have survived the failed transaction.
	acc, err := database.ReadAccountByUsername("ghost")
	if err != nil {
		t.Fatalf("ReadAccountByUsername failed: %v", err)
	}
	if acc != nil {
		t.Error("Row written inside a failed transaction was committed")
	}
}

func TestAccountRoundtrip(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")

	byName, err := database.ReadAccountByUsername("alice")
	if err != nil {
		t.Fatalf("ReadAccountByUsername failed: %v", err)
	}
	if byName == nil || byName.Id != acc.Id {
		t.Fatalf("ReadAccountByUsername = %+v", byName)
	}

	byId, err := database.ReadAccountById(acc.Id)
	if err != nil {
		t.Fatalf("ReadAccountById failed: %v", err)
	}
	if byId == nil || byId.Username != "alice" {
		t.Fatalf("ReadAccountById = %+v", byId)
	}

	missing, err := database.ReadAccountByUsername("nobody")
	if err != nil {
		t.Fatalf("ReadAccountByUsername failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for an unknown username")
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	database := openTestDB(t)
	insertTestAccount(t, database, "alice")

	dup := &domain.Account{
		Id:            uuid.New(),
		Username:      "alice",
		PublicKeyPem:  "pub",
		PrivateKeyPem: "priv",
		CreatedAt:     time.Now().UTC(),
	}
	if err := database.CreateAccount(dup); err == nil {
		t.Error("Expected unique constraint violation for duplicate username")
	}
}

func TestRemoteActorUpsertRefreshes(t *testing.T) {
	database := openTestDB(t)
	actor := insertTestRemoteActor(t, database, "https://remote.example/users/bob")

	refreshed := *actor
	refreshed.Id = uuid.New()
	refreshed.InboxURI = "https://remote.example/shared-inbox"
	if err := database.UpsertRemoteActor(&refreshed); err != nil {
		t.Fatalf("Refresh upsert failed: %v", err)
	}

	stored, err := database.ReadRemoteActorByURI(actor.ActorURI)
	if err != nil {
		t.Fatalf("ReadRemoteActorByURI failed: %v", err)
	}
	if stored.Id != actor.Id {
		t.Errorf("Upsert replaced the row id: %s != %s", stored.Id, actor.Id)
	}
	if stored.InboxURI != "https://remote.example/shared-inbox" {
		t.Errorf("InboxURI not refreshed: %q", stored.InboxURI)
	}
}

func TestFollowerUniqueness(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")
	remote := insertTestRemoteActor(t, database, "https://remote.example/users/bob")

	created, err := database.CreateFollower(remote.Id, acc.Id)
	if err != nil {
		t.Fatalf("CreateFollower failed: %v", err)
	}
	if !created {
		t.Error("First CreateFollower should report a new edge")
	}

	created, err = database.CreateFollower(remote.Id, acc.Id)
	if err != nil {
		t.Fatalf("Duplicate CreateFollower failed: %v", err)
	}
	if created {
		t.Error("Duplicate CreateFollower should be a no-op")
	}

	count, err := database.CountFollowers(acc.Id)
	if err != nil {
		t.Fatalf("CountFollowers failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 follower, got %d", count)
	}
}

func TestDeleteFollowerAbsent(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")
	remote := insertTestRemoteActor(t, database, "https://remote.example/users/bob")

	removed, err := database.DeleteFollower(remote.Id, acc.Id)
	if err != nil {
		t.Fatalf("DeleteFollower failed: %v", err)
	}
	if removed {
		t.Error("DeleteFollower should report false when no edge exists")
	}
}

func TestNoteContentURLUnique(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")
	note := insertTestNote(t, database, acc, "https://example.com/notes/1", "")

	dup := *note
	dup.Id = uuid.New()
	if err := database.InsertNote(&dup); err == nil {
		t.Error("Expected unique constraint violation for duplicate content URL")
	}
}

func TestLikesAndAnnounces(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")
	remote := insertTestRemoteActor(t, database, "https://remote.example/users/bob")
	note := insertTestNote(t, database, acc, "https://example.com/notes/1", "")

	if err := database.AddLike(note.Id, remote.Id); err != nil {
		t.Fatalf("AddLike failed: %v", err)
	}
	// Liking twice is absorbed by the unique pair.
	if err := database.AddLike(note.Id, remote.Id); err != nil {
		t.Fatalf("Duplicate AddLike failed: %v", err)
	}

	removed, err := database.RemoveLike(note.Id, remote.Id)
	if err != nil {
		t.Fatalf("RemoveLike failed: %v", err)
	}
	if !removed {
		t.Error("RemoveLike should report true for an existing like")
	}

	removed, err = database.RemoveLike(note.Id, remote.Id)
	if err != nil {
		t.Fatalf("Second RemoveLike failed: %v", err)
	}
	if removed {
		t.Error("RemoveLike should report false when nothing is stored")
	}

	removed, err = database.RemoveAnnounce(note.Id, remote.Id)
	if err != nil {
		t.Fatalf("RemoveAnnounce failed: %v", err)
	}
	if removed {
		t.Error("RemoveAnnounce should report false when nothing is stored")
	}
}

func TestThreadDepth(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")

	root := insertTestNote(t, database, acc, "https://example.com/notes/root", "")
	mid := insertTestNote(t, database, acc, "https://example.com/notes/mid", root.ContentURL)
	leaf := insertTestNote(t, database, acc, "https://example.com/notes/leaf", mid.ContentURL)

	depth, err := database.ThreadDepth(leaf.ContentURL)
	if err != nil {
		t.Fatalf("ThreadDepth failed: %v", err)
	}
	if depth != 2 {
		t.Errorf("ThreadDepth = %d, want 2", depth)
	}

	depth, err = database.ThreadDepth(root.ContentURL)
	if err != nil {
		t.Fatalf("ThreadDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("Root ThreadDepth = %d, want 0", depth)
	}
}

func TestThreadDepthCycleTerminates(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")

	a := insertTestNote(t, database, acc, "https://example.com/notes/a", "https://example.com/notes/b")
	b := insertTestNote(t, database, acc, "https://example.com/notes/b", a.ContentURL)

	// A corrupt cyclic chain must terminate, not hang.
	if _, err := database.ThreadDepth(b.ContentURL); err != nil {
		t.Fatalf("ThreadDepth failed on cycle: %v", err)
	}
}

func TestNotesPageOrdering(t *testing.T) {
	database := openTestDB(t)
	acc := insertTestAccount(t, database, "alice")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		note := &domain.Note{
			Id:          uuid.New(),
			AccountId:   uuid.NullUUID{UUID: acc.Id, Valid: true},
			Content:     "content",
			ContentURL:  "https://example.com/notes/page-" + uuid.New().String(),
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := database.InsertNote(note); err != nil {
			t.Fatalf("InsertNote failed: %v", err)
		}
	}

	page, err := database.ReadNotesPage(acc.Id, 2, 0)
	if err != nil {
		t.Fatalf("ReadNotesPage failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 notes, got %d", len(page))
	}
	if page[0].PublishedAt.Before(page[1].PublishedAt) {
		t.Error("Notes should come back newest first")
	}
}
