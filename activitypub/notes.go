package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/domain"
	"github.com/notabene-social/notabene/util"
)

// maxAncestorDepth bounds the remote parent-chain walk so a malicious or
// broken thread cannot make this node fetch forever.
const maxAncestorDepth = 10

const noteTimeLayout = "2006-01-02T15:04:05Z"

// Notes owns the threaded content entities. Every write path is keyed on the
// canonical content URL, which is the single idempotency boundary for both
// locally authored and federated content.
type Notes struct {
	db        *db.DB
	resolver  *Resolver
	deliverer *Deliverer
	conf      *util.AppConfig
}

func NewNotes(database *db.DB, resolver *Resolver, deliverer *Deliverer, conf *util.AppConfig) *Notes {
	return &Notes{db: database, resolver: resolver, deliverer: deliverer, conf: conf}
}

// noteDoc is the validated shape of a fetched remote note document.
type noteDoc struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	AttributedTo string `json:"attributedTo"`
	Content      string `json:"content"`
	Published    string `json:"published"`
	Updated      string `json:"updated"`
	InReplyTo    string `json:"inReplyTo"`
}

// Upsert creates or updates a locally authored note. Repeated calls with the
// same content URL never create a duplicate row: the first call inserts and
// fans out a Create, later calls rewrite the body and fan out an Update. The
// returned note is valid even when some follower deliveries failed; the
// aggregated delivery error comes back alongside it.
func (s *Notes) Upsert(ctx context.Context, acc *domain.Account, content, contentURL string) (*domain.Note, error) {
	existing, err := s.db.ReadNoteByContentURL(contentURL)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Content = content
		existing.UpdatedAt = time.Now().UTC()
		if err := s.db.UpdateNote(existing); err != nil {
			return nil, err
		}
		log.Info("Updated note", "actor", acc.Username, "url", contentURL)
		return existing, s.deliverer.FanOut(ctx, acc, s.updateEnvelope(acc, existing))
	}

	now := time.Now().UTC()
	note := &domain.Note{
		Id:          uuid.New(),
		AccountId:   uuid.NullUUID{UUID: acc.Id, Valid: true},
		Content:     content,
		ContentURL:  contentURL,
		PublishedAt: now,
		UpdatedAt:   now,
	}
	if err := s.db.InsertNote(note); err != nil {
		return nil, err
	}
	log.Info("Created note", "actor", acc.Username, "url", contentURL)
	return note, s.deliverer.FanOut(ctx, acc, s.createEnvelope(acc, note))
}

// DeleteLocal fans out a Delete with a Tombstone for the note at contentURL.
// The stored row is retained; reconciling storage with deletion is an open
// product decision.
func (s *Notes) DeleteLocal(ctx context.Context, acc *domain.Account, contentURL string) error {
	note, err := s.db.ReadNoteByContentURL(contentURL)
	if err != nil {
		return err
	}
	if note == nil {
		return nil
	}
	return s.deliverer.FanOut(ctx, acc, s.deleteEnvelope(acc, note))
}

// UpsertRemote fetches the remote note at objectURI and stores it, resolving
// any missing ancestor chain first. The walk is bounded by maxAncestorDepth
// and a visited set, so cyclic or absurdly deep reply chains are rejected
// instead of followed.
func (s *Notes) UpsertRemote(ctx context.Context, objectURI string) (*domain.Note, error) {
	visited := map[string]bool{}
	return s.upsertRemote(ctx, objectURI, visited, 0)
}

func (s *Notes) upsertRemote(ctx context.Context, objectURI string, visited map[string]bool, depth int) (*domain.Note, error) {
	if depth > maxAncestorDepth {
		return nil, validationErrorf("reply chain exceeds maximum depth %d", maxAncestorDepth)
	}
	if visited[objectURI] {
		return nil, validationErrorf("cyclic reply chain at %s", objectURI)
	}
	visited[objectURI] = true

	body, err := s.resolver.FetchDocument(ctx, objectURI)
	if err != nil {
		return nil, err
	}

	var doc noteDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, validationErrorf("unparseable note document at %s", objectURI)
	}
	if doc.ID == "" || doc.AttributedTo == "" || doc.Content == "" || doc.Published == "" {
		return nil, validationErrorf("note document at %s missing required fields", objectURI)
	}

	author, err := s.resolver.ResolveURI(ctx, doc.AttributedTo)
	if err != nil {
		return nil, err
	}

	publishedAt, err := parseNoteTime(doc.Published)
	if err != nil {
		return nil, validationErrorf("invalid published timestamp %q", doc.Published)
	}
	updatedAt := publishedAt
	if doc.Updated != "" {
		if t, err := parseNoteTime(doc.Updated); err == nil {
			updatedAt = t
		}
	}

	if doc.InReplyTo != "" {
		if err := s.resolveParent(ctx, doc.InReplyTo, visited, depth); err != nil {
			return nil, err
		}
	}

	note, err := s.db.ReadNoteByContentURL(doc.ID)
	if err != nil {
		return nil, err
	}
	isNew := note == nil
	if isNew {
		note = &domain.Note{Id: uuid.New(), ContentURL: doc.ID}
	}
	note.AccountId = uuid.NullUUID{}
	note.RemoteActorId = uuid.NullUUID{UUID: author.Id, Valid: true}
	note.Content = doc.Content
	note.InReplyTo = doc.InReplyTo
	note.PublishedAt = publishedAt
	note.UpdatedAt = updatedAt

	if isNew {
		if err := s.db.InsertNote(note); err != nil {
			return nil, err
		}
	} else if err := s.db.UpdateNote(note); err != nil {
		return nil, err
	}

	log.Info("Upserted remote note", "author", author.Handle(), "url", note.ContentURL)
	return note, nil
}

// resolveParent makes sure the parent of a reply exists locally before the
// reply is stored. Local parents must already be present; remote parents are
// fetched recursively.
func (s *Notes) resolveParent(ctx context.Context, parentURL string, visited map[string]bool, depth int) error {
	parent, err := s.db.ReadNoteByContentURL(parentURL)
	if err != nil {
		return err
	}
	if parent != nil {
		return nil
	}
	if s.conf.IsLocalURI(parentURL) {
		return validationErrorf("reply references unknown local note %s", parentURL)
	}
	_, err = s.upsertRemote(ctx, parentURL, visited, depth+1)
	return err
}

// DisplayDepth returns the clamped thread depth used for rendering the note.
func (s *Notes) DisplayDepth(note *domain.Note) (int, error) {
	depth, err := s.db.ThreadDepth(note.ContentURL)
	if err != nil {
		return 0, err
	}
	return domain.ClampDepth(depth), nil
}

// NoteJSON materializes a local note as its ActivityPub object.
func (s *Notes) NoteJSON(acc *domain.Account, note *domain.Note) map[string]any {
	data := map[string]any{
		"type":         "Note",
		"id":           note.ContentURL,
		"published":    note.PublishedAt.UTC().Format(noteTimeLayout),
		"attributedTo": s.conf.ActorURI(acc.Username),
		"content":      note.Content,
		"to":           "https://www.w3.org/ns/activitystreams#Public",
	}
	if note.InReplyTo != "" {
		data["inReplyTo"] = note.InReplyTo
	}
	return data
}

func (s *Notes) createEnvelope(acc *domain.Account, note *domain.Note) map[string]any {
	return map[string]any{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"type":   "Create",
		"id":     fmt.Sprintf("%s/%s", s.conf.BaseURI(), uuid.New().String()),
		"actor":  s.conf.ActorURI(acc.Username),
		"object": s.NoteJSON(acc, note),
	}
}

func (s *Notes) updateEnvelope(acc *domain.Account, note *domain.Note) map[string]any {
	return map[string]any{
		"@context":  []string{"https://www.w3.org/ns/activitystreams"},
		"type":      "Update",
		"id":        fmt.Sprintf("%s#updates/%d", note.ContentURL, note.UpdatedAt.Unix()),
		"actor":     s.conf.ActorURI(acc.Username),
		"object":    s.NoteJSON(acc, note),
		"published": note.PublishedAt.UTC().Format(noteTimeLayout),
	}
}

func (s *Notes) deleteEnvelope(acc *domain.Account, note *domain.Note) map[string]any {
	return map[string]any{
		"@context": []string{"https://www.w3.org/ns/activitystreams"},
		"type":     "Delete",
		"actor":    s.conf.ActorURI(acc.Username),
		"object": map[string]any{
			"id":   note.ContentURL,
			"type": "Tombstone",
		},
	}
}

func parseNoteTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(noteTimeLayout, value)
}
