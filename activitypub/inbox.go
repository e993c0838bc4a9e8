package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/domain"
	"github.com/notabene-social/notabene/util"
)

// Activity is the outer envelope of an inbound activity. Object stays raw
// until the per-type handler decodes it into the shape it needs; remote
// input is never trusted beyond the fields actually validated.
type Activity struct {
	Context any             `json:"@context"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object"`
}

// objectURI extracts the object reference from an activity object that may
// be either a bare URL string or an embedded object with an id.
func objectURI(raw json.RawMessage) (string, bool) {
	var uri string
	if err := json.Unmarshal(raw, &uri); err == nil {
		return uri, uri != ""
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.ID != "" {
		return obj.ID, true
	}
	return "", false
}

// Inbox is the activity-processing state machine. It holds no state of its
// own; each authenticated activity is processed to completion synchronously.
type Inbox struct {
	db        *db.DB
	conf      *util.AppConfig
	resolver  *Resolver
	deliverer *Deliverer
	notes     *Notes
}

func NewInbox(database *db.DB, conf *util.AppConfig, resolver *Resolver, deliverer *Deliverer, notes *Notes) *Inbox {
	return &Inbox{db: database, conf: conf, resolver: resolver, deliverer: deliverer, notes: notes}
}

// Handle verifies and dispatches one inbound activity addressed to the local
// actor with the given username. A nil return is an acceptance; an
// *ActivityError is a rejection with a client status; any other error is a
// processing failure. Nothing is retried.
func (ib *Inbox) Handle(ctx context.Context, username string, r *http.Request, body []byte) error {
	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return validationErrorf("invalid activity document")
	}
	if activity.Type == "" || activity.Actor == "" {
		return validationErrorf("activity missing type or actor")
	}

	log.Info("Inbox: received activity", "type", activity.Type, "actor", activity.Actor, "target", username)

	remote, err := ib.resolver.ResolveURI(ctx, activity.Actor)
	if err != nil {
		var disc *DiscoveryError
		if errors.As(err, &disc) && disc.StatusCode == http.StatusGone && activity.Type == "Delete" {
			// The signing actor is gone from its own server; there is
			// nothing left to verify against.
			return goneError()
		}
		return signatureErrorf("could not fetch profile of claimed actor %s", activity.Actor)
	}

	// net/http promotes the Host header into r.Host; put it back so a
	// signature declaring "host" can be checked against it.
	if r.Header.Get("Host") == "" && r.Host != "" {
		r.Header.Set("Host", r.Host)
	}

	key := PublicKeyDoc{ID: remote.KeyID, Owner: remote.KeyOwner, PublicKeyPem: remote.PublicKeyPem}
	if result := VerifyRequest(key, r.Method, r.URL.Path, r.Header, body); !result.OK {
		log.Warn("Inbox: signature verification failed", "actor", activity.Actor, "reason", result.Reason)
		return signatureErrorf("invalid signature: %s", result.Reason)
	}

	acc, err := ib.db.ReadAccountByUsername(username)
	if err != nil {
		return err
	}
	if acc == nil {
		return notFoundErrorf("no actor by that name")
	}

	switch activity.Type {
	case "Follow":
		return ib.handleFollow(ctx, acc, remote, body, activity)
	case "Like":
		return ib.handleLike(ctx, acc, remote, activity)
	case "Announce":
		return ib.handleAnnounce(ctx, acc, remote, activity)
	case "Create":
		return ib.handleCreate(ctx, activity)
	case "Undo":
		return ib.handleUndo(ctx, acc, activity)
	case "Delete":
		// Accepted and acknowledged, but deliberately without effect on
		// stored notes or actors.
		return nil
	default:
		return validationErrorf("unsupported activity type: %s", activity.Type)
	}
}

func (ib *Inbox) handleFollow(ctx context.Context, acc *domain.Account, remote *domain.RemoteActor, body []byte, activity Activity) error {
	target, ok := objectURI(activity.Object)
	if !ok {
		return validationErrorf("follow activity missing object")
	}
	if username, ok := ib.conf.LocalUsername(target); !ok || username != acc.Username {
		return validationErrorf("follow object does not match actor: %s", target)
	}

	// A duplicate Follow is a no-op; the edge stays in place either way.
	created, err := ib.db.CreateFollower(remote.Id, acc.Id)
	if err != nil {
		return err
	}
	if created {
		log.Info("Inbox: new follower", "follower", remote.Handle(), "actor", acc.Username)
	}

	// The edge is never rolled back on a failed Accept delivery; the
	// failure is reported as-is.
	if err := ib.deliverer.SendAccept(ctx, acc, remote, json.RawMessage(body)); err != nil {
		return fmt.Errorf("failed to deliver Accept: %w", err)
	}
	return nil
}

func (ib *Inbox) handleLike(ctx context.Context, acc *domain.Account, remote *domain.RemoteActor, activity Activity) error {
	note, err := ib.lookupNoteObject(activity.Object, "like")
	if err != nil {
		return err
	}
	return ib.db.AddLike(note.Id, remote.Id)
}

func (ib *Inbox) handleAnnounce(ctx context.Context, acc *domain.Account, remote *domain.RemoteActor, activity Activity) error {
	note, err := ib.lookupNoteObject(activity.Object, "announce")
	if err != nil {
		return err
	}
	return ib.db.AddAnnounce(note.Id, remote.Id)
}

func (ib *Inbox) lookupNoteObject(raw json.RawMessage, verb string) (*domain.Note, error) {
	target, ok := objectURI(raw)
	if !ok {
		return nil, validationErrorf("%s activity missing object", verb)
	}
	note, err := ib.db.ReadNoteByContentURL(target)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, notFoundErrorf("%s object is not a known note: %s", verb, target)
	}
	return note, nil
}

func (ib *Inbox) handleCreate(ctx context.Context, activity Activity) error {
	target, ok := objectURI(activity.Object)
	if !ok {
		return validationErrorf("create activity missing object id")
	}
	if ib.conf.IsLocalURI(target) {
		// An echo of our own content; nothing to do.
		return nil
	}
	_, err := ib.notes.UpsertRemote(ctx, target)
	return err
}

func (ib *Inbox) handleUndo(ctx context.Context, acc *domain.Account, activity Activity) error {
	var nested struct {
		Type   string          `json:"type"`
		Actor  string          `json:"actor"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(activity.Object, &nested); err != nil {
		return validationErrorf("undo activity object is not an activity")
	}

	switch nested.Type {
	case "Follow":
		target, ok := objectURI(nested.Object)
		if !ok {
			return validationErrorf("undo follow missing object")
		}
		if username, ok := ib.conf.LocalUsername(target); !ok || username != acc.Username {
			return validationErrorf("undo follow object does not match actor: %s", target)
		}
		remote, err := ib.db.ReadRemoteActorByURI(nested.Actor)
		if err != nil {
			return err
		}
		if remote == nil {
			return notFoundErrorf("unknown actor: %s", nested.Actor)
		}
		removed, err := ib.db.DeleteFollower(remote.Id, acc.Id)
		if err != nil {
			return err
		}
		if !removed {
			return notFoundErrorf("no follow from %s to undo", nested.Actor)
		}
		log.Info("Inbox: follower removed", "follower", remote.Handle(), "actor", acc.Username)
		return nil

	case "Like":
		return ib.undoNoteMark(nested.Actor, nested.Object, "like", ib.db.RemoveLike)

	case "Announce":
		return ib.undoNoteMark(nested.Actor, nested.Object, "announce", ib.db.RemoveAnnounce)

	default:
		return validationErrorf("unsupported undo type: %s", nested.Type)
	}
}

func (ib *Inbox) undoNoteMark(actorURI string, raw json.RawMessage, verb string, remove func(noteId, remoteId uuid.UUID) (bool, error)) error {
	note, err := ib.lookupNoteObject(raw, "undo "+verb)
	if err != nil {
		return err
	}
	remote, err := ib.db.ReadRemoteActorByURI(actorURI)
	if err != nil {
		return err
	}
	if remote == nil {
		return notFoundErrorf("unknown actor: %s", actorURI)
	}
	removed, err := remove(note.Id, remote.Id)
	if err != nil {
		return err
	}
	if !removed {
		return notFoundErrorf("no %s by %s to undo", verb, actorURI)
	}
	return nil
}
