package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/domain"
)

const (
	discoveryTimeout = 10 * time.Second
	userAgent        = "notabene/1.0 ActivityPub"

	actorCacheSize = 512
	actorCacheTTL  = time.Hour
)

// ErrNoProfile is returned when webfinger discovery succeeds but the
// response carries no usable activity profile link. This is a "handle has no
// fediverse presence" outcome, distinct from a transport failure.
var ErrNoProfile = errors.New("no activitypub profile link for handle")

// DiscoveryError wraps any transport or parse failure during actor
// resolution. Callers treat it as "actor unresolvable", never as fatal.
// StatusCode is set when the remote server answered with a non-2xx status.
type DiscoveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("discovery of %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("discovery of %s failed: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// actorDoc is the subset of a remote actor profile this node consumes.
type actorDoc struct {
	ID                string       `json:"id"`
	PreferredUsername string       `json:"preferredUsername"`
	Inbox             string       `json:"inbox"`
	PublicKey         PublicKeyDoc `json:"publicKey"`
}

type webfingerDoc struct {
	Links []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// Resolver performs actor discovery (webfinger, then profile fetch) and
// caches results. A bounded TTL cache sits in front of the remote actor
// table; the table itself is never refreshed on a schedule, so the
// first-seen key of an actor is trusted for the record's lifetime. That is
// the deliberate trust model, not an accident.
type Resolver struct {
	db     *db.DB
	client *resty.Client
	cache  *lru.LRU[string, *domain.RemoteActor]
}

func NewResolver(database *db.DB) *Resolver {
	client := resty.New().
		SetTimeout(discoveryTimeout).
		SetHeader("User-Agent", userAgent)

	return &Resolver{
		db:     database,
		client: client,
		cache:  lru.NewLRU[string, *domain.RemoteActor](actorCacheSize, nil, actorCacheTTL),
	}
}

// ResolveURI returns the remote actor with the given canonical profile URL,
// fetching and caching it on first reference.
func (r *Resolver) ResolveURI(ctx context.Context, actorURI string) (*domain.RemoteActor, error) {
	if cached, ok := r.cache.Get(actorURI); ok {
		return cached, nil
	}

	stored, err := r.db.ReadRemoteActorByURI(actorURI)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		r.cache.Add(actorURI, stored)
		return stored, nil
	}

	return r.fetchAndStore(ctx, actorURI)
}

// ResolveHandle discovers an actor from its user@domain handle via
// webfinger. Returns ErrNoProfile when the domain answers but advertises no
// activity profile link.
func (r *Resolver) ResolveHandle(ctx context.Context, username, domainName string) (*domain.RemoteActor, error) {
	stored, err := r.db.ReadRemoteActorByHandle(username, domainName)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}

	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger", domainName)
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/jrd+json").
		SetQueryParam("resource", fmt.Sprintf("acct:%s@%s", username, domainName)).
		Get(wfURL)
	if err != nil {
		return nil, &DiscoveryError{URL: wfURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &DiscoveryError{URL: wfURL, StatusCode: resp.StatusCode()}
	}

	var wf webfingerDoc
	if err := json.Unmarshal(resp.Body(), &wf); err != nil {
		return nil, &DiscoveryError{URL: wfURL, Err: err}
	}

	profileURL := ""
	for _, link := range wf.Links {
		if link.Rel == "self" && link.Type == ContentType {
			profileURL = link.Href
			break
		}
	}
	if profileURL == "" {
		return nil, ErrNoProfile
	}

	// The profile's own id may differ from the webfinger href; the document
	// id wins as the cache key, which ResolveURI takes care of.
	return r.ResolveURI(ctx, profileURL)
}

// FetchDocument fetches an arbitrary activity document (e.g. a remote note)
// with content negotiation. Failures come back as *DiscoveryError.
func (r *Resolver) FetchDocument(ctx context.Context, docURL string) ([]byte, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", ContentType).
		Get(docURL)
	if err != nil {
		return nil, &DiscoveryError{URL: docURL, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &DiscoveryError{URL: docURL, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

func (r *Resolver) fetchAndStore(ctx context.Context, actorURI string) (*domain.RemoteActor, error) {
	body, err := r.FetchDocument(ctx, actorURI)
	if err != nil {
		return nil, err
	}

	var doc actorDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DiscoveryError{URL: actorURI, Err: err}
	}
	if doc.ID == "" || doc.Inbox == "" || doc.PublicKey.PublicKeyPem == "" {
		return nil, &DiscoveryError{URL: actorURI, Err: errors.New("actor document missing required fields")}
	}

	parsed, err := url.Parse(doc.ID)
	if err != nil {
		return nil, &DiscoveryError{URL: actorURI, Err: err}
	}

	actor := &domain.RemoteActor{
		Id:            uuid.New(),
		Username:      doc.PreferredUsername,
		Domain:        parsed.Host,
		ActorURI:      doc.ID,
		InboxURI:      doc.Inbox,
		KeyID:         doc.PublicKey.ID,
		KeyOwner:      doc.PublicKey.Owner,
		PublicKeyPem:  doc.PublicKey.PublicKeyPem,
		ProfileJSON:   string(body),
		LastFetchedAt: time.Now(),
	}

	if err := r.db.UpsertRemoteActor(actor); err != nil {
		return nil, fmt.Errorf("failed to store remote actor: %w", err)
	}

	r.cache.Add(actor.ActorURI, actor)
	log.Debug("Resolved remote actor", "actor", actor.Handle(), "uri", actor.ActorURI)
	return actor, nil
}
