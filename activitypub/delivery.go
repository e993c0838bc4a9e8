package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/notabene-social/notabene/db"
	"github.com/notabene-social/notabene/domain"
	"github.com/notabene-social/notabene/util"
	"golang.org/x/sync/errgroup"
)

const (
	// Deliveries are synchronous and best-effort: a failed recipient is
	// reported, never retried.
	deliveryTimeout   = 15 * time.Second
	fanOutConcurrency = 5
)

// Deliverer sends signed activities to remote inboxes.
type Deliverer struct {
	db     *db.DB
	conf   *util.AppConfig
	client *http.Client
}

func NewDeliverer(database *db.DB, conf *util.AppConfig) *Deliverer {
	return &Deliverer{
		db:     database,
		conf:   conf,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// Deliver signs the activity with the account's private key and posts it to
// the given inbox. A non-2xx response is an error; nothing is queued or
// retried.
func (d *Deliverer) Deliver(ctx context.Context, activity any, inboxURI string, acc *domain.Account) error {
	activityJSON, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	parsed, err := url.Parse(inboxURI)
	if err != nil {
		return fmt.Errorf("invalid inbox URI %q: %w", inboxURI, err)
	}

	privateKey, err := ParsePrivateKey(acc.PrivateKeyPem)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	headers, err := SignHeaders(privateKey, d.conf.KeyID(acc.Username), http.MethodPost, parsed.Path, parsed.Host, activityJSON)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inboxURI, bytes.NewReader(activityJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range headers {
		req.Header[name] = values
	}
	req.Header.Set("User-Agent", userAgent)
	req.Host = parsed.Host

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery to %s failed: %w", inboxURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery to %s failed: remote returned status %d", inboxURI, resp.StatusCode)
	}

	return nil
}

// FanOut delivers the activity to every current follower of the account.
// Recipients fail independently: one unreachable server never aborts the
// sweep. All failures are aggregated into the returned error.
func (d *Deliverer) FanOut(ctx context.Context, acc *domain.Account, activity any) error {
	followers, err := d.db.ReadAllFollowers(acc.Id)
	if err != nil {
		return fmt.Errorf("failed to enumerate followers: %w", err)
	}
	if len(followers) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		failures []error
	)

	g := &errgroup.Group{}
	g.SetLimit(fanOutConcurrency)

	for _, follower := range followers {
		g.Go(func() error {
			if err := d.Deliver(ctx, activity, follower.InboxURI, acc); err != nil {
				log.Warn("Fan-out delivery failed", "inbox", follower.InboxURI, "err", err)
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	if len(failures) > 0 {
		log.Warn("Fan-out finished with failures", "actor", acc.Username, "total", len(followers), "failed", len(failures))
	}
	return errors.Join(failures...)
}

// SendAccept replies to a Follow with a signed Accept referencing the
// original activity, delivered to the follower's inbox.
func (d *Deliverer) SendAccept(ctx context.Context, acc *domain.Account, remote *domain.RemoteActor, followActivity json.RawMessage) error {
	accept := map[string]any{
		"@context": []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		"id":     fmt.Sprintf("%s/%s", d.conf.BaseURI(), uuid.New().String()),
		"type":   "Accept",
		"actor":  d.conf.ActorURI(acc.Username),
		"object": followActivity,
	}

	return d.Deliver(ctx, accept, remote.InboxURI, acc)
}
