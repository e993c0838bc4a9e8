package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RemoteActor is a cached, untrusted representation of a principal on another
// node. ActorURI is the canonical identity key; the profile document is kept
// verbatim alongside the extracted fields.
type RemoteActor struct {
	Id            uuid.UUID
	Username      string
	Domain        string
	ActorURI      string
	InboxURI      string
	KeyID         string
	KeyOwner      string
	PublicKeyPem  string
	ProfileJSON   string
	LastFetchedAt time.Time
}

func (ra *RemoteActor) Handle() string {
	return fmt.Sprintf("%s@%s", ra.Username, ra.Domain)
}
