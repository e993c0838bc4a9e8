package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxDisplayDepth caps the rendered depth of a threaded note. Storage keeps
// the full ancestor chain; this is a presentation clamp only.
const MaxDisplayDepth = 5

// Note is a unit of threaded content. Exactly one of AccountId and
// RemoteActorId is set: local notes are authored through the content store,
// remote notes arrive via federation keyed by ContentURL.
type Note struct {
	Id            uuid.UUID
	AccountId     uuid.NullUUID
	RemoteActorId uuid.NullUUID
	Content       string
	ContentURL    string
	InReplyTo     string
	PublishedAt   time.Time
	UpdatedAt     time.Time
}

func (n *Note) IsLocal() bool {
	return n.AccountId.Valid
}

// ClampDepth maps an actual ancestor-chain depth to the depth used for
// rendering.
func ClampDepth(depth int) int {
	if depth > MaxDisplayDepth {
		return MaxDisplayDepth
	}
	return depth
}
