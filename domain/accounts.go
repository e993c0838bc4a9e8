package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Account is a local actor hosted by this node. The key pair is generated
// exactly once at creation and is never rotated.
type Account struct {
	Id            uuid.UUID
	Username      string
	DisplayName   string
	Summary       string
	PublicKeyPem  string
	PrivateKeyPem string
	CreatedAt     time.Time
}

func (acc *Account) Handle(domain string) string {
	return fmt.Sprintf("%s@%s", acc.Username, domain)
}
