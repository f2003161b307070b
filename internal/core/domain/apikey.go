package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApiKey is an opaque merchant credential. Only its salted hash is ever
// stored; the core never sees the plaintext key, only the merchant-id
// attribution resolved from it by the authentication collaborator.
type ApiKey struct {
	ID          uuid.UUID  `json:"id"`
	MerchantID  uuid.UUID  `json:"merchant_id"`
	HashedKey   string     `json:"-"` // "sha256:" + hex(SHA256(key))
	Permissions []string   `json:"permissions"`
	Active      bool       `json:"active"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasPermission reports whether the key carries the named permission.
func (k *ApiKey) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
