package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID string, used as the user_id partition key. ULIDs
// sort lexicographically by creation time.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
