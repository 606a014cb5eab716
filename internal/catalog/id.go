package catalog

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// DeriveID computes the 128-bit identifier for a stable string key.
// The identifier is a pure function of the key: recomputing it from the same
// input always yields the same value, which is what makes upserts idempotent.
func DeriveID(key string) uuid.UUID {
	sum := md5.Sum([]byte(key))
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		// md5.Sum always yields 16 bytes; FromBytes cannot fail on it.
		panic(err)
	}
	return id
}
