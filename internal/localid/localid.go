// Package localid generates provisional record identifiers that are
// unique without a server round-trip. Ids are built from the creation
// timestamp plus a random suffix and stay stable until the record is
// confirmed synced, at which point the store remaps them to the
// remote-assigned id.
package localid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix marks an id as locally assigned.
const Prefix = "local_"

// New generates a fresh local id: local_<unix-millis>_<random-suffix>.
func New() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return Prefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + suffix
}

// IsLocal reports whether an id was assigned locally, i.e. the record
// it names has never been confirmed by the remote store.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// CreatedAt extracts the creation timestamp embedded in a local id.
// Returns the zero time if the id is not a well-formed local id.
func CreatedAt(id string) time.Time {
	if !IsLocal(id) {
		return time.Time{}
	}
	parts := strings.SplitN(strings.TrimPrefix(id, Prefix), "_", 2)
	if len(parts) != 2 {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}
