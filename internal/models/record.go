// Package models provides data model definitions for the Diet Daily sync core.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ID is a wrapper around string for record identifier type safety.
// Locally created records carry a provisional id until the first
// successful sync remaps them to the remote-assigned id.
type ID string

// Value implements driver.Valuer for ID.
func (id ID) Value() (driver.Value, error) {
	return string(id), nil
}

// Scan implements sql.Scanner for ID.
func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*id = ""
	case string:
		*id = ID(v)
	case []byte:
		*id = ID(v)
	default:
		return fmt.Errorf("cannot scan %T into models.ID", value)
	}
	return nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Record represents one user-visible diary entry (a logged food or
// symptom event) together with its sync state.
//
// Payload is opaque domain data; the sync engine never inspects it.
// Owner, Name, Amount and OccurredAt are caller-supplied match metadata
// that the merge view uses for duplicate detection, so deduplication
// never has to look inside the payload either.
type Record struct {
	ID      ID              `db:"id" json:"id"`
	Payload json.RawMessage `db:"payload" json:"payload"`

	// Match metadata for the merge view.
	Owner      string  `db:"owner" json:"owner"`
	Name       string  `db:"name" json:"name"`
	Amount     float64 `db:"amount" json:"amount"`
	OccurredAt int64   `db:"occurred_at" json:"occurred_at"`

	// Sync state, mutated only by the store.
	Synced            bool   `db:"synced" json:"synced"`
	SyncAttempts      int    `db:"sync_attempts" json:"sync_attempts"`
	LastSyncAttemptAt int64  `db:"last_sync_attempt_at" json:"last_sync_attempt_at,omitempty"`
	LastError         string `db:"last_error" json:"last_error,omitempty"`

	CreatedAt int64 `db:"created_at" json:"created_at"`
	UpdatedAt int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Record.
func (Record) TableName() string {
	return "records"
}

// OccurredAtTime returns OccurredAt as time.Time.
func (r *Record) OccurredAtTime() time.Time {
	return time.Unix(r.OccurredAt, 0)
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (r *Record) UpdatedAtTime() time.Time {
	return time.Unix(r.UpdatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().Unix()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}
