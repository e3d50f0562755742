// Package store provides the durable local record set that backs the
// offline-first sync queue. Every user mutation lands here first,
// synchronously and regardless of connectivity; the reconciler later
// drains unsynced records toward the remote store.
package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/localid"
	"github.com/kimhsiao/dietdaily/internal/logging"
	"github.com/kimhsiao/dietdaily/internal/models"
)

// Persistence abstracts the durable medium behind the store so the
// storage backend (JSON file, SQLite, in-memory fake) is swappable.
// SaveAll always receives the full record set; durability is
// at-least-once and the merge view tolerates a crash between a remote
// write and the matching local save.
type Persistence interface {
	LoadAll() ([]*models.Record, error)
	SaveAll(records []*models.Record) error
}

// RetryPolicy bounds automatic sync retries per record.
// The backoff window is fixed, not exponential: with at most three
// attempts a minute apart there is nothing for an exponential curve to
// smooth out.
type RetryPolicy struct {
	MaxAttempts   int
	BackoffWindow time.Duration
}

// DefaultRetryPolicy returns the default policy: 3 attempts, 60s window.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BackoffWindow: time.Minute,
	}
}

// Meta carries the caller-supplied match metadata stored next to the
// opaque payload.
type Meta struct {
	Owner      string
	Name       string
	Amount     float64
	OccurredAt time.Time
}

// Patch describes a partial update to a record. Nil fields are left
// untouched.
type Patch struct {
	Payload    json.RawMessage
	Name       *string
	Amount     *float64
	OccurredAt *time.Time
}

// Stats summarizes the sync state of the record set.
type Stats struct {
	Total   int
	Synced  int
	Pending int // unsynced, still within the retry budget
	Failed  int // unsynced, terminal
}

// Store is the local record set. All mutation goes through its
// methods; records handed out are clones, so callers can never bypass
// the store's bookkeeping.
type Store struct {
	mu      sync.RWMutex
	records []*models.Record // insertion order; drain order follows it
	index   map[models.ID]*models.Record
	policy  RetryPolicy
	persist Persistence
	now     func() time.Time
}

// New creates a Store backed by the given persistence, loading any
// previously saved records.
func New(persist Persistence, policy RetryPolicy) (*Store, error) {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	records, err := persist.LoadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to load records", err)
	}

	s := &Store{
		records: records,
		index:   make(map[models.ID]*models.Record, len(records)),
		policy:  policy,
		persist: persist,
		now:     time.Now,
	}
	for _, r := range records {
		s.index[r.ID] = r
	}
	return s, nil
}

// Policy returns the store's retry policy.
func (s *Store) Policy() RetryPolicy {
	return s.policy
}

// Add appends a new unsynced record with a fresh local id. It is
// synchronous and never fails: a persistence error is logged and the
// record stays queued in memory, to be flushed by the next mutation.
func (s *Store) Add(payload json.RawMessage, meta Meta) *models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	occurred := meta.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}

	rec := &models.Record{
		ID:         models.ID(localid.New()),
		Payload:    append(json.RawMessage(nil), payload...),
		Owner:      meta.Owner,
		Name:       meta.Name,
		Amount:     meta.Amount,
		OccurredAt: occurred.Unix(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.records = append(s.records, rec)
	s.index[rec.ID] = rec
	s.flush()

	return rec.Clone()
}

// Update applies a patch to a record. Returns NOT_FOUND if no record
// has the given id.
func (s *Store) Update(id models.ID, patch Patch) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[id]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "record not found: "+id.String())
	}

	if patch.Payload != nil {
		rec.Payload = append(json.RawMessage(nil), patch.Payload...)
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Amount != nil {
		rec.Amount = *patch.Amount
	}
	if patch.OccurredAt != nil {
		rec.OccurredAt = patch.OccurredAt.Unix()
	}
	rec.UpdatedAt = s.now().Unix()
	s.flush()

	return rec.Clone(), nil
}

// Delete removes a record entirely. Returns false if the id is
// unknown.
func (s *Store) Delete(id models.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.flush()
	return true
}

// Get returns a clone of the record with the given id.
func (s *Store) Get(id models.ID) (*models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// ListAll returns clones of every record in insertion order.
func (s *Store) ListAll() []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out
}

// ListPending returns clones of every unsynced record in insertion
// order, terminal ones included; the reconciler filters by
// EligibleForRetry per pass.
func (s *Store) ListPending() []*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for _, r := range s.records {
		if !r.Synced {
			out = append(out, r.Clone())
		}
	}
	return out
}

// MarkSynced flags a record as confirmed by the remote store. When the
// remote assigned a different id, the record is remapped so all future
// lookups use the remote id; payload and timestamps are preserved.
func (s *Store) MarkSynced(localID, remoteID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[localID]
	if !ok {
		return errors.New(errors.ErrNotFound, "record not found: "+localID.String())
	}

	rec.Synced = true
	rec.LastError = ""
	rec.UpdatedAt = s.now().Unix()

	if remoteID != "" && remoteID != localID {
		delete(s.index, localID)
		rec.ID = remoteID
		s.index[remoteID] = rec
	}
	s.flush()
	return nil
}

// IncrementAttempt records one failed sync attempt: bumps the counter
// and stamps the attempt time that the backoff window measures from.
func (s *Store) IncrementAttempt(id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "record not found: "+id.String())
	}

	rec.SyncAttempts++
	rec.LastSyncAttemptAt = s.now().Unix()
	rec.UpdatedAt = s.now().Unix()
	s.flush()
	return nil
}

// SetLastError records the most recent failure reason so a terminal
// record stays inspectable.
func (s *Store) SetLastError(id models.ID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "record not found: "+id.String())
	}

	rec.LastError = message
	s.flush()
	return nil
}

// MarkFailed moves a record into the terminal failed state: the
// attempt counter saturates at the retry budget so EligibleForRetry
// stays false forever, but the record and its failure reason remain in
// local history.
func (s *Store) MarkFailed(id models.ID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.index[id]
	if !ok {
		return errors.New(errors.ErrNotFound, "record not found: "+id.String())
	}

	if rec.SyncAttempts < s.policy.MaxAttempts {
		rec.SyncAttempts = s.policy.MaxAttempts
	}
	rec.LastSyncAttemptAt = s.now().Unix()
	rec.LastError = message
	rec.UpdatedAt = s.now().Unix()
	s.flush()
	return nil
}

// EligibleForRetry reports whether a record may be attempted this
// pass: unsynced, attempts below the budget, and either never tried or
// outside the backoff window.
func (s *Store) EligibleForRetry(rec *models.Record) bool {
	if rec.Synced {
		return false
	}
	if rec.SyncAttempts >= s.policy.MaxAttempts {
		return false
	}
	if rec.LastSyncAttemptAt == 0 {
		return true
	}
	return s.now().Sub(time.Unix(rec.LastSyncAttemptAt, 0)) >= s.policy.BackoffWindow
}

// ResetFailed returns every terminal record to the pending state with
// a fresh retry budget. Explicit user escalation; never automatic.
func (s *Store) ResetFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, rec := range s.records {
		if rec.Synced || rec.SyncAttempts < s.policy.MaxAttempts {
			continue
		}
		rec.SyncAttempts = 0
		rec.LastSyncAttemptAt = 0
		rec.LastError = ""
		rec.UpdatedAt = s.now().Unix()
		count++
	}
	if count > 0 {
		s.flush()
		logging.Info("Reset failed records for retry", map[string]interface{}{"count": count})
	}
	return count
}

// Stats returns the current sync-state counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Total: len(s.records)}
	for _, rec := range s.records {
		switch {
		case rec.Synced:
			stats.Synced++
		case rec.SyncAttempts >= s.policy.MaxAttempts:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	return stats
}

// Export serializes the full record set for backup.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.records, "", "  ")
}

// Import replaces the record set with a previously exported backup.
func (s *Store) Import(data []byte) error {
	var records []*models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(errors.ErrInvalid, "invalid backup data", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = records
	s.index = make(map[models.ID]*models.Record, len(records))
	for _, r := range records {
		s.index[r.ID] = r
	}
	s.flush()
	return nil
}

// flush persists the full record set. Persistence failures are logged,
// not returned: local mutations must stay synchronous and infallible,
// and the merge view's dedup absorbs a store that lags the remote.
// Callers hold s.mu.
func (s *Store) flush() {
	if err := s.persist.SaveAll(s.records); err != nil {
		logging.Error("Failed to persist record set", err,
			map[string]interface{}{"records": len(s.records)})
	}
}
