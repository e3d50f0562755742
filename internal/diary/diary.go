// Package diary is the public surface of the offline-first record
// engine. It wires the local store, the reconciler, the scheduler and
// the merge view behind one service.
package diary

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/crypto"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/logging"
	"github.com/kimhsiao/dietdaily/internal/merge"
	"github.com/kimhsiao/dietdaily/internal/models"
	"github.com/kimhsiao/dietdaily/internal/remote"
	"github.com/kimhsiao/dietdaily/internal/store"
	syncpkg "github.com/kimhsiao/dietdaily/internal/sync"
	"github.com/kimhsiao/dietdaily/internal/sync/scheduler"
)

// Options configures a Service.
type Options struct {
	Store       *store.Store
	Remote      remote.Store
	Cipher      crypto.Cipher
	Monitor     connectivity.Monitor
	MergePolicy merge.Policy
	Scheduler   *scheduler.Config
}

// Service owns the sync pipeline. Writes land locally first and are
// pushed to the remote in the background; reads merge both sides.
type Service struct {
	store      *store.Store
	remote     remote.Store
	cipher     crypto.Cipher
	monitor    connectivity.Monitor
	reconciler *syncpkg.Reconciler
	scheduler  *scheduler.Scheduler
	view       *merge.View
}

// New assembles a Service from its parts. Store, Remote and Monitor
// are required; a nil Cipher disables payload encryption.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Remote == nil || opts.Monitor == nil {
		return nil, errors.New(errors.ErrInvalid, "store, remote and connectivity monitor are required")
	}
	cipher := opts.Cipher
	if cipher == nil {
		cipher = crypto.Noop{}
	}

	reconciler := syncpkg.New(opts.Store, opts.Remote, cipher)
	return &Service{
		store:      opts.Store,
		remote:     opts.Remote,
		cipher:     cipher,
		monitor:    opts.Monitor,
		reconciler: reconciler,
		scheduler:  scheduler.New(reconciler, opts.Monitor, opts.Scheduler),
		view:       merge.New(opts.MergePolicy),
	}, nil
}

// Start launches background syncing.
func (s *Service) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
}

// Close stops background syncing. Pending records stay in the store
// for the next start.
func (s *Service) Close() {
	s.scheduler.Stop()
}

// AddRecord saves a record locally and never fails: offline writes are
// the whole point. The record syncs in the background.
func (s *Service) AddRecord(payload json.RawMessage, meta store.Meta) *models.Record {
	rec := s.store.Add(payload, meta)

	// An online add syncs right away rather than waiting for the timer.
	if s.monitor.Online() {
		go s.reconciler.Drain(context.Background())
	}
	return rec
}

// UpdateRecord patches a local record.
func (s *Service) UpdateRecord(id models.ID, patch store.Patch) (*models.Record, error) {
	return s.store.Update(id, patch)
}

// DeleteRecord removes a record locally. A synced record is also
// deleted upstream on a best-effort basis; an offline or failed remote
// delete only logs, the local removal stands.
func (s *Service) DeleteRecord(ctx context.Context, id models.ID) bool {
	rec, ok := s.store.Get(id)
	if !ok {
		return false
	}
	deleted := s.store.Delete(id)

	if deleted && rec.Synced && s.monitor.Online() {
		if _, err := s.remote.Delete(ctx, id); err != nil {
			logging.Warn("remote delete failed, record removed locally only", map[string]interface{}{
				"record_id": id.String(),
				"error":     err.Error(),
			})
		}
	}
	return deleted
}

// MergedView returns the deduplicated union of local and remote
// records for an owner within a time range. When the remote cannot be
// reached the view degrades to local records only.
func (s *Service) MergedView(ctx context.Context, owner string, from, to time.Time) ([]*models.Record, error) {
	local := s.filterLocal(owner, from, to)

	if !s.monitor.Online() {
		return s.view.Merge(local, nil), nil
	}

	remoteRecs, err := s.remote.List(ctx, owner, rangeBound(from), rangeBound(to))
	if err != nil {
		logging.Warn("remote list failed, serving local view", map[string]interface{}{
			"error": err.Error(),
		})
		return s.view.Merge(local, nil), nil
	}

	for _, r := range remoteRecs {
		opened, err := crypto.OpenPayload(s.cipher, r.Payload)
		if err != nil {
			logging.Warn("failed to open remote payload", map[string]interface{}{
				"record_id": r.ID.String(),
			})
			continue
		}
		r.Payload = opened
	}

	return s.view.Merge(local, remoteRecs), nil
}

// ForceSyncNow drains the pending set immediately. Offline calls fail
// fast with an OFFLINE error.
func (s *Service) ForceSyncNow(ctx context.Context) (*syncpkg.Result, error) {
	return s.scheduler.ForceSyncNow(ctx)
}

// Status returns the current sync snapshot.
func (s *Service) Status() models.SyncStatus {
	return s.reconciler.Status(s.monitor.Online())
}

// ResetFailed returns terminally failed records to the pending state.
func (s *Service) ResetFailed() int {
	return s.store.ResetFailed()
}

// Export serializes every local record for backup.
func (s *Service) Export() ([]byte, error) {
	return s.store.Export()
}

// Import replaces the local record set from a backup.
func (s *Service) Import(data []byte) error {
	return s.store.Import(data)
}

func (s *Service) filterLocal(owner string, from, to time.Time) []*models.Record {
	all := s.store.ListAll()
	filtered := all[:0:0]
	for _, rec := range all {
		if owner != "" && rec.Owner != owner {
			continue
		}
		occurred := rec.OccurredAtTime()
		if !from.IsZero() && occurred.Before(from) {
			continue
		}
		if !to.IsZero() && occurred.After(to) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func rangeBound(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
