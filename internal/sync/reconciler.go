// Package sync drains the pending local record set to the remote
// store.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/kimhsiao/dietdaily/internal/crypto"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/logging"
	"github.com/kimhsiao/dietdaily/internal/models"
	"github.com/kimhsiao/dietdaily/internal/remote"
	"github.com/kimhsiao/dietdaily/internal/store"
)

// Result summarizes one drain pass.
type Result struct {
	Success  int
	Failed   int
	Skipped  int // ineligible records left for a later pass
	Errors   []string
	Duration time.Duration
}

// Reconciler pushes pending records upstream one at a time. A single
// drain runs at any moment; overlapping calls return immediately.
type Reconciler struct {
	store  *store.Store
	remote remote.Store
	cipher crypto.Cipher

	mu         gosync.Mutex
	inProgress bool
	lastSyncAt *time.Time
	lastErr    string
}

// New creates a Reconciler. A nil cipher disables payload encryption.
func New(st *store.Store, rem remote.Store, cipher crypto.Cipher) *Reconciler {
	if cipher == nil {
		cipher = crypto.Noop{}
	}
	return &Reconciler{
		store:  st,
		remote: rem,
		cipher: cipher,
	}
}

// InProgress reports whether a drain is currently running.
func (r *Reconciler) InProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inProgress
}

// Drain uploads every eligible pending record. Each record succeeds or
// fails on its own; one rejected payload never blocks the rest. When a
// drain is already running the call returns an empty result without
// touching the queue.
func (r *Reconciler) Drain(ctx context.Context) *Result {
	r.mu.Lock()
	if r.inProgress {
		r.mu.Unlock()
		logging.Debug("sync already in progress, skipping drain", nil)
		return &Result{}
	}
	r.inProgress = true
	r.mu.Unlock()

	start := time.Now()
	result := &Result{}

	defer func() {
		result.Duration = time.Since(start)

		r.mu.Lock()
		r.inProgress = false
		now := time.Now()
		r.lastSyncAt = &now
		if len(result.Errors) > 0 {
			r.lastErr = result.Errors[len(result.Errors)-1]
		} else {
			r.lastErr = ""
		}
		r.mu.Unlock()

		logging.Info("drain finished", map[string]interface{}{
			"success": result.Success,
			"failed":  result.Failed,
			"skipped": result.Skipped,
		})
	}()

	pending := r.store.ListPending()
	if len(pending) == 0 {
		return result
	}
	logging.Info("draining pending records", map[string]interface{}{"count": len(pending)})

	for _, rec := range pending {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "drain cancelled: "+ctx.Err().Error())
			break
		}
		if !r.store.EligibleForRetry(rec) {
			result.Skipped++
			continue
		}
		if err := r.push(ctx, rec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, rec.ID.String()+": "+err.Error())
			continue
		}
		result.Success++
	}
	return result
}

// push uploads one record and records the outcome in the store.
func (r *Reconciler) push(ctx context.Context, rec *models.Record) error {
	sealed, err := crypto.SealPayload(r.cipher, rec.Payload)
	if err != nil {
		wrapped := errors.Wrap(errors.ErrEncryption, "failed to encrypt payload", err)
		r.store.MarkFailed(rec.ID, wrapped.Error())
		logging.ErrorWithCode("record encryption failed", string(errors.ErrEncryption), err,
			map[string]interface{}{"record_id": rec.ID.String()})
		return wrapped
	}

	remoteID, err := r.remote.Create(ctx, &remote.Record{
		ID:         rec.ID,
		Payload:    sealed,
		Owner:      rec.Owner,
		Name:       rec.Name,
		Amount:     rec.Amount,
		OccurredAt: rec.OccurredAt,
		UpdatedAt:  rec.UpdatedAt,
	})
	if err != nil {
		if errors.Retryable(err) {
			r.store.IncrementAttempt(rec.ID)
			r.store.SetLastError(rec.ID, err.Error())
			logging.Warn("record upload failed, will retry", map[string]interface{}{
				"record_id": rec.ID.String(),
				"error":     err.Error(),
			})
		} else {
			r.store.MarkFailed(rec.ID, err.Error())
			logging.ErrorWithCode("record rejected by remote", string(errors.Code(err)), err,
				map[string]interface{}{"record_id": rec.ID.String()})
		}
		return err
	}

	if err := r.store.MarkSynced(rec.ID, remoteID); err != nil {
		// The record vanished mid-drain, most likely deleted by the
		// user. The remote copy stays; merge will surface it.
		logging.Warn("synced record no longer in local store", map[string]interface{}{
			"record_id": rec.ID.String(),
		})
	}
	return nil
}

// Status derives the current sync snapshot from the store and drain
// state.
func (r *Reconciler) Status(online bool) models.SyncStatus {
	stats := r.store.Stats()

	r.mu.Lock()
	defer r.mu.Unlock()
	return models.SyncStatus{
		IsOnline:       online,
		SyncInProgress: r.inProgress,
		LastSyncAt:     r.lastSyncAt,
		PendingCount:   stats.Pending,
		FailedCount:    stats.Failed,
		TotalCount:     stats.Total,
		LastError:      r.lastErr,
	}
}
