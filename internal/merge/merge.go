// Package merge combines local and remote records into a single
// deduplicated view. The merge is a pure read path: it never mutates
// the local record set.
package merge

import (
	"math"
	"sort"
	"time"

	"github.com/kimhsiao/dietdaily/internal/models"
	"github.com/kimhsiao/dietdaily/internal/remote"
)

// Policy controls when an unsynced local record and a remote record
// are treated as the same entry. The fuzzy match covers the crash
// window where a record reached the remote but the local synced flag
// was never written.
type Policy struct {
	Window          time.Duration // max timestamp drift between copies
	AmountTolerance float64
}

// DefaultPolicy returns the standard match tolerances.
func DefaultPolicy() Policy {
	return Policy{
		Window:          time.Minute,
		AmountTolerance: 0.01,
	}
}

// View merges record sets under a fixed policy.
type View struct {
	policy Policy
}

// New creates a View. Zero policy fields fall back to the defaults.
func New(policy Policy) *View {
	def := DefaultPolicy()
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if policy.AmountTolerance <= 0 {
		policy.AmountTolerance = def.AmountTolerance
	}
	return &View{policy: policy}
}

// Policy returns the active match tolerances.
func (v *View) Policy() Policy {
	return v.policy
}

// Merge combines local and remote records. Duplicates collapse to one
// entry: exact id matches first, then fuzzy matches on owner, name,
// timestamp and amount. The result is sorted newest first.
func (v *View) Merge(local []*models.Record, remoteRecs []*remote.Record) []*models.Record {
	remoteByID := make(map[models.ID]*remote.Record, len(remoteRecs))
	consumed := make(map[models.ID]bool, len(remoteRecs))
	for _, r := range remoteRecs {
		remoteByID[r.ID] = r
	}

	var out []*models.Record
	for _, l := range local {
		if r, ok := remoteByID[l.ID]; ok && !consumed[r.ID] {
			consumed[r.ID] = true
			// Same record on both sides; keep the fresher copy.
			if l.UpdatedAt >= r.UpdatedAt {
				out = append(out, l.Clone())
			} else {
				out = append(out, fromRemote(r))
			}
			continue
		}

		if l.Synced {
			out = append(out, l.Clone())
			continue
		}

		if r := v.fuzzyMatch(l, remoteRecs, consumed); r != nil {
			// The remote already holds this entry; show the remote
			// copy since it carries the canonical id.
			consumed[r.ID] = true
			out = append(out, fromRemote(r))
			continue
		}

		out = append(out, l.Clone())
	}

	for _, r := range remoteRecs {
		if !consumed[r.ID] {
			out = append(out, fromRemote(r))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt != out[j].OccurredAt {
			return out[i].OccurredAt > out[j].OccurredAt
		}
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

// fuzzyMatch finds an unconsumed remote record that looks like the
// same entry as the given unsynced local record.
func (v *View) fuzzyMatch(l *models.Record, remoteRecs []*remote.Record, consumed map[models.ID]bool) *remote.Record {
	for _, r := range remoteRecs {
		if consumed[r.ID] {
			continue
		}
		if r.Owner != l.Owner || r.Name != l.Name {
			continue
		}
		drift := time.Duration(abs64(r.OccurredAt-l.OccurredAt)) * time.Second
		if drift > v.policy.Window {
			continue
		}
		if math.Abs(r.Amount-l.Amount) > v.policy.AmountTolerance {
			continue
		}
		return r
	}
	return nil
}

func fromRemote(r *remote.Record) *models.Record {
	return &models.Record{
		ID:         r.ID,
		Payload:    r.Payload,
		Owner:      r.Owner,
		Name:       r.Name,
		Amount:     r.Amount,
		OccurredAt: r.OccurredAt,
		UpdatedAt:  r.UpdatedAt,
		Synced:     true,
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
