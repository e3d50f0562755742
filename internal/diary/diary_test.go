package diary

import (
	"context"
	"encoding/json"
	gosync "sync"
	"testing"
	"time"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/crypto"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/models"
	"github.com/kimhsiao/dietdaily/internal/remote"
	"github.com/kimhsiao/dietdaily/internal/store"
)

// memoryRemote keeps uploaded records in memory and serves them back
// on List, like a well-behaved backend.
type memoryRemote struct {
	mu      gosync.Mutex
	records []*remote.Record
	nextID  int
	deleted []models.ID
	listErr error
}

func (f *memoryRemote) Create(ctx context.Context, rec *remote.Record) (models.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *rec
	stored.ID = models.ID("srv-" + string(rune('a'+f.nextID-1)))
	f.records = append(f.records, &stored)
	return stored.ID, nil
}

func (f *memoryRemote) List(ctx context.Context, owner string, from, to int64) ([]*remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*remote.Record, len(f.records))
	for i, r := range f.records {
		clone := *r
		out[i] = &clone
	}
	return out, nil
}

func (f *memoryRemote) Delete(ctx context.Context, id models.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return true, nil
}

func newTestService(t *testing.T, online bool) (*Service, *store.Store, *memoryRemote, *connectivity.Manual) {
	t.Helper()

	st, err := store.New(store.NewMemory(), store.RetryPolicy{MaxAttempts: 3, BackoffWindow: 0})
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	rem := &memoryRemote{}
	monitor := connectivity.NewManual(online)

	svc, err := New(Options{
		Store:   st,
		Remote:  rem,
		Monitor: monitor,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, st, rem, monitor
}

func meta(name string, occurredAt time.Time) store.Meta {
	return store.Meta{Owner: "user-1", Name: name, Amount: 1, OccurredAt: occurredAt}
}

func payload(name string) json.RawMessage {
	p, _ := json.Marshal(map[string]string{"food_name": name})
	return p
}

// TestNewValidation tests required dependencies.
func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	if !errors.Is(err, errors.ErrInvalid) {
		t.Errorf("Expected INVALID_INPUT, got %v", err)
	}
}

// TestAddRecordOffline tests that offline adds land locally without
// touching the network.
func TestAddRecordOffline(t *testing.T) {
	svc, st, rem, _ := newTestService(t, false)

	rec := svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))
	if rec == nil {
		t.Fatal("Expected a record")
	}
	if len(st.ListPending()) != 1 {
		t.Errorf("Expected 1 pending record, got %d", len(st.ListPending()))
	}
	if len(rem.records) != 0 {
		t.Error("Expected no network traffic while offline")
	}
}

// TestAddRecordOnline tests the eager drain after an online add.
func TestAddRecordOnline(t *testing.T) {
	svc, st, rem, _ := newTestService(t, true)

	svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rem.mu.Lock()
		n := len(rem.records)
		rem.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	rem.mu.Lock()
	uploaded := len(rem.records)
	rem.mu.Unlock()
	if uploaded != 1 {
		t.Fatalf("Expected eager upload, got %d", uploaded)
	}
	if pending := len(st.ListPending()); pending != 0 {
		t.Errorf("Expected empty pending set, got %d", pending)
	}
}

// TestMergedViewOffline tests the degraded local-only view.
func TestMergedViewOffline(t *testing.T) {
	svc, _, _, _ := newTestService(t, false)
	svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))

	view, err := svc.MergedView(context.Background(), "user-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("MergedView() error = %v", err)
	}
	if len(view) != 1 || view[0].Name != "oatmeal" {
		t.Errorf("Unexpected view: %+v", view)
	}
}

// TestMergedViewRemoteFailure tests that a failing remote degrades to
// the local view instead of erroring.
func TestMergedViewRemoteFailure(t *testing.T) {
	svc, _, rem, _ := newTestService(t, true)
	rem.listErr = errors.New(errors.ErrNetwork, "remote 503")

	svc.store.Add(payload("oatmeal"), meta("oatmeal", time.Now()))

	view, err := svc.MergedView(context.Background(), "user-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("MergedView() error = %v", err)
	}
	if len(view) != 1 {
		t.Errorf("Expected local fallback view, got %d entries", len(view))
	}
}

// TestMergedViewEffectivelyOnce tests the full pipeline: a record
// uploaded and remapped shows up exactly once, and a crash duplicate
// collapses through the fuzzy match.
func TestMergedViewEffectivelyOnce(t *testing.T) {
	svc, st, rem, _ := newTestService(t, true)
	now := time.Now()

	// Synced record present on both sides under the remote id.
	st.Add(payload("oatmeal"), meta("oatmeal", now))
	if _, err := svc.ForceSyncNow(context.Background()); err != nil {
		t.Fatalf("ForceSyncNow() error = %v", err)
	}

	// Crash duplicate: the upload reached the remote but the synced
	// flag write was lost, leaving an unsynced local twin.
	rem.mu.Lock()
	rem.records = append(rem.records, &remote.Record{
		ID:         "srv-crash",
		Owner:      "user-1",
		Name:       "toast",
		Amount:     1,
		OccurredAt: now.Add(-time.Hour).Unix(),
		UpdatedAt:  now.Add(-time.Hour).Unix(),
		Payload:    payload("toast"),
	})
	rem.mu.Unlock()
	st.Add(payload("toast"), store.Meta{
		Owner: "user-1", Name: "toast", Amount: 1,
		OccurredAt: now.Add(-time.Hour).Add(10 * time.Second),
	})

	view, err := svc.MergedView(context.Background(), "user-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("MergedView() error = %v", err)
	}

	if len(view) != 2 {
		for _, e := range view {
			t.Logf("entry: %s %s", e.ID, e.Name)
		}
		t.Fatalf("Expected 2 deduplicated entries, got %d", len(view))
	}
	if view[0].Name != "oatmeal" || view[1].Name != "toast" {
		t.Errorf("Expected newest-first [oatmeal toast], got [%s %s]", view[0].Name, view[1].Name)
	}
	if view[1].ID != "srv-crash" {
		t.Errorf("Expected crash duplicate to collapse onto the remote id, got %s", view[1].ID)
	}
}

// TestMergedViewDecrypts tests that sealed remote payloads come back
// readable.
func TestMergedViewDecrypts(t *testing.T) {
	cipher, err := crypto.NewAESCipher("passphrase")
	if err != nil {
		t.Fatalf("NewAESCipher() error = %v", err)
	}

	st, _ := store.New(store.NewMemory(), store.DefaultRetryPolicy())
	rem := &memoryRemote{}
	monitor := connectivity.NewManual(true)
	svc, err := New(Options{Store: st, Remote: rem, Monitor: monitor, Cipher: cipher})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st.Add(payload("oatmeal"), meta("oatmeal", time.Now()))
	if _, err := svc.ForceSyncNow(context.Background()); err != nil {
		t.Fatalf("ForceSyncNow() error = %v", err)
	}

	// Drop the local copy so the view must come from the sealed remote
	// record.
	st.Delete(st.ListAll()[0].ID)

	view, err := svc.MergedView(context.Background(), "user-1", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("MergedView() error = %v", err)
	}
	if len(view) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(view))
	}

	var body map[string]string
	if err := json.Unmarshal(view[0].Payload, &body); err != nil || body["food_name"] != "oatmeal" {
		t.Errorf("Expected decrypted payload, got %s", view[0].Payload)
	}
}

// TestMergedViewRange tests owner and time filtering of local records.
func TestMergedViewRange(t *testing.T) {
	svc, st, _, _ := newTestService(t, false)
	now := time.Now()

	st.Add(payload("old"), meta("old", now.Add(-48*time.Hour)))
	st.Add(payload("recent"), meta("recent", now))
	other := meta("foreign", now)
	other.Owner = "user-2"
	st.Add(payload("foreign"), other)

	view, err := svc.MergedView(context.Background(), "user-1", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("MergedView() error = %v", err)
	}
	if len(view) != 1 || view[0].Name != "recent" {
		t.Errorf("Unexpected view: %+v", view)
	}
}

// TestDeleteRecord tests local removal plus the best-effort remote
// delete for synced records.
func TestDeleteRecord(t *testing.T) {
	svc, st, rem, _ := newTestService(t, true)

	rec := st.Add(payload("oatmeal"), meta("oatmeal", time.Now()))
	if _, err := svc.ForceSyncNow(context.Background()); err != nil {
		t.Fatalf("ForceSyncNow() error = %v", err)
	}
	synced := st.ListAll()[0]
	if synced.ID == rec.ID {
		t.Fatal("Expected id remap before delete")
	}

	if !svc.DeleteRecord(context.Background(), synced.ID) {
		t.Fatal("Expected delete to succeed")
	}
	if len(st.ListAll()) != 0 {
		t.Error("Expected empty store")
	}
	if len(rem.deleted) != 1 || rem.deleted[0] != synced.ID {
		t.Errorf("Expected remote delete of %s, got %v", synced.ID, rem.deleted)
	}

	if svc.DeleteRecord(context.Background(), "missing") {
		t.Error("Expected delete of unknown id to fail")
	}
}

// TestDeleteRecordOffline tests that unsynced offline deletes never
// touch the remote.
func TestDeleteRecordOffline(t *testing.T) {
	svc, _, rem, _ := newTestService(t, false)

	rec := svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))
	if !svc.DeleteRecord(context.Background(), rec.ID) {
		t.Fatal("Expected delete to succeed")
	}
	if len(rem.deleted) != 0 {
		t.Error("Expected no remote delete for an unsynced record")
	}
}

// TestStatus tests the public status snapshot.
func TestStatus(t *testing.T) {
	svc, _, _, monitor := newTestService(t, false)

	svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))

	status := svc.Status()
	if status.IsOnline || status.PendingCount != 1 {
		t.Errorf("Unexpected status: %+v", status)
	}

	monitor.SetOnline(true)
	if _, err := svc.ForceSyncNow(context.Background()); err != nil {
		t.Fatalf("ForceSyncNow() error = %v", err)
	}

	status = svc.Status()
	if !status.IsOnline || status.PendingCount != 0 || status.LastSyncAt == nil {
		t.Errorf("Unexpected status: %+v", status)
	}
}

// TestForceSyncNowOffline tests the fail-fast contract at the service
// boundary.
func TestForceSyncNowOffline(t *testing.T) {
	svc, _, _, _ := newTestService(t, false)

	_, err := svc.ForceSyncNow(context.Background())
	if !errors.Is(err, errors.ErrOffline) {
		t.Errorf("Expected OFFLINE error, got %v", err)
	}
}

// TestExportImport tests the backup passthrough.
func TestExportImport(t *testing.T) {
	svc, _, _, _ := newTestService(t, false)
	svc.AddRecord(payload("oatmeal"), meta("oatmeal", time.Now()))

	data, err := svc.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	restored, _, _, _ := newTestService(t, false)
	if err := restored.Import(data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if restored.Status().TotalCount != 1 {
		t.Errorf("Expected 1 record after import, got %d", restored.Status().TotalCount)
	}
}
