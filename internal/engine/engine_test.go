package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clweng/ledgerbot/internal/ledger"
	"github.com/clweng/ledgerbot/internal/models"
	"github.com/clweng/ledgerbot/internal/report"
	"github.com/clweng/ledgerbot/internal/storage"
)

// memStore is an in-memory SnapshotStore for tests.
type memStore struct {
	mu        sync.Mutex
	snapshots [][]byte
	failSave  bool
}

func (m *memStore) Save(ctx context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk on fire")
	}
	cp := make([]byte, len(snapshot))
	copy(cp, snapshot)
	m.snapshots = append(m.snapshots, cp)
	return nil
}

func (m *memStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil, storage.ErrNoSnapshot
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// chanReplicator hands every uploaded snapshot to a channel.
type chanReplicator struct {
	uploads chan []byte
}

func (r *chanReplicator) Upload(ctx context.Context, snapshot []byte) error {
	r.uploads <- snapshot
	return nil
}

func newTestEngine(opts ...Option) (*Engine, *memStore) {
	snaps := &memStore{}
	return New(ledger.New(), snaps, opts...), snaps
}

func TestRecordThenQueryTotals(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	reply, ok := e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $100")
	if !ok {
		t.Fatal("expected a reply")
	}
	if !strings.Contains(reply, "Recorded unpaid 2024-01-15 $100") {
		t.Errorf("missing success line in %q", reply)
	}
	if !strings.Contains(reply, "Unpaid total: $100") {
		t.Errorf("record reply must include the running total, got %q", reply)
	}

	e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $50")

	reply, ok = e.Handle(ctx, "g1", "bob", "query-total")
	if !ok {
		t.Fatal("expected a query reply")
	}
	if !strings.Contains(reply, "Unpaid total: $150") {
		t.Errorf("unpaid subtotal should be $150, got %q", reply)
	}
	if got := strings.Count(reply, "2024-01-15"); got != 2 {
		t.Errorf("expected two itemized lines for 2024-01-15, found %d in %q", got, reply)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	e, snaps := newTestEngine()
	ctx := context.Background()

	e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $100")

	reply, _ := e.Handle(ctx, "g1", "alice", "delete-amount 2024.01.15")
	if !strings.Contains(reply, "Deleted 1 unpaid entry") {
		t.Errorf("unexpected delete reply %q", reply)
	}

	saved := snaps.count()
	reply, ok := e.Handle(ctx, "g1", "alice", "delete-amount 2024.01.15")
	if !ok {
		t.Fatal("NotFound is a result, not silence")
	}
	if !strings.Contains(reply, "No unpaid entries found") {
		t.Errorf("second delete should be NotFound, got %q", reply)
	}
	if snaps.count() != saved {
		t.Error("a NotFound-only message must not trigger persistence")
	}
}

func TestBatchPartialSuccessReportsOnlySuccesses(t *testing.T) {
	e, snaps := newTestEngine()
	ctx := context.Background()

	msg := "record-amount 2024.01.15 $100\nrecord-amount 2024.01.16 garbage\nrecord-amount 2024.01.17 $50"
	reply, ok := e.Handle(ctx, "g1", "alice", msg)
	if !ok {
		t.Fatal("expected a reply")
	}

	if !strings.Contains(reply, "Recorded unpaid 2024-01-15 $100") ||
		!strings.Contains(reply, "Recorded unpaid 2024-01-17 $50") {
		t.Errorf("success lines missing from %q", reply)
	}
	if strings.Contains(reply, "garbage") || strings.Contains(reply, "Invalid amount") {
		t.Errorf("failed line must not leak into a partial-success reply: %q", reply)
	}
	if !strings.Contains(reply, "Unpaid total: $150") {
		t.Errorf("consolidated total must reflect post-batch state, got %q", reply)
	}
	if snaps.count() != 1 {
		t.Errorf("expected exactly one snapshot write per message, got %d", snaps.count())
	}
}

func TestBatchAllFailedReportsErrors(t *testing.T) {
	e, snaps := newTestEngine()

	reply, ok := e.Handle(context.Background(), "g1", "alice", "record-amount nope $100\nrecord-amount 2024.01.15 garbage")
	if !ok {
		t.Fatal("expected an error reply")
	}
	if !strings.Contains(reply, "Invalid date:") || !strings.Contains(reply, "Invalid amount:") {
		t.Errorf("error lines missing from %q", reply)
	}
	if snaps.count() != 0 {
		t.Error("a fully failed batch must not persist")
	}
}

func TestQueryOnEmptyGroup(t *testing.T) {
	e, _ := newTestEngine()

	reply, ok := e.Handle(context.Background(), "g1", "alice", "query-total")
	if !ok {
		t.Fatal("empty query still replies")
	}
	if reply != report.EmptyLedger() {
		t.Errorf("reply = %q, want the no-records message", reply)
	}

	// The query must not have created the group.
	reply, _ = e.Handle(context.Background(), "g1", "alice", "query-total")
	if reply != report.EmptyLedger() {
		t.Errorf("second query differs: %q", reply)
	}
}

func TestUnrecognizedTextPolicy(t *testing.T) {
	e, snaps := newTestEngine()
	reply, ok := e.Handle(context.Background(), "g1", "alice", "good morning everyone")
	if ok {
		t.Errorf("default policy is silence, got reply %q", reply)
	}
	if snaps.count() != 0 {
		t.Error("unrecognized text must not persist")
	}

	echo, _ := newTestEngine(WithEchoUnrecognized())
	reply, ok = echo.Handle(context.Background(), "g1", "alice", "good morning everyone")
	if !ok || reply != "good morning everyone" {
		t.Errorf("echo policy should return the text verbatim, got %q ok=%v", reply, ok)
	}
}

func TestDeleteInvoiceNotFound(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	e.Handle(ctx, "g1", "alice", "record-invoice $100 for Initech")

	reply, ok := e.Handle(ctx, "g1", "alice", "delete-invoice $200 AcmeCorp")
	if !ok {
		t.Fatal("expected a reply")
	}
	if !strings.Contains(reply, "No invoice $200 (AcmeCorp) found") {
		t.Errorf("want NotFound reply, got %q", reply)
	}

	reply, _ = e.Handle(ctx, "g1", "alice", "query-total")
	if !strings.Contains(reply, "Invoices total: $100") {
		t.Errorf("invoice ledger must be unchanged, got %q", reply)
	}
}

func TestDeleteAll(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $100")
	e.Handle(ctx, "g1", "bob", "record-invoice $200 for AcmeCorp")

	reply, _ := e.Handle(ctx, "g1", "alice", "delete-all")
	if reply != report.Cleared() {
		t.Errorf("unexpected reply %q", reply)
	}
	reply, _ = e.Handle(ctx, "g1", "alice", "query-total")
	if reply != report.EmptyLedger() {
		t.Errorf("group should be gone after delete-all, got %q", reply)
	}

	// Deleting an absent group succeeds silently.
	reply, ok := e.Handle(ctx, "g1", "alice", "delete-all")
	if !ok || reply != report.Cleared() {
		t.Errorf("delete-all must be idempotent, got %q ok=%v", reply, ok)
	}
}

func TestPersistenceFailureKeepsMutation(t *testing.T) {
	e, snaps := newTestEngine()
	ctx := context.Background()

	snaps.failSave = true
	reply, ok := e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $100")
	if !ok || reply != report.Failure() {
		t.Errorf("persistence failure must surface the generic message, got %q", reply)
	}

	// The in-memory mutation is not rolled back.
	snaps.failSave = false
	reply, _ = e.Handle(ctx, "g1", "alice", "query-total")
	if !strings.Contains(reply, "Unpaid total: $100") {
		t.Errorf("mutation lost after persistence failure: %q", reply)
	}
}

func TestPersonalLedgerWhenNoGroup(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	e.Handle(ctx, "", "alice", "record-amount 2024.01.15 $100")

	reply, _ := e.Handle(ctx, "", "alice", "query-total")
	if !strings.Contains(reply, "Unpaid total: $100") {
		t.Errorf("personal ledger missing entry: %q", reply)
	}
	reply, _ = e.Handle(ctx, "", "bob", "query-total")
	if reply != report.EmptyLedger() {
		t.Errorf("personal ledgers must not be shared, got %q", reply)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	store := ledger.New()
	snaps := &memStore{}
	e := New(store, snaps)
	ctx := context.Background()

	e.Handle(ctx, "g1", "alice", "record-amount 2024.01.15 $100\nrecord-remittance 2024.01.20 $30")

	restored := New(ledger.New(), snaps)
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	reply, _ := restored.Handle(ctx, "g1", "alice", "query-total")
	if !strings.Contains(reply, "Unpaid total: $100") || !strings.Contains(reply, "Paid total: $30") {
		t.Errorf("restored ledger incomplete: %q", reply)
	}

	// Restoring with no snapshot at all is not an error.
	fresh := New(ledger.New(), &memStore{})
	if err := fresh.Restore(ctx); err != nil {
		t.Fatalf("Restore of empty store failed: %v", err)
	}
}

func TestReplicatorReceivesSnapshot(t *testing.T) {
	rep := &chanReplicator{uploads: make(chan []byte, 1)}
	snaps := &memStore{}
	e := New(ledger.New(), snaps, WithReplicator(rep))

	e.Handle(context.Background(), "g1", "alice", "record-amount 2024.01.15 $100")

	select {
	case uploaded := <-rep.uploads:
		if !strings.Contains(string(uploaded), "2024-01-15") {
			t.Errorf("uploaded snapshot looks wrong: %s", uploaded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replicator never received the snapshot")
	}
}

func TestConcurrentBatchesNeverTearSnapshots(t *testing.T) {
	e, snaps := newTestEngine()
	ctx := context.Background()

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", w)
			for i := 0; i < perWorker; i++ {
				e.Handle(ctx, "g1", user, "record-amount 2024.01.15 $1")
			}
		}(w)
	}
	wg.Wait()

	reply, _ := e.Handle(ctx, "g1", "alice", "query-total")
	want := fmt.Sprintf("Unpaid total: $%d", workers*perWorker)
	if !strings.Contains(reply, want) {
		t.Errorf("final total wrong: want %q in %q", want, reply)
	}

	// Every persisted snapshot must be internally consistent: it
	// decodes, and its subtotal equals the sum of its itemized lines.
	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	for i, snapshot := range snaps.snapshots {
		s := ledger.New()
		if err := s.Decode(snapshot); err != nil {
			t.Fatalf("snapshot %d is torn: %v", i, err)
		}
		sum := decimal.Zero
		for _, item := range s.Items("g1", models.CategoryUnpaid) {
			sum = sum.Add(item.Entry.Amount)
		}
		if !sum.Equal(s.Total("g1", models.CategoryUnpaid)) {
			t.Fatalf("snapshot %d totals inconsistent", i)
		}
	}
	if len(snaps.snapshots) != workers*perWorker {
		t.Errorf("expected %d snapshot writes, got %d", workers*perWorker, len(snaps.snapshots))
	}
}
