package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	testingpkg "github.com/aristath/portfolio-sync/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestReconciler(store Store) *Reconciler {
	r := New(store, zerolog.New(nil).Level(zerolog.Disabled))
	r.SetClock(func() time.Time { return fixedNow })
	return r
}

func TestProcessDividend_CreatesMissing(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)

	stored := store.Dividends(account.ID)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].SyncedOn)
	assert.True(t, stored[0].SyncedOn.Equal(fixedNow))
	assert.Equal(t, domain.SyncStats{DividendsProcessed: 1}, stats.Snapshot())
}

func TestProcessDividend_SkipsExisting(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.SeedDividends(account.ID, testingpkg.NewDividendFixture(account, "A"))
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)

	assert.Len(t, store.Dividends(account.ID), 1)
	assert.Equal(t, int64(0), store.CreateCalls())
	assert.Equal(t, domain.SyncStats{}, stats.Snapshot())
}

func TestProcessDividend_RejectsEmptyInternalID(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.SeedDividends(account.ID, testingpkg.NewDividendFixture(account, "A"))
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, ""), stats)
	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "  "), stats)

	assert.Len(t, store.Dividends(account.ID), 1)
	assert.Equal(t, int64(0), store.CreateCalls())
	assert.Equal(t, domain.SyncStats{DividendsFailed: 2}, stats.Snapshot())
}

func TestProcessDividend_ErrorIsolation(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.FailCreateDividend = func(d domain.DividendRecord) error {
		if d.InternalID == "2" {
			return errors.New("store unavailable")
		}
		return nil
	}
	r := newTestReconciler(store)
	stats := &Stats{}

	for _, id := range []string{"1", "2", "3"} {
		r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, id), stats)
	}

	assert.Equal(t, domain.SyncStats{DividendsProcessed: 2, DividendsFailed: 1}, stats.Snapshot())
	assert.Len(t, store.Dividends(account.ID), 2)
}

func TestProcessDividend_LookupErrorCountsAsFailure(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.FailFindDividend = func(string) error { return errors.New("timeout") }
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)

	assert.Equal(t, domain.SyncStats{DividendsFailed: 1}, stats.Snapshot())
	assert.Equal(t, int64(0), store.CreateCalls())
}

func TestProcessDividend_Idempotent(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	batch := []domain.DividendRecord{
		testingpkg.NewDividendFixture(account, "A"),
		testingpkg.NewDividendFixture(account, "B"),
	}

	first := &Stats{}
	r := newTestReconciler(store)
	for _, d := range batch {
		r.ProcessDividend(context.Background(), account, d, first)
	}
	require.Equal(t, int64(2), first.Snapshot().DividendsProcessed)
	callsAfterFirst := store.CreateCalls()

	second := &Stats{}
	r = newTestReconciler(store)
	for _, d := range batch {
		r.ProcessDividend(context.Background(), account, d, second)
	}

	assert.Equal(t, domain.SyncStats{}, second.Snapshot())
	assert.Equal(t, callsAfterFirst, store.CreateCalls())
	assert.Len(t, store.Dividends(account.ID), 2)
}

func TestProcessDividend_DuplicatesNeverBothPersisted(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	r := newTestReconciler(store)
	stats := &Stats{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "same-ref"), stats)
		}()
	}
	wg.Wait()

	assert.Len(t, store.Dividends(account.ID), 1)
	assert.Equal(t, int64(1), stats.Snapshot().DividendsProcessed)
	assert.Equal(t, int64(0), stats.Snapshot().DividendsFailed)
}

func TestProcessDividend_SameInternalIDOnOtherAccount(t *testing.T) {
	a1 := testingpkg.NewAccountFixture(1)
	a2 := testingpkg.NewAccountFixture(2)
	store := testingpkg.NewMockStore(a1, a2)
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), a1, testingpkg.NewDividendFixture(a1, "ref"), stats)
	r.ProcessDividend(context.Background(), a2, testingpkg.NewDividendFixture(a2, "ref"), stats)

	assert.Equal(t, int64(2), stats.Snapshot().DividendsProcessed)
}

func TestProcessDividend_ConflictTreatedAsExisting(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.FailCreateDividend = func(domain.DividendRecord) error { return domain.ErrAlreadyExists }
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)

	assert.Equal(t, domain.SyncStats{}, stats.Snapshot())
}

func TestProcessDividend_FailedClaimIsReleased(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	fail := true
	store.FailCreateDividend = func(domain.DividendRecord) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)
	fail = false
	r.ProcessDividend(context.Background(), account, testingpkg.NewDividendFixture(account, "A"), stats)

	assert.Equal(t, domain.SyncStats{DividendsProcessed: 1, DividendsFailed: 1}, stats.Snapshot())
}

func TestProcessSnapshot_CreatesWithRefreshedSyncedOn(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	r := newTestReconciler(store)
	stats := &Stats{}

	providerTime := fixedNow.Add(-time.Minute)
	snapshot := testingpkg.NewSnapshotFixture(account, providerTime)
	r.ProcessSnapshot(context.Background(), account, snapshot, stats)

	stored := store.Snapshots(account.ID)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].SyncedOn.Equal(fixedNow))
	assert.Equal(t, domain.SnapshotID(account.ID, providerTime), stored[0].ID)
	assert.Equal(t, domain.SyncStats{PositionsProcessed: 1}, stats.Snapshot())
}

func TestProcessSnapshot_Idempotent(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	snapshot := testingpkg.NewSnapshotFixture(account, fixedNow.Add(-time.Hour))

	first := &Stats{}
	newTestReconciler(store).ProcessSnapshot(context.Background(), account, snapshot, first)
	second := &Stats{}
	newTestReconciler(store).ProcessSnapshot(context.Background(), account, snapshot, second)

	assert.Equal(t, int64(1), first.Snapshot().PositionsProcessed)
	assert.Equal(t, domain.SyncStats{}, second.Snapshot())
	assert.Len(t, store.Snapshots(account.ID), 1)
}

func TestProcessSnapshot_Failure(t *testing.T) {
	account := testingpkg.NewAccountFixture(1)
	store := testingpkg.NewMockStore(account)
	store.FailCreateSnapshot = errors.New("disk full")
	r := newTestReconciler(store)
	stats := &Stats{}

	r.ProcessSnapshot(context.Background(), account, testingpkg.NewSnapshotFixture(account, fixedNow), stats)

	assert.Equal(t, domain.SyncStats{PositionsFailed: 1}, stats.Snapshot())
}
