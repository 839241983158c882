package testing

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/providers"
)

// MockStore is an in-memory store implementing the reconciler and orchestrator contracts.
// Per-call errors are injected with the Fail* maps and functions.
type MockStore struct {
	mu        sync.Mutex
	accounts  []domain.Account
	dividends map[int64][]domain.DividendRecord
	snapshots map[int64][]domain.AccountSnapshot
	updates   []domain.Account

	// FailCreateDividend returns an error for a dividend create when it returns non-nil
	FailCreateDividend func(d domain.DividendRecord) error
	// FailFindDividend returns an error for a dividend lookup when it returns non-nil
	FailFindDividend func(internalID string) error
	// FailCreateSnapshot returns an error for every snapshot create
	FailCreateSnapshot error
	// FailUpdateAccount returns an error for every account update
	FailUpdateAccount error
	// FailListAccounts returns an error from ListAccounts
	FailListAccounts error

	// OnCreate runs at the start of every create call
	OnCreate func()

	createCalls  atomic.Int64
	inFlight     atomic.Int64
	maxInFlight  atomic.Int64
	nextDividend atomic.Int64
}

// NewMockStore creates an empty store holding the given accounts
func NewMockStore(accounts ...domain.Account) *MockStore {
	return &MockStore{
		accounts:  accounts,
		dividends: make(map[int64][]domain.DividendRecord),
		snapshots: make(map[int64][]domain.AccountSnapshot),
	}
}

func (m *MockStore) enter() func() {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { m.inFlight.Add(-1) }
}

// SeedDividends stores dividends directly, bypassing create accounting
func (m *MockStore) SeedDividends(accountID int64, dividends ...domain.DividendRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dividends[accountID] = append(m.dividends[accountID], dividends...)
}

// SeedSnapshots stores snapshots directly
func (m *MockStore) SeedSnapshots(accountID int64, snapshots ...domain.AccountSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[accountID] = append(m.snapshots[accountID], snapshots...)
}

// ListAccounts returns all accounts
func (m *MockStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailListAccounts != nil {
		return nil, m.FailListAccounts
	}
	out := make([]domain.Account, len(m.accounts))
	copy(out, m.accounts)
	return out, nil
}

// FindDividend looks up a dividend by internal id
func (m *MockStore) FindDividend(ctx context.Context, account domain.Account, internalID string) (*domain.DividendRecord, error) {
	defer m.enter()()
	if m.FailFindDividend != nil {
		if err := m.FailFindDividend(internalID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dividends[account.ID] {
		if d.InternalID == internalID {
			found := d
			return &found, nil
		}
	}
	return nil, nil
}

// CreateDividend stores a dividend, rejecting duplicate internal ids
func (m *MockStore) CreateDividend(ctx context.Context, account domain.Account, dividend domain.DividendRecord) (*domain.DividendRecord, error) {
	defer m.enter()()
	m.createCalls.Add(1)
	if m.OnCreate != nil {
		m.OnCreate()
	}
	if m.FailCreateDividend != nil {
		if err := m.FailCreateDividend(dividend); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dividends[account.ID] {
		if d.InternalID == dividend.InternalID {
			return nil, domain.ErrAlreadyExists
		}
	}
	if dividend.ID == "" {
		dividend.ID = "div-" + strconv.FormatInt(m.nextDividend.Add(1), 10)
	}
	m.dividends[account.ID] = append(m.dividends[account.ID], dividend)
	return &dividend, nil
}

// FindSnapshot looks up a snapshot by id
func (m *MockStore) FindSnapshot(ctx context.Context, account domain.Account, snapshotID string) (*domain.AccountSnapshot, error) {
	defer m.enter()()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots[account.ID] {
		if s.ID == snapshotID {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

// CreateSnapshot stores a snapshot
func (m *MockStore) CreateSnapshot(ctx context.Context, account domain.Account, snapshot domain.AccountSnapshot) (*domain.AccountSnapshot, error) {
	defer m.enter()()
	m.createCalls.Add(1)
	if m.FailCreateSnapshot != nil {
		return nil, m.FailCreateSnapshot
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots[account.ID] {
		if s.ID == snapshot.ID {
			return nil, domain.ErrAlreadyExists
		}
	}
	m.snapshots[account.ID] = append(m.snapshots[account.ID], snapshot)
	return &snapshot, nil
}

// UpdateAccount replaces the stored account record
func (m *MockStore) UpdateAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	defer m.enter()()
	if m.FailUpdateAccount != nil {
		return nil, m.FailUpdateAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, account)
	for i := range m.accounts {
		if m.accounts[i].ID == account.ID {
			m.accounts[i] = account
			return &account, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Dividends returns the stored dividends of an account
func (m *MockStore) Dividends(accountID int64) []domain.DividendRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DividendRecord, len(m.dividends[accountID]))
	copy(out, m.dividends[accountID])
	return out
}

// Snapshots returns the stored snapshots of an account
func (m *MockStore) Snapshots(accountID int64) []domain.AccountSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AccountSnapshot, len(m.snapshots[accountID]))
	copy(out, m.snapshots[accountID])
	return out
}

// Account returns the stored account record
func (m *MockStore) Account(id int64) (domain.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}

// Updates returns every account record passed to UpdateAccount, in call order
func (m *MockStore) Updates() []domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Account, len(m.updates))
	copy(out, m.updates)
	return out
}

// CreateCalls returns the number of create calls, failed ones included
func (m *MockStore) CreateCalls() int64 {
	return m.createCalls.Load()
}

// MaxInFlight returns the highest number of concurrent store calls observed
func (m *MockStore) MaxInFlight() int64 {
	return m.maxInFlight.Load()
}

// MockProvider returns canned provider data
type MockProvider struct {
	Config         providers.SyncConfig
	Instruments    []domain.Instrument
	DividendList   []domain.DividendRecord
	SnapshotResult *domain.AccountSnapshot

	InstrumentsErr error
	DividendsErr   error
	SnapshotErr    error

	DividendsCalls atomic.Int64
	SnapshotCalls  atomic.Int64
}

var _ providers.Provider = (*MockProvider)(nil)

// SyncConfig returns Config, or the default cadence when unset
func (p *MockProvider) SyncConfig() providers.SyncConfig {
	if p.Config == (providers.SyncConfig{}) {
		return providers.DefaultSyncConfig()
	}
	return p.Config
}

// LoadInstruments returns the canned instruments
func (p *MockProvider) LoadInstruments(ctx context.Context) (*domain.InstrumentIndex, error) {
	if p.InstrumentsErr != nil {
		return nil, p.InstrumentsErr
	}
	return domain.NewInstrumentIndex(p.Instruments), nil
}

// Dividends returns the canned dividends
func (p *MockProvider) Dividends(ctx context.Context, idx *domain.InstrumentIndex) ([]domain.DividendRecord, error) {
	p.DividendsCalls.Add(1)
	if p.DividendsErr != nil {
		return nil, p.DividendsErr
	}
	out := make([]domain.DividendRecord, len(p.DividendList))
	copy(out, p.DividendList)
	return out, nil
}

// Snapshot returns a copy of the canned snapshot
func (p *MockProvider) Snapshot(ctx context.Context, idx *domain.InstrumentIndex) (*domain.AccountSnapshot, error) {
	p.SnapshotCalls.Add(1)
	if p.SnapshotErr != nil {
		return nil, p.SnapshotErr
	}
	if p.SnapshotResult == nil {
		return nil, errors.New("mock provider has no snapshot configured")
	}
	s := *p.SnapshotResult
	return &s, nil
}
