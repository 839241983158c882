package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/portfolio-sync/internal/domain"
	"github.com/aristath/portfolio-sync/internal/modules/accounts"
	testingpkg "github.com/aristath/portfolio-sync/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Repository, domain.Account) {
	db, cleanup := testingpkg.NewTestDB(t, "store")
	t.Cleanup(cleanup)

	account := domain.Account{UserID: 3, Name: "ISA", Provider: domain.ProviderTrading212}
	require.NoError(t, accounts.NewRepository(db.Conn(), zerolog.Nop()).Create(context.Background(), &account))

	return NewRepository(db.Conn(), zerolog.Nop()), account
}

func TestRepository_CreateAndFindByID(t *testing.T) {
	repo, account := setup(t)
	ctx := context.Background()

	providerTime := time.Date(2024, 4, 10, 8, 59, 0, 0, time.UTC)
	s := testingpkg.NewSnapshotFixture(account, providerTime)
	s.SyncedOn = providerTime.Add(time.Minute)
	require.NoError(t, repo.Create(ctx, &s))

	found, err := repo.List(ctx, account.ID, Filter{ID: domain.SnapshotID(account.ID, providerTime)})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].SyncedOn.Equal(s.SyncedOn))
	assert.Len(t, found[0].Positions, 2)
	assert.Equal(t, 1550.0, found[0].Balance.Total)
}

func TestRepository_DuplicateID(t *testing.T) {
	repo, account := setup(t)
	ctx := context.Background()

	at := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	first := testingpkg.NewSnapshotFixture(account, at)
	require.NoError(t, repo.Create(ctx, &first))

	second := testingpkg.NewSnapshotFixture(account, at)
	assert.ErrorIs(t, repo.Create(ctx, &second), domain.ErrAlreadyExists)
}

func TestRepository_FilterBySyncedOnAndDay(t *testing.T) {
	repo, account := setup(t)
	ctx := context.Background()

	times := []time.Time{
		time.Date(2024, 4, 9, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 10, 18, 30, 0, 0, time.UTC),
	}
	for _, at := range times {
		s := testingpkg.NewSnapshotFixture(account, at)
		require.NoError(t, repo.Create(ctx, &s))
	}

	day, err := repo.List(ctx, account.ID, Filter{SyncedOnDay: "2024-04-10"})
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.True(t, day[0].SyncedOn.Equal(times[2]), "newest first")

	exact, err := repo.List(ctx, account.ID, Filter{SyncedOn: &times[0]})
	require.NoError(t, err)
	require.Len(t, exact, 1)

	all, err := repo.List(ctx, account.ID, Filter{Ascending: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].SyncedOn.Equal(times[0]))
}

func TestRepository_RequiresSyncedOn(t *testing.T) {
	repo, account := setup(t)

	err := repo.Create(context.Background(), &domain.AccountSnapshot{AccountID: account.ID})
	assert.Error(t, err)
}
