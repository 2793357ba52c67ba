package wallet_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lilzahs/gimme-idea/api/apperror"
	apitesting "github.com/lilzahs/gimme-idea/api/testing"
	"github.com/lilzahs/gimme-idea/api/wallet"
	gimmetesting "github.com/lilzahs/gimme-idea/utils/pkg/testing"
)

var testDB *apitesting.DB

func TestMain(m *testing.M) {
	log := gimmetesting.NewLogger()

	var err error
	testDB, err = apitesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to start PostgreSQL container", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func newStore(t *testing.T) *wallet.Store {
	t.Helper()
	store, err := wallet.NewStore(wallet.StoreConfig{
		Logger: gimmetesting.NewLogger(),
		Pool:   apitesting.NewTestPool(t, testDB),
	})
	require.NoError(t, err)
	return store
}

func TestStoreConfig_Validate(t *testing.T) {
	t.Parallel()

	_, err := wallet.NewStore(wallet.StoreConfig{})
	require.Error(t, err)
}

func TestStore_Resolve(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)

	first, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, first.Address)
	assert.Equal(t, wallet.TypeUnknown, first.Type)
	assert.Zero(t, first.PostsCount)
	assert.True(t, first.TipsReceived.IsZero())
	assert.True(t, first.TipsGiven.IsZero())

	second, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.LastActiveAt.Before(first.LastActiveAt))
}

func TestStore_Resolve_InvalidAddress(t *testing.T) {
	t.Parallel()
	store := newStore(t)

	_, err := store.Resolve(t.Context(), "not-an-address")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestStore_Resolve_Concurrent(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)

	const n = 16
	ids := make([]uuid.UUID, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := store.Resolve(ctx, kp.Address)
			errs[i] = err
			if w != nil {
				ids[i] = w.ID
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	pool := apitesting.NewTestPool(t, testDB)
	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets WHERE address = $1`, kp.Address).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_Connect(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)

	w, err := store.Connect(ctx, kp.Address, wallet.TypePhantom)
	require.NoError(t, err)
	assert.Equal(t, wallet.TypePhantom, w.Type)

	again, err := store.Connect(ctx, kp.Address, wallet.TypeSolflare)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
	assert.Equal(t, wallet.TypeSolflare, again.Type)

	resolved, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, wallet.TypeSolflare, resolved.Type)
}

func TestStore_Lookup(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)

	_, err := store.Lookup(ctx, kp.Address)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	created, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)

	found, err := store.Lookup(ctx, kp.Address)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	byID, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, kp.Address, byID.Address)
}

func TestStore_AddressImmutable(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)
	other := apitesting.NewKeypair(t)

	w, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)

	pool := apitesting.NewTestPool(t, testDB)
	_, err = pool.Exec(ctx, `UPDATE wallets SET address = $1 WHERE id = $2`, other.Address, w.ID)
	require.Error(t, err)
}

func TestApplyCounters(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := t.Context()
	kp := apitesting.NewKeypair(t)
	pool := apitesting.NewTestPool(t, testDB)

	w, err := store.Resolve(ctx, kp.Address)
	require.NoError(t, err)

	require.NoError(t, wallet.ApplyCounters(ctx, pool, w.ID, wallet.CounterDelta{
		Posts:        1,
		TipsReceived: decimal.RequireFromString("2.5"),
	}))
	require.NoError(t, wallet.ApplyCounters(ctx, pool, w.ID, wallet.CounterDelta{
		TipsGiven: decimal.RequireFromString("0.000001"),
	}))

	got, err := store.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostsCount)
	assert.True(t, got.TipsReceived.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, got.TipsGiven.Equal(decimal.RequireFromString("0.000001")))

	err = wallet.ApplyCounters(ctx, pool, uuid.New(), wallet.CounterDelta{Posts: 1})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
