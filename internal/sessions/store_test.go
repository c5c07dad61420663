package sessions

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calqtrade/internal/config"
	"calqtrade/internal/fees"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(config.SessionsConfig{
		TTL:           time.Hour,
		SweepInterval: time.Minute,
		MaxLots:       3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(store.Stop)
	return store
}

func TestStore_CreateGetDelete(t *testing.T) {
	store := newTestStore(t)

	session := store.Create()
	assert.NotEmpty(t, session.ID)
	assert.Empty(t, session.Purchases)
	assert.Equal(t, 1, store.Count())

	got, err := store.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	require.NoError(t, store.Delete(session.ID))
	assert.Equal(t, 0, store.Count())

	_, err = store.Get(session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(session.ID), ErrNotFound)
}

func TestStore_Purchases(t *testing.T) {
	store := newTestStore(t)
	session := store.Create()

	got, err := store.AddPurchase(session.ID, fees.TradeLot{Price: 100, Quantity: 1000})
	require.NoError(t, err)
	require.Len(t, got.Purchases, 1)

	got, err = store.AddPurchase(session.ID, fees.TradeLot{Price: 105, Quantity: 2000})
	require.NoError(t, err)
	require.Len(t, got.Purchases, 2)

	got, err = store.RemovePurchase(session.ID, 0)
	require.NoError(t, err)
	require.Len(t, got.Purchases, 1)
	assert.Equal(t, 105.0, got.Purchases[0].Price)

	_, err = store.RemovePurchase(session.ID, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	got, err = store.ClearPurchases(session.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Purchases)
}

func TestStore_AddPurchase_Validation(t *testing.T) {
	store := newTestStore(t)
	session := store.Create()

	_, err := store.AddPurchase(session.ID, fees.TradeLot{Price: 0, Quantity: 10})
	assert.ErrorIs(t, err, fees.ErrInvalidPrice)

	_, err = store.AddPurchase(session.ID, fees.TradeLot{Price: 10, Quantity: 0})
	assert.ErrorIs(t, err, fees.ErrInvalidQuantity)

	_, err = store.AddPurchase("missing", fees.TradeLot{Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LotLimit(t *testing.T) {
	store := newTestStore(t)
	session := store.Create()

	for i := 0; i < 3; i++ {
		_, err := store.AddPurchase(session.ID, fees.TradeLot{Price: 100, Quantity: 1})
		require.NoError(t, err)
	}

	_, err := store.AddPurchase(session.ID, fees.TradeLot{Price: 100, Quantity: 1})
	assert.ErrorIs(t, err, ErrTooManyLots)
}

func TestStore_Intraday(t *testing.T) {
	store := newTestStore(t)
	session := store.Create()

	got, err := store.AddIntraday(session.ID, SideBuy, fees.TradeLot{Price: 50, Quantity: 4000})
	require.NoError(t, err)
	require.Len(t, got.IntradayBuys, 1)
	assert.Empty(t, got.IntradaySells)

	got, err = store.AddIntraday(session.ID, SideSell, fees.TradeLot{Price: 52, Quantity: 3000})
	require.NoError(t, err)
	require.Len(t, got.IntradaySells, 1)

	got, err = store.RemoveIntraday(session.ID, SideSell, 0)
	require.NoError(t, err)
	assert.Empty(t, got.IntradaySells)

	_, err = store.AddIntraday(session.ID, Side("short"), fees.TradeLot{Price: 1, Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide("buy")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	side, err = ParseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, SideSell, side)

	_, err = ParseSide("hold")
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	store := newTestStore(t)
	session := store.Create()

	got, err := store.AddPurchase(session.ID, fees.TradeLot{Price: 100, Quantity: 1000})
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the store
	got.Purchases[0].Price = 999

	fresh, err := store.Get(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fresh.Purchases[0].Price)
}

func TestStore_SweepExpired(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	store.now = func() time.Time { return now }

	stale := store.Create()
	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	live := store.Create()

	expired := store.sweepExpired()
	assert.Equal(t, 1, expired)

	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(live.ID)
	assert.NoError(t, err)
}
