package account

import (
	"context"
	"testing"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(rs store.RecordStore, bonus int64) *Service {
	comp := &compensate.Runner{MaxAttempts: 2, BaseDelay: time.Millisecond, Events: events.Noop{}}
	return NewService(rs, ledger.New(rs, comp), bonus)
}

func TestSaveProfileCreatesThenUpdates(t *testing.T) {
	rs := store.NewMemory()
	svc := newTestService(rs, 250)
	ctx := context.Background()

	resp, err := svc.SaveProfile(ctx, "u1", ProfileRequest{DisplayName: "Ana", Phone: "+15550001111", GameHandle: "ana#1"})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, int64(250), resp.User.Wallet.Balance)

	resp, err = svc.SaveProfile(ctx, "u1", ProfileRequest{DisplayName: "Ana B", Phone: "+15550001111", GameHandle: "anab#1"})
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, "Ana B", resp.User.DisplayName)

	u := testutil.MustUser(t, rs, "u1")
	assert.Equal(t, int64(250), u.Wallet.Balance, "profile edits must not touch the wallet")
	assert.Equal(t, int64(250), u.TotalEarned)
	assert.Len(t, testutil.History(t, rs, "u1"), 1)
}

func TestSaveProfileValidation(t *testing.T) {
	svc := newTestService(store.NewMemory(), 0)
	_, err := svc.SaveProfile(context.Background(), "u1", ProfileRequest{DisplayName: "  ", GameHandle: "x"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMeAndHistory(t *testing.T) {
	rs := store.NewMemory()
	svc := newTestService(rs, 0)
	_, err := svc.Me(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProfileMissing)
	_, err = svc.History(context.Background(), "ghost", 10, 0)
	require.ErrorIs(t, err, ErrProfileMissing)

	testutil.SeedUser(t, rs, "u1", 0)
	_, err = svc.Credit(context.Background(), CreditRequest{UID: "u1", Amount: 900, Note: "cup prize"})
	require.NoError(t, err)

	hist, err := svc.History(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, hist.Items, 1)
	assert.Equal(t, "cup prize", hist.Items[0].Note)

	me, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), me.TotalEarned)
}

func TestSetBlocked(t *testing.T) {
	rs := store.NewMemory()
	svc := newTestService(rs, 0)
	testutil.SeedUser(t, rs, "u1", 40)

	u, err := svc.SetBlocked(context.Background(), "u1", true)
	require.NoError(t, err)
	assert.True(t, u.IsBlocked)
	assert.Equal(t, int64(40), u.Wallet.Balance)

	_, err = svc.SetBlocked(context.Background(), "ghost", true)
	require.ErrorIs(t, err, ErrProfileMissing)
}

func TestCreditUnknownUser(t *testing.T) {
	svc := newTestService(store.NewMemory(), 0)
	_, err := svc.Credit(context.Background(), CreditRequest{UID: "ghost", Amount: 1})
	require.ErrorIs(t, err, ErrProfileMissing)
	_, err = svc.Credit(context.Background(), CreditRequest{UID: "ghost", Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)
}
