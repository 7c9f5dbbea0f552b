package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/store"
	"github.com/airstudent2/Tournament-200-26/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(rs store.RecordStore) *Ledger {
	return New(rs, &compensate.Runner{MaxAttempts: 3, BaseDelay: time.Millisecond, Events: events.Noop{}})
}

func TestTryDebit(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 150)
	l := newTestLedger(rs)
	ctx := context.Background()

	entry, err := l.TryDebit(ctx, "u1", 100, store.EntryJoinDebit, "t1", "entry fee")
	require.NoError(t, err)
	assert.Equal(t, int64(50), entry.BalanceAfter)
	assert.Equal(t, int64(50), testutil.MustUser(t, rs, "u1").Wallet.Balance)

	_, err = l.TryDebit(ctx, "u1", 100, store.EntryJoinDebit, "t1", "entry fee")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(50), testutil.MustUser(t, rs, "u1").Wallet.Balance)

	hist := testutil.History(t, rs, "u1")
	require.Len(t, hist, 1)
	assert.Equal(t, entry.ID, hist[0].ID)
}

func TestTryDebitErrors(t *testing.T) {
	l := newTestLedger(store.NewMemory())
	_, err := l.TryDebit(context.Background(), "ghost", 10, store.EntryJoinDebit, "", "")
	require.ErrorIs(t, err, ErrWalletNotFound)
	_, err = l.TryDebit(context.Background(), "ghost", 0, store.EntryJoinDebit, "", "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Credit(context.Background(), "ghost", -5, store.EntryCredit, "", "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditTracksEarnings(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 0)
	l := newTestLedger(rs)
	ctx := context.Background()

	_, err := l.Credit(ctx, "u1", 500, store.EntryCredit, "prize", "cup win")
	require.NoError(t, err)
	_, err = l.Credit(ctx, "u1", 100, store.EntryJoinRefund, "d1", "refund")
	require.NoError(t, err)

	u := testutil.MustUser(t, rs, "u1")
	assert.Equal(t, int64(600), u.Wallet.Balance)
	assert.Equal(t, int64(500), u.TotalEarned)

	hist, err := l.History(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, store.EntryCredit, hist[0].Type)
	assert.Equal(t, store.EntryJoinRefund, hist[1].Type)

	page, err := l.History(ctx, "u1", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, store.EntryJoinRefund, page[0].Type)
}

func TestCreditRejectsOverflow(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 100)
	l := newTestLedger(rs)
	ctx := context.Background()

	_, err := l.Credit(ctx, "u1", math.MaxInt64, store.EntryCredit, "admin", "too much")
	require.ErrorIs(t, err, ErrBalanceOverflow)
	_, err = l.Credit(ctx, "u1", math.MaxInt64-99, store.EntryJoinRefund, "d1", "refund")
	require.ErrorIs(t, err, ErrBalanceOverflow)

	u := testutil.MustUser(t, rs, "u1")
	assert.Equal(t, int64(100), u.Wallet.Balance)
	assert.Equal(t, int64(0), u.TotalEarned)
	assert.Empty(t, testutil.History(t, rs, "u1"))

	entry, err := l.Credit(ctx, "u1", math.MaxInt64-100, store.EntryJoinRefund, "d2", "fits exactly")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), entry.BalanceAfter)
}

func TestCreditRejectsEarningsOverflow(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 0)
	_, err := store.UpdateJSON(context.Background(), rs, store.UserKey("u1"), func(u *store.User) error {
		u.TotalEarned = math.MaxInt64 - 5
		return nil
	})
	require.NoError(t, err)

	_, err = newTestLedger(rs).Credit(context.Background(), "u1", 10, store.EntryCredit, "prize", "")
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, int64(0), testutil.MustUser(t, rs, "u1").Wallet.Balance)
}

func TestHistoryAppendRetried(t *testing.T) {
	rs := testutil.NewFaultStore(store.NewMemory())
	testutil.SeedUser(t, rs, "u1", 100)
	var fails atomic.Int32
	rs.FailCreate(func(key string) error {
		if fails.Add(1) <= 2 {
			return store.ErrUnavailable
		}
		return nil
	})
	l := newTestLedger(rs)

	_, err := l.TryDebit(context.Background(), "u1", 40, store.EntryWithdrawalDebit, "w1", "")
	require.NoError(t, err)
	assert.Len(t, testutil.History(t, rs, "u1"), 1)
}

func TestHistoryAppendFailureDoesNotFailDebit(t *testing.T) {
	rs := testutil.NewFaultStore(store.NewMemory())
	testutil.SeedUser(t, rs, "u1", 100)
	rs.FailCreate(func(string) error { return errors.New("disk full") })
	l := newTestLedger(rs)
	before := metricHistoryFailures.Value()

	entry, err := l.TryDebit(context.Background(), "u1", 40, store.EntryJoinDebit, "t1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(60), entry.BalanceAfter)
	assert.Equal(t, before+1, metricHistoryFailures.Value())
}

// Balance change since creation must equal credits minus debits in history.
func TestConcurrentDebitsKeepBalanceConsistent(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 1000)
	l := newTestLedger(rs)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				_, _ = l.Credit(context.Background(), "u1", 10, store.EntryCredit, "", "")
				return
			}
			_, err := l.TryDebit(context.Background(), "u1", 70, store.EntryJoinDebit, "", "")
			if err != nil && !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	u := testutil.MustUser(t, rs, "u1")
	require.GreaterOrEqual(t, u.Wallet.Balance, int64(0))

	var net int64
	for _, e := range testutil.History(t, rs, "u1") {
		if e.IsDebit() {
			net -= e.Amount
		} else {
			net += e.Amount
		}
	}
	assert.Equal(t, u.Wallet.Balance-1000, net)
}

func TestRefundOnceIsIdempotent(t *testing.T) {
	rs := store.NewMemory()
	testutil.SeedUser(t, rs, "u1", 100)
	l := newTestLedger(rs)
	ctx := context.Background()

	debit, err := l.TryDebit(ctx, "u1", 100, store.EntryJoinDebit, "t1", "")
	require.NoError(t, err)

	first, err := l.RefundOnce(ctx, "u1", 100, store.EntryJoinRefund, debit.ID, "refund")
	require.NoError(t, err)
	second, err := l.RefundOnce(ctx, "u1", 100, store.EntryJoinRefund, debit.ID, "refund")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), testutil.MustUser(t, rs, "u1").Wallet.Balance)
}
