package ledger

import (
	"context"
	"errors"
	"expvar"
	"math"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrWalletNotFound    = errors.New("wallet_not_found")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrBalanceOverflow   = errors.New("balance_overflow")
)

var (
	metricDebits          = expvar.NewInt("ledger_debits")
	metricCredits         = expvar.NewInt("ledger_credits")
	metricInsufficient    = expvar.NewInt("ledger_insufficient_funds")
	metricHistoryFailures = expvar.NewInt("ledger_history_append_failures")
)

// Ledger is the only writer of wallet balances. Amounts are in the smallest
// currency unit.
type Ledger struct {
	rs    store.RecordStore
	retry *compensate.Runner
}

func New(rs store.RecordStore, retry *compensate.Runner) *Ledger {
	return &Ledger{rs: rs, retry: retry}
}

// TryDebit subtracts amount if the balance covers it and records a history
// entry of the given kind.
func (l *Ledger) TryDebit(ctx context.Context, uid string, amount int64, kind, ref, note string) (store.WalletEntry, error) {
	if amount <= 0 {
		return store.WalletEntry{}, ErrInvalidAmount
	}
	entry := newEntry(uid, kind, amount, ref, note)
	_, err := store.UpdateJSON(ctx, l.rs, store.UserKey(uid), func(u *store.User) error {
		if u.Wallet.Balance < amount {
			return ErrInsufficientFunds
		}
		u.Wallet.Balance -= amount
		u.UpdatedAt = entry.CreatedAt
		entry.BalanceAfter = u.Wallet.Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.WalletEntry{}, ErrWalletNotFound
		}
		if errors.Is(err, ErrInsufficientFunds) {
			metricInsufficient.Add(1)
		}
		return store.WalletEntry{}, err
	}
	metricDebits.Add(1)
	l.appendHistory(ctx, entry)
	return entry, nil
}

// Credit adds amount unconditionally. Credit-kind entries also count towards
// total_earned.
func (l *Ledger) Credit(ctx context.Context, uid string, amount int64, kind, ref, note string) (store.WalletEntry, error) {
	if amount <= 0 {
		return store.WalletEntry{}, ErrInvalidAmount
	}
	entry := newEntry(uid, kind, amount, ref, note)
	_, err := store.UpdateJSON(ctx, l.rs, store.UserKey(uid), func(u *store.User) error {
		if amount > math.MaxInt64-u.Wallet.Balance {
			return ErrBalanceOverflow
		}
		u.Wallet.Balance += amount
		if kind == store.EntryCredit {
			if amount > math.MaxInt64-u.TotalEarned {
				return ErrBalanceOverflow
			}
			u.TotalEarned += amount
		}
		u.UpdatedAt = entry.CreatedAt
		entry.BalanceAfter = u.Wallet.Balance
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.WalletEntry{}, ErrWalletNotFound
		}
		return store.WalletEntry{}, err
	}
	metricCredits.Add(1)
	l.appendHistory(ctx, entry)
	return entry, nil
}

// History lists a user's entries oldest first.
func (l *Ledger) History(ctx context.Context, uid string, limit, offset int) ([]store.WalletEntry, error) {
	return store.ListJSON[store.WalletEntry](ctx, l.rs, store.HistoryPrefix(uid), limit, offset)
}

func (l *Ledger) appendHistory(ctx context.Context, entry store.WalletEntry) {
	write := func(ctx context.Context) error {
		err := store.CreateJSON(ctx, l.rs, store.HistoryKey(entry.UID, entry.ID), entry)
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return err
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if l.retry != nil {
		err = l.retry.Do(ctx, "history_append", map[string]string{"uid": entry.UID, "entry_id": entry.ID}, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		metricHistoryFailures.Add(1)
		log.Error().Err(err).
			Str("uid", entry.UID).
			Str("entry_id", entry.ID).
			Str("type", entry.Type).
			Int64("amount", entry.Amount).
			Msg("wallet history append failed")
	}
}

func newEntry(uid, kind string, amount int64, ref, note string) store.WalletEntry {
	return store.WalletEntry{
		ID:        store.NewID(),
		UID:       uid,
		Type:      kind,
		Amount:    amount,
		Ref:       ref,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
}

// RefundOnce credits amount back for the debit identified by debitID unless
// a refund of that kind already references it in the wallet history.
func (l *Ledger) RefundOnce(ctx context.Context, uid string, amount int64, kind, debitID, note string) (store.WalletEntry, error) {
	existing, found, err := l.findByRef(ctx, uid, kind, debitID)
	if err != nil {
		return store.WalletEntry{}, err
	}
	if found {
		return existing, nil
	}
	return l.Credit(ctx, uid, amount, kind, debitID, note)
}

func (l *Ledger) findByRef(ctx context.Context, uid, kind, ref string) (store.WalletEntry, bool, error) {
	entries, err := l.History(ctx, uid, 0, 0)
	if err != nil {
		return store.WalletEntry{}, false, err
	}
	for _, e := range entries {
		if e.Type == kind && e.Ref == ref {
			return e, true, nil
		}
	}
	return store.WalletEntry{}, false, nil
}
