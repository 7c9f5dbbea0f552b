package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/store"
)

func SeedUser(t *testing.T, rs store.RecordStore, uid string, balance int64) store.User {
	t.Helper()
	now := time.Now().UTC()
	u := store.User{
		UID:         uid,
		DisplayName: "Player " + uid,
		Phone:       "+10000000000",
		GameHandle:  uid + "#1",
		Wallet:      store.Wallet{Balance: balance},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateJSON(context.Background(), rs, store.UserKey(uid), u); err != nil {
		t.Fatalf("seed user %s: %v", uid, err)
	}
	return u
}

func SeedTournament(t *testing.T, rs store.RecordStore, tid string, fee, maxSlots int64) store.Tournament {
	t.Helper()
	now := time.Now().UTC()
	tr := store.Tournament{
		ID:        tid,
		Title:     "Cup " + tid,
		Game:      "chess",
		EntryFee:  fee,
		MaxSlots:  maxSlots,
		Status:    store.TournamentOpen,
		StartsAt:  now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateJSON(context.Background(), rs, store.TournamentKey(tid), tr); err != nil {
		t.Fatalf("seed tournament %s: %v", tid, err)
	}
	return tr
}

func MustUser(t *testing.T, rs store.RecordStore, uid string) store.User {
	t.Helper()
	u, err := store.GetJSON[store.User](context.Background(), rs, store.UserKey(uid))
	if err != nil {
		t.Fatalf("load user %s: %v", uid, err)
	}
	return u
}

func MustTournament(t *testing.T, rs store.RecordStore, tid string) store.Tournament {
	t.Helper()
	tr, err := store.GetJSON[store.Tournament](context.Background(), rs, store.TournamentKey(tid))
	if err != nil {
		t.Fatalf("load tournament %s: %v", tid, err)
	}
	return tr
}

func History(t *testing.T, rs store.RecordStore, uid string) []store.WalletEntry {
	t.Helper()
	entries, err := store.ListJSON[store.WalletEntry](context.Background(), rs, store.HistoryPrefix(uid), 0, 0)
	if err != nil {
		t.Fatalf("load history %s: %v", uid, err)
	}
	return entries
}
