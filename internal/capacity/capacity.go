package capacity

import (
	"context"
	"errors"
	"expvar"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/store"
)

var (
	ErrTournamentFull     = errors.New("tournament_full")
	ErrTournamentNotFound = errors.New("tournament_not_found")
	ErrTournamentClosed   = errors.New("tournament_closed")
)

var (
	metricReserved = expvar.NewInt("capacity_slots_reserved")
	metricFull     = expvar.NewInt("capacity_full_rejections")
	metricReleased = expvar.NewInt("capacity_slots_released")
)

// Reservation is one slot taken by TryReserveSlot. Token correlates the
// reservation with the debit and compensation that follow it.
type Reservation struct {
	TournamentID string `json:"tournament_id"`
	Token        string `json:"token"`
	JoinedCount  int64  `json:"joined_count"`
	MaxSlots     int64  `json:"max_slots"`
}

// Manager is the only writer of a tournament's joined_count.
type Manager struct {
	rs store.RecordStore
}

func NewManager(rs store.RecordStore) *Manager {
	return &Manager{rs: rs}
}

// TryReserveSlot takes one slot if the tournament has room. A full or closed
// tournament is rejected inside the same CAS cycle and nothing is written.
func (m *Manager) TryReserveSlot(ctx context.Context, tid string) (Reservation, error) {
	t, err := store.UpdateJSON(ctx, m.rs, store.TournamentKey(tid), func(t *store.Tournament) error {
		if !t.Joinable() {
			return ErrTournamentClosed
		}
		if t.JoinedCount >= t.MaxSlots {
			return ErrTournamentFull
		}
		t.JoinedCount++
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Reservation{}, ErrTournamentNotFound
		}
		if errors.Is(err, ErrTournamentFull) {
			metricFull.Add(1)
		}
		return Reservation{}, err
	}
	metricReserved.Add(1)
	return Reservation{
		TournamentID: tid,
		Token:        store.NewID(),
		JoinedCount:  t.JoinedCount,
		MaxSlots:     t.MaxSlots,
	}, nil
}

// ReleaseSlot gives one slot back. The count never drops below zero, so a
// duplicate release is harmless.
func (m *Manager) ReleaseSlot(ctx context.Context, tid string) error {
	_, err := store.UpdateJSON(ctx, m.rs, store.TournamentKey(tid), func(t *store.Tournament) error {
		if t.JoinedCount > 0 {
			t.JoinedCount--
		}
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrTournamentNotFound
	}
	if err == nil {
		metricReleased.Add(1)
	}
	return err
}
