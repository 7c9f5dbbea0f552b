package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/capacity"
	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs the join saga: eligibility, slot reservation, entry fee
// debit and membership write, undoing earlier steps when a later one fails.
type Orchestrator struct {
	rs     store.RecordStore
	slots  *capacity.Manager
	ledger *ledger.Ledger
	comp   *compensate.Runner
	events events.Publisher

	// Observer, when set, sees every state transition. Used by tests.
	Observer func(Transition)
}

func NewOrchestrator(rs store.RecordStore, slots *capacity.Manager, l *ledger.Ledger, comp *compensate.Runner, pub events.Publisher) *Orchestrator {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Orchestrator{rs: rs, slots: slots, ledger: l, comp: comp, events: pub}
}

// JoinedEvent is published on tournament.joined.
type JoinedEvent struct {
	UID          string `json:"uid"`
	TournamentID string `json:"tournament_id"`
	EntryFee     int64  `json:"entry_fee"`
	DebitID      string `json:"debit_id,omitempty"`
	Reservation  string `json:"reservation"`
	JoinedCount  int64  `json:"joined_count"`
	MaxSlots     int64  `json:"max_slots"`
}

func (o *Orchestrator) Join(ctx context.Context, uid, tid string) (store.Membership, error) {
	if !store.ValidID(uid) || !store.ValidID(tid) {
		return store.Membership{}, ErrInvalidRequest
	}
	s := &saga{o: o, uid: uid, tid: tid, state: StateStart, started: time.Now()}

	user, tournament, err := s.checkEligibility(ctx)
	if err != nil {
		s.move(StateRejected, err)
		return store.Membership{}, err
	}
	s.move(StateEligibilityChecked, nil)

	res, err := o.slots.TryReserveSlot(ctx, tid)
	if err != nil {
		s.move(StateRejected, err)
		return store.Membership{}, mapStoreErr(err)
	}
	s.reservation = res
	s.move(StateSlotReserved, nil)

	// The slot is ours now; finishing or undoing the saga must not depend on
	// the caller staying connected.
	ctx = context.WithoutCancel(ctx)

	if tournament.EntryFee > 0 {
		entry, err := o.ledger.TryDebit(ctx, uid, tournament.EntryFee, store.EntryJoinDebit, tid, "entry fee: "+tournament.Title)
		if err != nil {
			s.releaseSlot(ctx, err)
			s.move(StateRejected, err)
			return store.Membership{}, debitFailure(err)
		}
		s.debit = entry
	}
	s.move(StateDebited, nil)

	m := store.Membership{
		TournamentID: tid,
		UID:          uid,
		DisplayName:  user.DisplayName,
		Phone:        user.Phone,
		GameHandle:   user.GameHandle,
		Status:       store.MembershipJoined,
		DebitID:      s.debit.ID,
		Reservation:  res.Token,
		JoinedAt:     time.Now().UTC(),
	}
	if err := store.CreateJSON(ctx, o.rs, store.MembershipKey(tid, uid), m); err != nil && !s.membershipCommitted(ctx) {
		s.refund(ctx, tournament.EntryFee, err)
		s.releaseSlot(ctx, err)
		if errors.Is(err, store.ErrAlreadyExists) {
			s.move(StateRejected, ErrAlreadyJoined)
			return store.Membership{}, ErrAlreadyJoined
		}
		s.move(StateRejected, err)
		return store.Membership{}, fmt.Errorf("record membership: %w", mapStoreErr(err))
	}
	s.move(StateMembershipRecorded, nil)

	o.bumpJoinedStat(ctx, uid)
	events.Emit(ctx, o.events, events.SubjectTournamentJoined, JoinedEvent{
		UID:          uid,
		TournamentID: tid,
		EntryFee:     tournament.EntryFee,
		DebitID:      s.debit.ID,
		Reservation:  res.Token,
		JoinedCount:  res.JoinedCount,
		MaxSlots:     res.MaxSlots,
	})
	log.Info().
		Str("uid", uid).
		Str("tournament_id", tid).
		Str("reservation", res.Token).
		Int64("joined_count", res.JoinedCount).
		Dur("took", time.Since(s.started)).
		Msg("tournament joined")
	return m, nil
}

// checkEligibility is read-only. The balance check is advisory; the debit
// decides for real.
func (s *saga) checkEligibility(ctx context.Context) (store.User, store.Tournament, error) {
	rs := s.o.rs
	user, err := store.GetJSON[store.User](ctx, rs, store.UserKey(s.uid))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, store.Tournament{}, ErrProfileMissing
	}
	if err != nil {
		return store.User{}, store.Tournament{}, mapStoreErr(err)
	}
	if user.IsBlocked {
		return store.User{}, store.Tournament{}, ErrUserBlocked
	}
	t, err := store.GetJSON[store.Tournament](ctx, rs, store.TournamentKey(s.tid))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, store.Tournament{}, ErrTournamentNotFound
	}
	if err != nil {
		return store.User{}, store.Tournament{}, mapStoreErr(err)
	}
	if !t.Joinable() {
		return store.User{}, store.Tournament{}, ErrTournamentClosed
	}
	if user.Wallet.Balance < t.EntryFee {
		return store.User{}, store.Tournament{}, ErrInsufficientFunds
	}
	_, err = rs.Get(ctx, store.MembershipKey(s.tid, s.uid))
	if err == nil {
		return store.User{}, store.Tournament{}, ErrAlreadyJoined
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, store.Tournament{}, mapStoreErr(err)
	}
	return user, t, nil
}

// membershipCommitted reports whether this saga's membership is in the store
// even though the create call failed, as happens when a backend commits and
// the acknowledgement is lost. The reservation token tells our write apart
// from a concurrent join by the same user.
func (s *saga) membershipCommitted(ctx context.Context) bool {
	m, err := store.GetJSON[store.Membership](ctx, s.o.rs, store.MembershipKey(s.tid, s.uid))
	if err != nil {
		return false
	}
	if m.Reservation != s.reservation.Token {
		return false
	}
	log.Warn().
		Str("uid", s.uid).
		Str("tournament_id", s.tid).
		Str("reservation", s.reservation.Token).
		Msg("membership create failed but record is present; keeping join")
	return true
}

func (o *Orchestrator) bumpJoinedStat(ctx context.Context, uid string) {
	_, err := store.UpdateJSON(ctx, o.rs, store.UserKey(uid), func(u *store.User) error {
		u.Stats.TournamentsJoined++
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("update join stats failed")
	}
}

type saga struct {
	o           *Orchestrator
	uid         string
	tid         string
	state       State
	started     time.Time
	reservation capacity.Reservation
	debit       store.WalletEntry
}

func (s *saga) move(to State, cause error) {
	if !s.state.canMoveTo(to) {
		panic(invalidTransitionError{from: s.state, to: to})
	}
	tr := Transition{
		From:         s.state,
		To:           to,
		UID:          s.uid,
		TournamentID: s.tid,
		Reservation:  s.reservation.Token,
		Err:          cause,
	}
	s.state = to
	ev := log.Debug()
	if to == StateRejected && cause != nil {
		ev = log.Info().Err(cause)
	}
	ev.Str("uid", s.uid).
		Str("tournament_id", s.tid).
		Str("reservation", s.reservation.Token).
		Str("state", string(to)).
		Msg("join transition")
	metricTransitions.Add(string(to), 1)
	if s.o.Observer != nil {
		s.o.Observer(tr)
	}
}

func (s *saga) fields() map[string]string {
	return map[string]string{
		"uid":           s.uid,
		"tournament_id": s.tid,
		"reservation":   s.reservation.Token,
	}
}

// releaseSlot gives the reserved slot back. It runs at most once per saga
// because the state machine only allows one move into slot_released.
func (s *saga) releaseSlot(ctx context.Context, cause error) {
	err := s.o.comp.Do(ctx, "release_slot", s.fields(), func(ctx context.Context) error {
		err := s.o.slots.ReleaseSlot(ctx, s.tid)
		if errors.Is(err, capacity.ErrTournamentNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		cause = errors.Join(cause, err)
	}
	s.move(StateSlotReleased, cause)
}

func (s *saga) refund(ctx context.Context, amount int64, cause error) {
	if s.debit.ID != "" {
		fields := s.fields()
		fields["debit_id"] = s.debit.ID
		err := s.o.comp.Do(ctx, "join_refund", fields, func(ctx context.Context) error {
			_, err := s.o.ledger.RefundOnce(ctx, s.uid, amount, store.EntryJoinRefund, s.debit.ID, "refund: "+s.tid)
			return err
		})
		if err != nil {
			cause = errors.Join(cause, err)
		}
	}
	s.move(StateRefunded, cause)
}

func debitFailure(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, ledger.ErrWalletNotFound):
		return ErrProfileMissing
	default:
		return fmt.Errorf("debit entry fee: %w", mapStoreErr(err))
	}
}

// mapStoreErr turns unexpected store failures into ErrStoreUnavailable and
// leaves domain errors alone.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTournamentFull),
		errors.Is(err, ErrTournamentNotFound),
		errors.Is(err, ErrTournamentClosed),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return errors.Join(ErrStoreUnavailable, err)
	}
}
