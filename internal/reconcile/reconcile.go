package reconcile

import (
	"context"
	"errors"
	"expvar"
	"sync"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

const pageSize = 200

var (
	metricRuns            = expvar.NewInt("reconcile_runs")
	metricOrphansRefunded = expvar.NewInt("reconcile_orphans_refunded")
	metricDrift           = expvar.NewInt("reconcile_capacity_drift")
)

// Drift is a tournament whose joined_count disagrees with its memberships.
type Drift struct {
	TournamentID string `json:"tournament_id"`
	JoinedCount  int64  `json:"joined_count"`
	Memberships  int64  `json:"memberships"`
}

type Report struct {
	StartedAt          time.Time `json:"started_at"`
	Took               string    `json:"took"`
	UsersScanned       int       `json:"users_scanned"`
	OrphansRefunded    int       `json:"orphans_refunded"`
	RefundFailures     int       `json:"refund_failures"`
	TournamentsAudited int       `json:"tournaments_audited"`
	Drift              []Drift   `json:"drift"`
}

// Reconciler finds join debits that never produced a membership and refunds
// them. It only reports capacity drift; joined_count is left alone.
type Reconciler struct {
	rs     store.RecordStore
	ledger *ledger.Ledger
	comp   *compensate.Runner
	grace  time.Duration
	now    func() time.Time

	mu sync.Mutex
}

func New(rs store.RecordStore, l *ledger.Ledger, comp *compensate.Runner, grace time.Duration) *Reconciler {
	return &Reconciler{rs: rs, ledger: l, comp: comp, grace: grace, now: time.Now}
}

// Run does one full pass. Concurrent calls are serialised.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	metricRuns.Add(1)

	rep := Report{StartedAt: r.now().UTC(), Drift: []Drift{}}
	if err := r.refundOrphans(ctx, &rep); err != nil {
		return rep, err
	}
	if err := r.auditCapacity(ctx, &rep); err != nil {
		return rep, err
	}
	rep.Took = time.Since(rep.StartedAt).String()
	log.Info().
		Int("users_scanned", rep.UsersScanned).
		Int("orphans_refunded", rep.OrphansRefunded).
		Int("refund_failures", rep.RefundFailures).
		Int("drift", len(rep.Drift)).
		Msg("reconcile finished")
	return rep, nil
}

func (r *Reconciler) refundOrphans(ctx context.Context, rep *Report) error {
	cutoff := r.now().Add(-r.grace)
	for offset := 0; ; offset += pageSize {
		users, err := store.ListJSON[store.User](ctx, r.rs, store.PrefixUsers, pageSize, offset)
		if err != nil {
			return err
		}
		for _, u := range users {
			rep.UsersScanned++
			if err := r.refundUser(ctx, u.UID, cutoff, rep); err != nil {
				return err
			}
		}
		if len(users) < pageSize {
			return nil
		}
	}
}

func (r *Reconciler) refundUser(ctx context.Context, uid string, cutoff time.Time, rep *Report) error {
	entries, err := r.ledger.History(ctx, uid, 0, 0)
	if err != nil {
		return err
	}
	refunded := make(map[string]bool)
	for _, e := range entries {
		if e.Type == store.EntryJoinRefund {
			refunded[e.Ref] = true
		}
	}
	for _, e := range entries {
		if e.Type != store.EntryJoinDebit || refunded[e.ID] || e.CreatedAt.After(cutoff) {
			continue
		}
		paid, err := r.membershipPaidBy(ctx, e)
		if err != nil {
			return err
		}
		if paid {
			continue
		}
		fields := map[string]string{"uid": uid, "debit_id": e.ID, "tournament_id": e.Ref}
		err = r.comp.Do(ctx, "orphan_refund", fields, func(ctx context.Context) error {
			_, err := r.ledger.RefundOnce(ctx, uid, e.Amount, store.EntryJoinRefund, e.ID, "reconcile refund: "+e.Ref)
			return err
		})
		if err != nil {
			rep.RefundFailures++
			continue
		}
		rep.OrphansRefunded++
		metricOrphansRefunded.Add(1)
		log.Warn().Str("uid", uid).Str("debit_id", e.ID).Str("tournament_id", e.Ref).Int64("amount", e.Amount).Msg("refunded orphan join debit")
	}
	return nil
}

// membershipPaidBy reports whether the membership the debit was for exists
// and points back at it.
func (r *Reconciler) membershipPaidBy(ctx context.Context, debit store.WalletEntry) (bool, error) {
	if !store.ValidID(debit.Ref) {
		return false, nil
	}
	m, err := store.GetJSON[store.Membership](ctx, r.rs, store.MembershipKey(debit.Ref, debit.UID))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.DebitID == debit.ID, nil
}

func (r *Reconciler) auditCapacity(ctx context.Context, rep *Report) error {
	for offset := 0; ; offset += pageSize {
		ts, err := store.ListJSON[store.Tournament](ctx, r.rs, store.PrefixTournaments, pageSize, offset)
		if err != nil {
			return err
		}
		for _, t := range ts {
			rep.TournamentsAudited++
			members, err := r.rs.List(ctx, store.MembershipPrefix(t.ID), 0, 0)
			if err != nil {
				return err
			}
			if int64(len(members)) == t.JoinedCount {
				continue
			}
			d := Drift{TournamentID: t.ID, JoinedCount: t.JoinedCount, Memberships: int64(len(members))}
			rep.Drift = append(rep.Drift, d)
			metricDrift.Add(1)
			log.Warn().Str("tournament_id", t.ID).Int64("joined_count", d.JoinedCount).Int64("memberships", d.Memberships).Msg("capacity drift")
		}
		if len(ts) < pageSize {
			return nil
		}
	}
}
