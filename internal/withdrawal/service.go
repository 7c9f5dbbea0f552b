package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/compensate"
	"github.com/airstudent2/Tournament-200-26/internal/config"
	"github.com/airstudent2/Tournament-200-26/internal/events"
	"github.com/airstudent2/Tournament-200-26/internal/join"
	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrBelowMinimum      = errors.New("below_minimum")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("withdrawal_not_found")

	ErrInvalidRequest    = join.ErrInvalidRequest
	ErrProfileMissing    = join.ErrProfileMissing
	ErrUserBlocked       = join.ErrUserBlocked
	ErrInsufficientFunds = ledger.ErrInsufficientFunds
	ErrStoreUnavailable  = store.ErrUnavailable
)

type Request struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Method  string `json:"method" validate:"required,max=32"`
	Account string `json:"account" validate:"required,max=128"`
}

// Service moves money out of wallets. Approval is a stub that only enforces
// the pending -> approved|rejected shape.
type Service struct {
	rs       store.RecordStore
	ledger   *ledger.Ledger
	comp     *compensate.Runner
	events   events.Publisher
	defaults store.Settings
}

func NewService(rs store.RecordStore, l *ledger.Ledger, comp *compensate.Runner, pub events.Publisher, cfg config.SagaConfig) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		rs:     rs,
		ledger: l,
		comp:   comp,
		events: pub,
		defaults: store.Settings{
			MinWithdraw:        cfg.DefaultMinWithdraw,
			WithdrawFeePercent: cfg.DefaultWithdrawFeePercent,
		},
	}
}

// Fee is ceil(amount * pct / 100) in integer arithmetic. amount is split
// into hundreds and remainder so the product never overflows. pct is capped
// at 100, so the fee never exceeds amount.
func Fee(amount, pct int64) int64 {
	if amount <= 0 || pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	return amount/100*pct + (amount%100*pct+99)/100
}

// Settings returns the stored settings, or the configured defaults when none
// have been saved yet.
func (s *Service) Settings(ctx context.Context) (store.Settings, error) {
	st, err := store.GetJSON[store.Settings](ctx, s.rs, store.SettingsKey)
	if errors.Is(err, store.ErrNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return store.Settings{}, err
	}
	return st, nil
}

func (s *Service) SaveSettings(ctx context.Context, st store.Settings) error {
	if st.MinWithdraw < 0 || st.WithdrawFeePercent < 0 || st.WithdrawFeePercent > 100 {
		return ErrInvalidRequest
	}
	return store.PutJSON(ctx, s.rs, store.SettingsKey, st)
}

func (s *Service) RequestWithdrawal(ctx context.Context, uid string, req Request) (store.Withdrawal, error) {
	req.Method = strings.TrimSpace(req.Method)
	req.Account = strings.TrimSpace(req.Account)
	if !store.ValidID(uid) || req.Amount <= 0 || req.Method == "" || req.Account == "" {
		return store.Withdrawal{}, ErrInvalidRequest
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return store.Withdrawal{}, err
	}
	if req.Amount < settings.MinWithdraw {
		return store.Withdrawal{}, ErrBelowMinimum
	}
	fee := Fee(req.Amount, settings.WithdrawFeePercent)

	user, err := store.GetJSON[store.User](ctx, s.rs, store.UserKey(uid))
	if errors.Is(err, store.ErrNotFound) {
		return store.Withdrawal{}, ErrProfileMissing
	}
	if err != nil {
		return store.Withdrawal{}, err
	}
	if user.IsBlocked {
		return store.Withdrawal{}, ErrUserBlocked
	}

	id := store.NewID()
	entry, err := s.ledger.TryDebit(ctx, uid, req.Amount, store.EntryWithdrawalDebit, id, "withdrawal via "+req.Method)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return store.Withdrawal{}, ErrProfileMissing
		}
		return store.Withdrawal{}, err
	}

	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()
	w := store.Withdrawal{
		ID:        id,
		UID:       uid,
		Method:    req.Method,
		Account:   req.Account,
		Amount:    req.Amount,
		Fee:       fee,
		Payout:    req.Amount - fee,
		Status:    store.WithdrawalPending,
		DebitID:   entry.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateJSON(ctx, s.rs, store.WithdrawalKey(id), w); err != nil {
		s.refund(ctx, w, "withdrawal record failed")
		return store.Withdrawal{}, fmt.Errorf("record withdrawal: %w", errors.Join(ErrStoreUnavailable, err))
	}
	events.Emit(ctx, s.events, events.SubjectWithdrawalRequested, w)
	log.Info().Str("uid", uid).Str("withdrawal_id", id).Int64("amount", w.Amount).Int64("fee", fee).Msg("withdrawal requested")
	return w, nil
}

// Decide moves a pending withdrawal to approved or rejected. Rejection
// refunds the full debited amount.
func (s *Service) Decide(ctx context.Context, id string, approve bool, note string) (store.Withdrawal, error) {
	if !store.ValidID(id) {
		return store.Withdrawal{}, ErrInvalidRequest
	}
	to := store.WithdrawalRejected
	if approve {
		to = store.WithdrawalApproved
	}
	w, err := store.UpdateJSON(ctx, s.rs, store.WithdrawalKey(id), func(w *store.Withdrawal) error {
		if w.Status != store.WithdrawalPending {
			return ErrInvalidTransition
		}
		w.Status = to
		w.AdminNote = note
		w.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.Withdrawal{}, ErrNotFound
	}
	if err != nil {
		return store.Withdrawal{}, err
	}

	ctx = context.WithoutCancel(ctx)
	if approve {
		_, err := store.UpdateJSON(ctx, s.rs, store.UserKey(w.UID), func(u *store.User) error {
			u.TotalWithdrawn += w.Amount
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("uid", w.UID).Str("withdrawal_id", id).Msg("update total_withdrawn failed")
		}
	} else {
		s.refund(ctx, w, "withdrawal rejected")
	}
	events.Emit(ctx, s.events, events.SubjectWithdrawalDecided, w)
	log.Info().Str("withdrawal_id", id).Str("status", w.Status).Msg("withdrawal decided")
	return w, nil
}

func (s *Service) Get(ctx context.Context, id string) (store.Withdrawal, error) {
	w, err := store.GetJSON[store.Withdrawal](ctx, s.rs, store.WithdrawalKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return store.Withdrawal{}, ErrNotFound
	}
	return w, err
}

func (s *Service) refund(ctx context.Context, w store.Withdrawal, note string) {
	fields := map[string]string{"uid": w.UID, "withdrawal_id": w.ID, "debit_id": w.DebitID}
	_ = s.comp.Do(ctx, "withdrawal_refund", fields, func(ctx context.Context) error {
		_, err := s.ledger.RefundOnce(ctx, w.UID, w.Amount, store.EntryWithdrawalRefund, w.DebitID, note)
		return err
	})
}
