package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/ledger"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

type Service struct {
	rs          store.RecordStore
	ledger      *ledger.Ledger
	signupBonus int64
}

func NewService(rs store.RecordStore, l *ledger.Ledger, signupBonus int64) *Service {
	return &Service{rs: rs, ledger: l, signupBonus: signupBonus}
}

// SaveProfile creates the user on first call and afterwards only touches the
// profile fields, never the wallet.
func (s *Service) SaveProfile(ctx context.Context, uid string, req ProfileRequest) (*ProfileResponse, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.GameHandle = strings.TrimSpace(req.GameHandle)
	if !store.ValidID(uid) || req.DisplayName == "" || req.GameHandle == "" {
		return nil, ErrInvalidRequest
	}
	now := time.Now().UTC()
	u := store.User{
		UID:         uid,
		DisplayName: req.DisplayName,
		Phone:       req.Phone,
		GameHandle:  req.GameHandle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := store.CreateJSON(ctx, s.rs, store.UserKey(uid), u)
	if err == nil {
		log.Info().Str("uid", uid).Msg("profile created")
		if s.signupBonus > 0 {
			entry, err := s.ledger.Credit(ctx, uid, s.signupBonus, store.EntryCredit, "signup_bonus", "welcome bonus")
			if err != nil {
				log.Error().Err(err).Str("uid", uid).Msg("signup bonus failed")
			} else {
				u.Wallet.Balance = entry.BalanceAfter
				u.TotalEarned = s.signupBonus
			}
		}
		return &ProfileResponse{User: u, Created: true}, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return nil, err
	}
	updated, err := store.UpdateJSON(ctx, s.rs, store.UserKey(uid), func(cur *store.User) error {
		cur.DisplayName = req.DisplayName
		cur.Phone = req.Phone
		cur.GameHandle = req.GameHandle
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{User: updated}, nil
}

func (s *Service) Me(ctx context.Context, uid string) (store.User, error) {
	u, err := store.GetJSON[store.User](ctx, s.rs, store.UserKey(uid))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrProfileMissing
	}
	return u, err
}

func (s *Service) History(ctx context.Context, uid string, limit, offset int) (*HistoryResponse, error) {
	if _, err := s.Me(ctx, uid); err != nil {
		return nil, err
	}
	items, err := s.ledger.History(ctx, uid, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Items: items, Limit: limit, Offset: offset}, nil
}

func (s *Service) SetBlocked(ctx context.Context, uid string, blocked bool) (store.User, error) {
	u, err := store.UpdateJSON(ctx, s.rs, store.UserKey(uid), func(u *store.User) error {
		u.IsBlocked = blocked
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrProfileMissing
	}
	if err == nil {
		log.Info().Str("uid", uid).Bool("blocked", blocked).Msg("user block toggled")
	}
	return u, err
}

// Credit pays out prizes and manual adjustments.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (store.WalletEntry, error) {
	note := req.Note
	if note == "" {
		note = "admin credit"
	}
	entry, err := s.ledger.Credit(ctx, req.UID, req.Amount, store.EntryCredit, "admin", note)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return store.WalletEntry{}, ErrProfileMissing
	}
	return entry, err
}
