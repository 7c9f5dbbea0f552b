package store

import "time"

type Wallet struct {
	Balance int64 `json:"balance"`
}

type UserStats struct {
	TournamentsJoined int64 `json:"tournaments_joined"`
}

type User struct {
	UID            string    `json:"uid"`
	DisplayName    string    `json:"display_name"`
	Phone          string    `json:"phone"`
	GameHandle     string    `json:"game_handle"`
	IsBlocked      bool      `json:"is_blocked"`
	Wallet         Wallet    `json:"wallet"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	Stats          UserStats `json:"stats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	TournamentOpen   = "open"
	TournamentActive = "active"
	TournamentClosed = "closed"
)

type Tournament struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Game        string    `json:"game"`
	CategoryID  string    `json:"category_id,omitempty"`
	EntryFee    int64     `json:"entry_fee"`
	MaxSlots    int64     `json:"max_slots"`
	JoinedCount int64     `json:"joined_count"`
	Status      string    `json:"status"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Joinable reports whether the tournament still accepts entries.
func (t Tournament) Joinable() bool {
	return t.Status != TournamentClosed
}

const MembershipJoined = "joined"

type Membership struct {
	TournamentID string    `json:"tournament_id"`
	UID          string    `json:"uid"`
	DisplayName  string    `json:"display_name"`
	Phone        string    `json:"phone"`
	GameHandle   string    `json:"game_handle"`
	Status       string    `json:"status"`
	DebitID      string    `json:"debit_id"`
	Reservation  string    `json:"reservation"`
	JoinedAt     time.Time `json:"joined_at"`
}

const (
	EntryJoinDebit        = "join_debit"
	EntryJoinRefund       = "join_refund"
	EntryWithdrawalDebit  = "withdrawal_debit"
	EntryWithdrawalRefund = "withdrawal_refund"
	EntryCredit           = "credit"
)

// WalletEntry is an immutable wallet history line. Amount is always positive;
// Type decides the direction.
type WalletEntry struct {
	ID           string    `json:"id"`
	UID          string    `json:"uid"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Ref          string    `json:"ref,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsDebit reports whether the entry reduced the balance.
func (e WalletEntry) IsDebit() bool {
	return e.Type == EntryJoinDebit || e.Type == EntryWithdrawalDebit
}

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

type Withdrawal struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Method    string    `json:"method"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Fee       int64     `json:"fee"`
	Payout    int64     `json:"payout"`
	Status    string    `json:"status"`
	AdminNote string    `json:"admin_note,omitempty"`
	DebitID   string    `json:"debit_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Settings struct {
	MinWithdraw        int64 `json:"min_withdraw"`
	WithdrawFeePercent int64 `json:"withdraw_fee_percent"`
}
