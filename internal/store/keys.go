package store

import "strings"

const (
	PrefixUsers         = "users/"
	PrefixTournaments   = "tournaments/"
	PrefixMemberships   = "memberships/"
	PrefixWalletHistory = "walletHistory/"
	PrefixWithdrawals   = "withdrawals/"

	SettingsKey = "settings/global"
)

func UserKey(uid string) string { return PrefixUsers + uid }
func TournamentKey(tid string) string { return PrefixTournaments + tid }
func WithdrawalKey(id string) string { return PrefixWithdrawals + id }
func MembershipPrefix(tid string) string { return PrefixMemberships + tid + "/" }
func HistoryPrefix(uid string) string { return PrefixWalletHistory + uid + "/" }

func MembershipKey(tid, uid string) string {
	return MembershipPrefix(tid) + uid
}

func HistoryKey(uid, id string) string {
	return HistoryPrefix(uid) + id
}

// ValidID reports whether s can be used as a single key segment.
func ValidID(s string) bool {
	return s != "" && len(s) <= 128 && !strings.ContainsAny(s, "/ \t\n")
}

// Ancestors returns every prefix of key that ends in "/", longest first.
// "memberships/t1/u1" yields "memberships/t1/" and "memberships/".
func Ancestors(key string) []string {
	var out []string
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			out = append(out, key[:i+1])
		}
	}
	return out
}
