package account

import "github.com/airstudent2/Tournament-200-26/internal/store"

type ProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=64"`
	Phone       string `json:"phone" validate:"required,e164"`
	GameHandle  string `json:"game_handle" validate:"required,max=64"`
}

type CreditRequest struct {
	UID    string `json:"uid" validate:"required,max=128"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Note   string `json:"note" validate:"max=256"`
}

type BlockRequest struct {
	Blocked bool `json:"blocked"`
}

type ProfileResponse struct {
	User    store.User `json:"user"`
	Created bool       `json:"created"`
}

type HistoryResponse struct {
	Items  []store.WalletEntry `json:"items"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}
